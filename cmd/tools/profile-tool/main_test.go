package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swipestats-workers/internal/models"
	ingestupload "swipestats-workers/internal/workers/ingestion/ingest-upload"
)

var fixtures = filepath.Join("..", "..", "..", "internal", "ingest", "normalize", "testdata")

func TestParseConsent(t *testing.T) {
	decl, err := parseConsent("photos=false, shareMessages=0,sharePrompts=true")
	require.NoError(t, err)
	assert.Equal(t, models.ConsentDeclaration{"photos": false, "shareMessages": false, "sharePrompts": true}, decl)

	decl, err = parseConsent("")
	require.NoError(t, err)
	assert.Empty(t, decl)

	_, err = parseConsent("photos")
	assert.Error(t, err)
	_, err = parseConsent("photos=maybe")
	assert.Error(t, err)
}

func TestRunNormalize_Stdout(t *testing.T) {
	var out bytes.Buffer
	files := []string{filepath.Join(fixtures, "tinder_export.json"), filepath.Join(fixtures, "hinge_export.json")}

	err := runNormalize(context.Background(), files, models.ConsentDeclaration{"photos": false}, "", 2, &out)
	require.NoError(t, err)

	dec := json.NewDecoder(&out)
	var platforms []models.Platform
	for dec.More() {
		var p models.NormalizedProfile
		require.NoError(t, dec.Decode(&p))
		require.NotNil(t, p.Meta)
		assert.Empty(t, p.Media)
		platforms = append(platforms, p.Platform)
	}
	assert.Equal(t, []models.Platform{models.PlatformTinder, models.PlatformHinge}, platforms)
}

func TestRunNormalize_OutDir(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer

	err := runNormalize(context.Background(), []string{filepath.Join(fixtures, "tinder_export.json")}, nil, dir, 1, &out)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].Name(), 64+len(".json"))
	assert.Contains(t, out.String(), "tinder ")
}

func TestRunNormalize_UnreadableExport(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"Foo": {}}`), 0o644))

	err := runNormalize(context.Background(), []string{bad}, nil, "", 1, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNRECOGNIZED_FORMAT")
}

func TestRunMergeAndStats(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	require.NoError(t, runNormalize(context.Background(), []string{filepath.Join(fixtures, "tinder_export.json")}, nil, dir, 1, &out))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	path := filepath.Join(dir, entries[0].Name())

	var merged bytes.Buffer
	require.NoError(t, runMerge(path, path, &merged))
	var p models.NormalizedProfile
	require.NoError(t, json.Unmarshal(merged.Bytes(), &p))
	assert.Equal(t, 3, p.Meta.MatchesTotal)
	assert.Equal(t, 15, p.Meta.SwipeLikesTotal)

	var statsOut bytes.Buffer
	require.NoError(t, runStats(path, &statsOut))
	var s models.DerivedStats
	require.NoError(t, json.Unmarshal(statsOut.Bytes(), &s))
	assert.Equal(t, 3, s.DaysInPeriod)
}

func TestRunActivities(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runActivities(filepath.Join("..", "..", "..", "configs", "activity-registry.json"), &out))
	assert.Contains(t, out.String(), "Found 7 activities")
}

var registryFile = filepath.Join("..", "..", "..", "configs", "activity-registry.json")

type fakeStarter struct {
	processIDs []string
	inputs     []ingestupload.Input
	err        error
}

func (f *fakeStarter) StartProcess(_ context.Context, processID string, variables interface{}) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.processIDs = append(f.processIDs, processID)
	f.inputs = append(f.inputs, variables.(ingestupload.Input))
	return int64(2251799813685249 + len(f.inputs)), nil
}

func TestRunSubmit_StartsOneInstancePerExport(t *testing.T) {
	starter := &fakeStarter{}
	files := []string{filepath.Join(fixtures, "tinder_export.json"), filepath.Join(fixtures, "hinge_export.json")}
	decl := models.ConsentDeclaration{"photos": false}

	var out bytes.Buffer
	require.NoError(t, runSubmit(context.Background(), starter, registryFile, ingestProcessID, files, decl, &out))

	require.Len(t, starter.inputs, 2)
	assert.Equal(t, []string{"profile-ingest", "profile-ingest"}, starter.processIDs)
	assert.NotEqual(t, starter.inputs[0].UploadID, starter.inputs[1].UploadID)
	assert.Contains(t, starter.inputs[0].Export, "Usage")
	assert.Equal(t, decl, starter.inputs[1].Consent)
	assert.Contains(t, out.String(), "tinder_export.json uploadId=")
	assert.Contains(t, out.String(), "processInstanceKey=2251799813685251")
}

func TestRunSubmit_RejectsNonObjectExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.json")
	require.NoError(t, os.WriteFile(path, []byte(`[1, 2]`), 0o600))

	starter := &fakeStarter{}
	err := runSubmit(context.Background(), starter, registryFile, ingestProcessID, []string{path}, nil, &bytes.Buffer{})

	require.Error(t, err)
	assert.Empty(t, starter.inputs)
}

func TestRunSubmit_BrokerFailure(t *testing.T) {
	starter := &fakeStarter{err: errors.New("gateway unavailable")}
	files := []string{filepath.Join(fixtures, "hinge_export.json")}

	err := runSubmit(context.Background(), starter, registryFile, ingestProcessID, files, nil, &bytes.Buffer{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "hinge_export.json")
}
