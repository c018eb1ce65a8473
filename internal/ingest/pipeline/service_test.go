package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "swipestats-workers/internal/common/errors"
	"swipestats-workers/internal/common/logger"
	"swipestats-workers/internal/models"
)

// ==========================
// Test doubles
// ==========================

type mockStore struct{ mock.Mock }

func (m *mockStore) LoadProfile(ctx context.Context, profileID string) (*models.NormalizedProfile, error) {
	args := m.Called(ctx, profileID)
	p, _ := args.Get(0).(*models.NormalizedProfile)
	return p, args.Error(1)
}

func (m *mockStore) SaveProfile(ctx context.Context, p *models.NormalizedProfile) error {
	return m.Called(ctx, p).Error(0)
}

type mockIndexer struct{ mock.Mock }

func (m *mockIndexer) IndexStats(ctx context.Context, p *models.NormalizedProfile) error {
	return m.Called(ctx, p).Error(0)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) NotifyIngested(ctx context.Context, ev models.ProfileIngestedEvent) error {
	return m.Called(ctx, ev).Error(0)
}

type fakeLocker struct {
	mu       sync.Mutex
	err      error
	acquired []string
	released []string
}

func (l *fakeLocker) Acquire(_ context.Context, key string) (func(context.Context) error, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	l.acquired = append(l.acquired, key)
	l.mu.Unlock()
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.released = append(l.released, key)
		return nil
	}, nil
}

func (l *fakeLocker) releasedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.released)
}

type stageEvent struct {
	stage string
	err   bool
}

type captureRecorder struct {
	mu      sync.Mutex
	stages  []stageEvent
	uploads []string
}

func (r *captureRecorder) RecordStage(_ context.Context, stage string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stageEvent{stage: stage, err: err != nil})
}

func (r *captureRecorder) RecordUpload(_ context.Context, platform string, merged bool, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	outcome := "ok"
	if code != "" {
		outcome = code
	}
	if merged {
		outcome += "+merged"
	}
	r.uploads = append(r.uploads, platform+":"+outcome)
}

func (r *captureRecorder) stageNames() []string {
	var out []string
	for _, e := range r.stages {
		out = append(out, e.stage)
	}
	return out
}

// ==========================
// Helpers
// ==========================

func testLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

func loadExport(t *testing.T, name string) models.RawExport {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "normalize", "testdata", name))
	require.NoError(t, err)
	var raw models.RawExport
	require.NoError(t, json.Unmarshal(data, &raw))
	return raw
}

func decode(t *testing.T, doc string) models.RawExport {
	t.Helper()
	var raw models.RawExport
	require.NoError(t, json.Unmarshal([]byte(doc), &raw))
	return raw
}

// ==========================
// Ingest
// ==========================

func TestService_Ingest_NewProfile(t *testing.T) {
	store := &mockStore{}
	indexer := &mockIndexer{}
	locker := &fakeLocker{}
	rec := &captureRecorder{}

	raw := loadExport(t, "tinder_export.json")
	fresh, err := Normalize(raw)
	require.NoError(t, err)

	store.On("LoadProfile", mock.Anything, fresh.ProfileID).Return(nil, nil)
	store.On("SaveProfile", mock.Anything, mock.MatchedBy(func(p *models.NormalizedProfile) bool {
		return p.ProfileID == fresh.ProfileID && p.Meta != nil && len(p.Media) == 0
	})).Return(nil)
	indexer.On("IndexStats", mock.Anything, mock.Anything).Return(nil)

	svc := NewService(store, locker, testLogger(t), WithIndexer(indexer), WithRecorder(rec))
	res, err := svc.Ingest(context.Background(), Upload{
		ID:      "upload-1",
		Export:  raw,
		Consent: models.ConsentDeclaration{"photos": false},
	})

	require.NoError(t, err)
	assert.Equal(t, "upload-1", res.UploadID)
	assert.Equal(t, fresh.ProfileID, res.ProfileID)
	assert.Equal(t, models.PlatformTinder, res.Platform)
	assert.False(t, res.Merged)
	assert.True(t, res.Indexed)
	assert.Equal(t, []models.ConsentCategory{models.ConsentPhotos}, res.Withheld)
	assert.Equal(t, 3, res.Stats.MatchesTotal)
	assert.Equal(t, 15, res.Stats.SwipeLikesTotal)
	assert.Equal(t, 3, res.Stats.DaysInPeriod)
	assert.Equal(t, []models.Media{}, res.Profile.Media)

	assert.Equal(t, []string{fresh.ProfileID}, locker.acquired)
	assert.Equal(t, []string{fresh.ProfileID}, locker.released)
	assert.Equal(t, []string{
		StageNormalize, StageValidate, StageConsent, StageLock, StageLoad, StageSave, StageIndex,
	}, rec.stageNames())
	assert.Equal(t, []string{"tinder:ok"}, rec.uploads)

	store.AssertExpectations(t)
	indexer.AssertExpectations(t)
}

func TestService_Ingest_MergesStoredProfile(t *testing.T) {
	store := &mockStore{}
	locker := &fakeLocker{}
	rec := &captureRecorder{}

	raw := loadExport(t, "tinder_export.json")
	fresh, err := Normalize(raw)
	require.NoError(t, err)

	stored := fresh.Clone()
	stored.Usage = []models.UsageDay{
		{Date: "2022-12-31", SwipeLikes: 7},
		{Date: "2023-01-01", SwipeLikes: 1},
	}
	stored.Matches = []models.Match{{MatchID: "older-match", OrderIndex: 1}}

	store.On("LoadProfile", mock.Anything, fresh.ProfileID).Return(stored, nil)
	store.On("SaveProfile", mock.Anything, mock.Anything).Return(nil)

	svc := NewService(store, locker, testLogger(t), WithRecorder(rec))
	res, err := svc.Ingest(context.Background(), Upload{Export: raw})

	require.NoError(t, err)
	assert.NotEmpty(t, res.UploadID)
	assert.True(t, res.Merged)
	assert.False(t, res.Indexed)
	assert.Equal(t, 4, res.Stats.DaysInPeriod)
	assert.Equal(t, 7+10+5, res.Stats.SwipeLikesTotal)
	assert.Equal(t, 4, res.Stats.MatchesTotal)
	assert.Equal(t, "older-match", res.Profile.Matches[0].MatchID)
	assert.Contains(t, rec.stageNames(), StageMerge)
	assert.Equal(t, []string{"tinder:ok+merged"}, rec.uploads)

	saved := store.Calls[1].Arguments.Get(1).(*models.NormalizedProfile)
	assert.Same(t, res.Profile, saved)
}

func TestService_Ingest_ConsentAppliedBeforeSave(t *testing.T) {
	store := &mockStore{}
	raw := loadExport(t, "tinder_export.json")

	var saved *models.NormalizedProfile
	store.On("LoadProfile", mock.Anything, mock.Anything).Return(nil, nil)
	store.On("SaveProfile", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*models.NormalizedProfile) }).
		Return(nil)

	svc := NewService(store, &fakeLocker{}, testLogger(t))
	_, err := svc.Ingest(context.Background(), Upload{
		Export:  raw,
		Consent: models.ConsentDeclaration{"shareMessages": false, "work": false},
	})
	require.NoError(t, err)

	require.NotNil(t, saved)
	assert.Len(t, saved.Matches, 3)
	for _, m := range saved.Matches {
		assert.Empty(t, m.Messages)
	}
	assert.Empty(t, saved.Jobs)
	assert.Equal(t, 3, saved.Meta.MatchesTotal)
}

func TestService_Ingest_Errors(t *testing.T) {
	tinder := func(t *testing.T) models.RawExport { return loadExport(t, "tinder_export.json") }

	tests := []struct {
		name      string
		export    func(t *testing.T) models.RawExport
		setup     func(store *mockStore, locker *fakeLocker)
		wantCode  apperrors.ErrorCode
		retryable bool
	}{
		{
			name:     "unrecognized export",
			export:   func(t *testing.T) models.RawExport { return decode(t, `{"Spotify": {}}`) },
			wantCode: apperrors.ErrCodeUnrecognizedFormat,
		},
		{
			name:     "malformed export",
			export:   func(t *testing.T) models.RawExport { return decode(t, `{"User": {"_id": "a"}, "Usage": []}`) },
			wantCode: apperrors.ErrCodeMalformedField,
		},
		{
			name:   "lock held",
			export: tinder,
			setup: func(_ *mockStore, locker *fakeLocker) {
				locker.err = errors.Join(ErrLockHeld, errors.New("abc"))
			},
			wantCode:  apperrors.ErrCodeProfileLocked,
			retryable: true,
		},
		{
			name:   "lock backend down",
			export: tinder,
			setup: func(_ *mockStore, locker *fakeLocker) {
				locker.err = errors.New("dial tcp: connection refused")
			},
			wantCode:  apperrors.ErrCodeStorageUnavailable,
			retryable: true,
		},
		{
			name:   "load fails",
			export: tinder,
			setup: func(store *mockStore, _ *fakeLocker) {
				store.On("LoadProfile", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))
			},
			wantCode:  apperrors.ErrCodeProfileLoadFailed,
			retryable: true,
		},
		{
			name:   "save fails",
			export: tinder,
			setup: func(store *mockStore, _ *fakeLocker) {
				store.On("LoadProfile", mock.Anything, mock.Anything).Return(nil, nil)
				store.On("SaveProfile", mock.Anything, mock.Anything).Return(errors.New("disk full"))
			},
			wantCode:  apperrors.ErrCodeProfileSaveFailed,
			retryable: true,
		},
		{
			name:   "stored profile from another platform",
			export: tinder,
			setup: func(store *mockStore, _ *fakeLocker) {
				other := &models.NormalizedProfile{Platform: models.PlatformHinge}
				other.EmptyCollections()
				store.On("LoadProfile", mock.Anything, mock.Anything).Return(other, nil)
			},
			wantCode: apperrors.ErrCodeIdentityAssumption,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, locker := &mockStore{}, &fakeLocker{}
			if tt.setup != nil {
				tt.setup(store, locker)
			}
			rec := &captureRecorder{}
			svc := NewService(store, locker, testLogger(t), WithRecorder(rec))

			_, err := svc.Ingest(context.Background(), Upload{Export: tt.export(t)})
			require.Error(t, err)

			std := apperrors.FromError(err)
			assert.Equal(t, tt.wantCode, std.Code)
			assert.Equal(t, tt.retryable, std.Retryable)
			require.Len(t, rec.uploads, 1)
			assert.Contains(t, rec.uploads[0], string(tt.wantCode))

			assert.Equal(t, len(locker.acquired), len(locker.released), "lock must be released")
			store.AssertExpectations(t)
		})
	}
}

func TestService_Ingest_UnreadableExportHidesVendorFields(t *testing.T) {
	svc := NewService(&mockStore{}, &fakeLocker{}, testLogger(t))

	_, err := svc.Ingest(context.Background(), Upload{Export: decode(t, `{"User": {"_id": "a"}, "Usage": {"swipes_likes": [1]}}`)})
	std := apperrors.FromError(err)

	assert.Equal(t, "The export file could not be read", std.Message)
	assert.Contains(t, std.Details, "swipes_likes")
	assert.Equal(t, "tinder", std.Metadata["platform"])
}

func TestService_Ingest_IndexFailureIsBestEffort(t *testing.T) {
	store := &mockStore{}
	indexer := &mockIndexer{}
	store.On("LoadProfile", mock.Anything, mock.Anything).Return(nil, nil)
	store.On("SaveProfile", mock.Anything, mock.Anything).Return(nil)
	indexer.On("IndexStats", mock.Anything, mock.Anything).Return(errors.New("cluster red"))

	svc := NewService(store, &fakeLocker{}, testLogger(t), WithIndexer(indexer))
	res, err := svc.Ingest(context.Background(), Upload{Export: loadExport(t, "hinge_export.json")})

	require.NoError(t, err)
	assert.False(t, res.Indexed)
	assert.Equal(t, models.PlatformHinge, res.Platform)
	indexer.AssertExpectations(t)
}

func TestService_Ingest_NotifiesAfterSave(t *testing.T) {
	store := &mockStore{}
	notifier := &mockNotifier{}
	store.On("LoadProfile", mock.Anything, mock.Anything).Return(nil, nil)
	store.On("SaveProfile", mock.Anything, mock.Anything).Return(nil)

	var got models.ProfileIngestedEvent
	notifier.On("NotifyIngested", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(models.ProfileIngestedEvent) }).
		Return(nil)

	svc := NewService(store, &fakeLocker{}, testLogger(t), WithNotifier(notifier))
	res, err := svc.Ingest(context.Background(), Upload{ID: "u-9", Export: loadExport(t, "tinder_export.json")})
	require.NoError(t, err)

	assert.Equal(t, "u-9", got.UploadID)
	assert.Equal(t, res.ProfileID, got.ProfileID)
	assert.Equal(t, models.PlatformTinder, got.Platform)
	assert.Equal(t, res.Stats, got.Stats)
	assert.False(t, got.IngestedAt.IsZero())
	notifier.AssertExpectations(t)
}

func TestService_Ingest_NotifyFailureIsBestEffort(t *testing.T) {
	store := &mockStore{}
	notifier := &mockNotifier{}
	store.On("LoadProfile", mock.Anything, mock.Anything).Return(nil, nil)
	store.On("SaveProfile", mock.Anything, mock.Anything).Return(nil)
	notifier.On("NotifyIngested", mock.Anything, mock.Anything).Return(errors.New("throttled"))

	rec := &captureRecorder{}
	svc := NewService(store, &fakeLocker{}, testLogger(t), WithNotifier(notifier), WithRecorder(rec))
	_, err := svc.Ingest(context.Background(), Upload{Export: loadExport(t, "hinge_export.json")})

	require.NoError(t, err)
	assert.Contains(t, rec.stages, stageEvent{stage: StageNotify, err: true})
}

func TestService_Ingest_ReleasesLockBeforeIndexAndNotify(t *testing.T) {
	store := &mockStore{}
	indexer := &mockIndexer{}
	notifier := &mockNotifier{}
	locker := &fakeLocker{}
	store.On("LoadProfile", mock.Anything, mock.Anything).Return(nil, nil)
	store.On("SaveProfile", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		assert.Equal(t, 0, locker.releasedCount(), "save must run under the lock")
	}).Return(nil)

	var releasedAtIndex, releasedAtNotify int
	indexer.On("IndexStats", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { releasedAtIndex = locker.releasedCount() }).
		Return(nil)
	notifier.On("NotifyIngested", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { releasedAtNotify = locker.releasedCount() }).
		Return(nil)

	svc := NewService(store, locker, testLogger(t), WithIndexer(indexer), WithNotifier(notifier))
	_, err := svc.Ingest(context.Background(), Upload{Export: loadExport(t, "tinder_export.json")})
	require.NoError(t, err)

	assert.Equal(t, 1, releasedAtIndex)
	assert.Equal(t, 1, releasedAtNotify)
	assert.Equal(t, 1, locker.releasedCount())
}

// A first Tinder upload with one day of usage, one match and no photos.
func TestService_Ingest_SingleDayTinderScenario(t *testing.T) {
	store := &mockStore{}
	store.On("LoadProfile", mock.Anything, mock.Anything).Return(nil, nil)
	store.On("SaveProfile", mock.Anything, mock.Anything).Return(nil)

	raw := decode(t, `{
		"User": {"_id": "single-day"},
		"Usage": {"swipes_likes": {"2023-01-01": 10}, "matches": {"2023-01-01": 2}},
		"Messages": [{"match_id": "Match 1", "messages": []}]
	}`)

	res, err := NewService(store, &fakeLocker{}, testLogger(t)).Ingest(context.Background(), Upload{Export: raw})
	require.NoError(t, err)

	assert.Equal(t, []models.Media{}, res.Profile.Media)
	assert.Equal(t, 1, res.Stats.MatchesTotal)
	assert.Equal(t, 10, res.Stats.SwipeLikesTotal)
	assert.Equal(t, 0.1, res.Stats.MatchRate)
	assert.Equal(t, 1, res.Stats.DaysInPeriod)
}

// ==========================
// Stage helpers
// ==========================

func TestNormalize_InvalidProfileRejected(t *testing.T) {
	p := &models.NormalizedProfile{ProfileID: "short", Platform: models.PlatformTinder}
	err := ValidateProfile(p)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidProfile, apperrors.FromError(err).Code)

	assert.Error(t, ValidateProfile(nil))
}

func TestMerge_MapsErrors(t *testing.T) {
	a := &models.NormalizedProfile{Platform: models.PlatformTinder}
	b := &models.NormalizedProfile{Platform: models.PlatformHinge}

	_, err := Merge(a, b)
	std := apperrors.FromError(err)
	assert.Equal(t, apperrors.ErrCodeIdentityAssumption, std.Code)
	assert.Equal(t, "MERGE_REJECTED", apperrors.ConvertToBPMNError(std).Code)
	assert.Equal(t, "hinge", std.Metadata["newPlatform"])

	_, err = Merge(a, nil)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.FromError(err).Code)
}

func TestRecorders_FanOut(t *testing.T) {
	a, b := &captureRecorder{}, &captureRecorder{}
	rs := Recorders{a, b}

	rs.RecordStage(context.Background(), StageSave, time.Millisecond, nil)
	rs.RecordUpload(context.Background(), "hinge", false, "")

	assert.Equal(t, []string{StageSave}, a.stageNames())
	assert.Equal(t, []string{"hinge:ok"}, b.uploads)
}
