package mergeprofiles

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swipestats-workers/internal/common/errors"
	"swipestats-workers/internal/common/logger"
	"swipestats-workers/internal/models"
)

const profileID = "5f1d7a0f7e3d1f6a2b9c0d4e8f7a6b5c4d3e2f1a0b9c8d7e6f5a4b3c2d1e0f9a"

func profile(platform models.Platform, usage []models.UsageDay, matches ...models.Match) *models.NormalizedProfile {
	p := &models.NormalizedProfile{
		ProfileID: profileID,
		Platform:  platform,
		Usage:     usage,
		Matches:   matches,
	}
	p.EmptyCollections()
	return p
}

func match(id string, at time.Time) models.Match {
	return models.Match{MatchID: id, MatchedAt: at, OrderIndex: models.OrderUnknown}
}

func TestExecute_MergesWithStoredProfile(t *testing.T) {
	h := NewHandler(LoadConfig(), logger.NewTestLogger(t))
	t0 := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)

	old := profile(models.PlatformTinder,
		[]models.UsageDay{{Date: "2023-01-01", SwipeLikes: 5}},
		match("a", t0),
	)
	latest := profile(models.PlatformTinder,
		[]models.UsageDay{{Date: "2023-01-01", SwipeLikes: 8}, {Date: "2023-01-02", SwipeLikes: 2}},
		match("a", t0), match("b", t0.Add(24*time.Hour)),
	)

	out, err := h.Execute(context.Background(), &Input{OldProfile: old, NewProfile: latest})
	require.NoError(t, err)

	assert.True(t, out.Merged)
	assert.Equal(t, 2, out.Stats.DaysInPeriod)
	assert.Equal(t, 10, out.Stats.SwipeLikesTotal)
	assert.Equal(t, 2, out.Stats.MatchesTotal)
	assert.Equal(t, 0.2, out.Stats.MatchRate)
	assert.Equal(t, out.Stats, *out.Profile.Meta)
}

func TestExecute_NoStoredProfile(t *testing.T) {
	h := NewHandler(LoadConfig(), logger.NewNoOpLogger())
	latest := profile(models.PlatformHinge, []models.UsageDay{{Date: "2023-03-01", SwipeLikes: 3}})

	out, err := h.Execute(context.Background(), &Input{NewProfile: latest})
	require.NoError(t, err)

	assert.False(t, out.Merged)
	assert.Equal(t, 3, out.Stats.SwipeLikesTotal)
	assert.Equal(t, 0, out.Stats.MatchesTotal)
	assert.Equal(t, 0.0, out.Stats.MatchRate)
}

func TestExecute_Errors(t *testing.T) {
	h := NewHandler(LoadConfig(), logger.NewNoOpLogger())

	tests := []struct {
		name     string
		input    *Input
		wantCode errors.ErrorCode
	}{
		{"nil input", nil, errors.ErrCodeInvalidInput},
		{"missing new profile", &Input{OldProfile: profile(models.PlatformTinder, nil)}, errors.ErrCodeInvalidInput},
		{
			name: "platform mismatch",
			input: &Input{
				OldProfile: profile(models.PlatformTinder, nil),
				NewProfile: profile(models.PlatformHinge, nil),
			},
			wantCode: errors.ErrCodeIdentityAssumption,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errors.FromError(err).Code)
		})
	}
}
