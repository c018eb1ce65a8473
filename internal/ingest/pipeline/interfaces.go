package pipeline

import (
	"context"
	"errors"
	"time"

	"swipestats-workers/internal/models"
)

// ProfileStore persists normalized profiles keyed by profileId.
type ProfileStore interface {
	// LoadProfile returns nil, nil when no profile is stored under profileID.
	LoadProfile(ctx context.Context, profileID string) (*models.NormalizedProfile, error)
	SaveProfile(ctx context.Context, p *models.NormalizedProfile) error
}

// ErrLockHeld is returned by a Locker when the lock could not be taken within its wait budget.
var ErrLockHeld = errors.New("profile lock held by another upload")

// ErrIndexNotFound is returned by a StatsIndexer when the stats index does not exist.
var ErrIndexNotFound = errors.New("stats index not found")

// Locker serializes merges into one profile. Locks expire after a TTL that must cover the
// longest ingest job.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

// StatsIndexer publishes derived stats to the directory index.
type StatsIndexer interface {
	IndexStats(ctx context.Context, p *models.NormalizedProfile) error
}

// Notifier announces ingested profiles.
type Notifier interface {
	NotifyIngested(ctx context.Context, ev models.ProfileIngestedEvent) error
}

// Recorder receives stage timings and upload outcomes.
type Recorder interface {
	RecordStage(ctx context.Context, stage string, duration time.Duration, err error)
	RecordUpload(ctx context.Context, platform string, merged bool, errorCode string)
}

type nopRecorder struct{}

func (nopRecorder) RecordStage(context.Context, string, time.Duration, error) {}
func (nopRecorder) RecordUpload(context.Context, string, bool, string)        {}

// Recorders fans out to every recorder in the list.
type Recorders []Recorder

func (rs Recorders) RecordStage(ctx context.Context, stage string, d time.Duration, err error) {
	for _, r := range rs {
		r.RecordStage(ctx, stage, d, err)
	}
}

func (rs Recorders) RecordUpload(ctx context.Context, platform string, merged bool, errorCode string) {
	for _, r := range rs {
		r.RecordUpload(ctx, platform, merged, errorCode)
	}
}
