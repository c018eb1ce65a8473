package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	apperrors "swipestats-workers/internal/common/errors"
	"swipestats-workers/internal/common/logger"
	"swipestats-workers/internal/ingest/consent"
	"swipestats-workers/internal/ingest/normalize"
	"swipestats-workers/internal/ingest/stats"
	"swipestats-workers/internal/models"
)

// Upload is one export handed in by the upload handler.
type Upload struct {
	ID      string
	Export  models.RawExport
	Consent models.ConsentDeclaration
}

// Result is what the pipeline persisted for an upload.
type Result struct {
	UploadID  string
	ProfileID string
	Platform  models.Platform
	Merged    bool
	Indexed   bool
	Withheld  []models.ConsentCategory
	Profile   *models.NormalizedProfile
	Stats     models.DerivedStats
}

type Service struct {
	store    ProfileStore
	locker   Locker
	indexer  StatsIndexer
	notifier Notifier
	recorder Recorder
	logger   logger.Logger
	now      func() time.Time
}

type Option func(*Service)

// WithIndexer enables best-effort stats indexing after every save.
func WithIndexer(i StatsIndexer) Option {
	return func(s *Service) { s.indexer = i }
}

// WithNotifier publishes a ProfileIngestedEvent after every save. Failures are logged only.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

func NewService(store ProfileStore, locker Locker, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		locker:   locker,
		recorder: nopRecorder{},
		logger:   log.WithFields(map[string]interface{}{"component": "ingest-pipeline"}),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest runs the full upload flow:
//
//	normalize -> validate -> consent -> lock -> load -> merge or aggregate -> save -> unlock -> index -> notify
//
// The consent filter runs before the stored profile is touched, so withheld data is never persisted
// even transiently. Indexing and notification failures are logged and do not fail the upload.
func (s *Service) Ingest(ctx context.Context, up Upload) (*Result, error) {
	if up.ID == "" {
		up.ID = uuid.NewString()
	}
	log := logger.ForUpload(s.logger, up.ID, "")

	res, err := s.ingest(ctx, up, log)

	platform, merged, code := "", false, ""
	if res != nil {
		platform, merged = string(res.Platform), res.Merged
	}
	if err != nil {
		code = string(apperrors.FromError(err).Code)
		log.Warn("upload rejected", map[string]interface{}{"errorCode": code, "error": err.Error()})
	}
	s.recorder.RecordUpload(ctx, platform, merged, code)
	return res, err
}

func (s *Service) ingest(ctx context.Context, up Upload, log logger.Logger) (*Result, error) {
	var fresh *models.NormalizedProfile
	err := s.stage(ctx, StageNormalize, func() error {
		p, err := normalize.Normalize(up.Export)
		if err != nil {
			return exportError(err)
		}
		fresh = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.stage(ctx, StageValidate, func() error { return ValidateProfile(fresh) }); err != nil {
		return nil, err
	}

	res := &Result{
		UploadID:  up.ID,
		ProfileID: fresh.ProfileID,
		Platform:  fresh.Platform,
		Withheld:  up.Consent.Withheld(),
	}
	log = log.WithFields(map[string]interface{}{"profileId": res.ProfileID, "platform": res.Platform})

	var filtered *models.NormalizedProfile
	_ = s.stage(ctx, StageConsent, func() error {
		filtered = consent.Apply(fresh, up.Consent)
		return nil
	})

	final, err := s.mergeLocked(ctx, res, filtered, log)
	if err != nil {
		return res, err
	}

	res.Profile = final
	res.Stats = *final.Meta

	if s.indexer != nil {
		err := s.stage(ctx, StageIndex, func() error { return s.indexer.IndexStats(ctx, final) })
		if err != nil {
			log.Warn("stats indexing failed", map[string]interface{}{
				"error":     err.Error(),
				"errorCode": string(indexError(res.ProfileID, err).Code),
			})
		} else {
			res.Indexed = true
		}
	}

	if s.notifier != nil {
		ev := models.ProfileIngestedEvent{
			UploadID:   res.UploadID,
			ProfileID:  res.ProfileID,
			Platform:   res.Platform,
			Merged:     res.Merged,
			Stats:      res.Stats,
			IngestedAt: s.now().UTC(),
		}
		if err := s.stage(ctx, StageNotify, func() error { return s.notifier.NotifyIngested(ctx, ev) }); err != nil {
			log.Warn("ingest notification failed", map[string]interface{}{"error": err.Error()})
		}
	}

	log.Info("upload ingested", map[string]interface{}{
		"merged":       res.Merged,
		"matchesTotal": res.Stats.MatchesTotal,
		"daysInPeriod": res.Stats.DaysInPeriod,
		"withheld":     len(res.Withheld),
	})
	return res, nil
}

// mergeLocked loads, merges and saves under the profile lock. The lock is released before
// indexing and notification so slow downstream calls do not hold it.
func (s *Service) mergeLocked(ctx context.Context, res *Result, filtered *models.NormalizedProfile, log logger.Logger) (*models.NormalizedProfile, error) {
	var release func(context.Context) error
	err := s.stage(ctx, StageLock, func() error {
		var err error
		release, err = s.locker.Acquire(ctx, res.ProfileID)
		return err
	})
	if err != nil {
		return nil, lockError(res.ProfileID, err)
	}
	defer func() {
		// The lock outlives a cancelled job context long enough to be released.
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := release(relCtx); err != nil {
			log.Warn("failed to release profile lock", map[string]interface{}{"error": err.Error()})
		}
	}()

	var stored *models.NormalizedProfile
	err = s.stage(ctx, StageLoad, func() error {
		var err error
		stored, err = s.store.LoadProfile(ctx, res.ProfileID)
		return err
	})
	if err != nil {
		return nil, apperrors.NewProfileLoadFailedError(res.ProfileID, err)
	}

	var final *models.NormalizedProfile
	if stored != nil {
		err = s.stage(ctx, StageMerge, func() error {
			var err error
			final, err = Merge(stored, filtered)
			return err
		})
		if err != nil {
			return nil, err
		}
		res.Merged = true
	} else {
		final = stats.Attach(filtered)
	}

	if err := s.stage(ctx, StageSave, func() error { return s.store.SaveProfile(ctx, final) }); err != nil {
		return nil, apperrors.NewProfileSaveFailedError(res.ProfileID, err)
	}
	return final, nil
}

func (s *Service) stage(ctx context.Context, name string, fn func() error) error {
	start := s.now()
	err := fn()
	s.recorder.RecordStage(ctx, name, s.now().Sub(start), err)
	return err
}

func lockError(profileID string, err error) *apperrors.StandardError {
	if errors.Is(err, ErrLockHeld) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewProfileLockedError(profileID, err)
	}
	return apperrors.NewStorageUnavailableError("redis", err)
}

func indexError(profileID string, err error) *apperrors.StandardError {
	if errors.Is(err, ErrIndexNotFound) {
		return apperrors.NewStatsIndexNotFoundError(err.Error())
	}
	return apperrors.NewStatsIndexFailedError(profileID, err)
}
