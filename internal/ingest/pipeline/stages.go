// Package pipeline runs an upload through normalize, consent, merge and aggregation, and owns the
// storage round trip around the pure components.
package pipeline

import (
	"errors"

	apperrors "swipestats-workers/internal/common/errors"
	"swipestats-workers/internal/common/validation"
	"swipestats-workers/internal/ingest/merge"
	"swipestats-workers/internal/ingest/normalize"
	"swipestats-workers/internal/models"
)

const (
	StageNormalize = "normalize"
	StageValidate  = "validate"
	StageConsent   = "consent"
	StageLock      = "lock"
	StageLoad      = "load"
	StageMerge     = "merge"
	StageSave      = "save"
	StageIndex     = "index"
	StageNotify    = "notify"
)

// Normalize converts raw into a validated NormalizedProfile. Failures come back as StandardErrors.
func Normalize(raw models.RawExport) (*models.NormalizedProfile, error) {
	p, err := normalize.Normalize(raw)
	if err != nil {
		return nil, exportError(err)
	}
	if err := ValidateProfile(p); err != nil {
		return nil, err
	}
	return p, nil
}

// ValidateProfile checks the struct invariants of p.
func ValidateProfile(p *models.NormalizedProfile) error {
	if p == nil {
		return apperrors.NewInvalidProfileError("profile is missing")
	}
	if err := validation.ValidateStruct(p); err != nil {
		return apperrors.NewInvalidProfileError(err.Error())
	}
	return nil
}

// Merge wraps merge.Merge, mapping its failures onto StandardErrors.
func Merge(old, latest *models.NormalizedProfile) (*models.NormalizedProfile, error) {
	out, err := merge.Merge(old, latest)
	if err == nil {
		return out, nil
	}

	var violation *merge.IdentityAssumptionViolation
	if errors.As(err, &violation) {
		return nil, apperrors.NewIdentityAssumptionError(err.Error(), err).
			WithMetadata("oldPlatform", string(violation.Old)).
			WithMetadata("newPlatform", string(violation.New))
	}
	if errors.Is(err, merge.ErrMissingProfile) {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	return nil, apperrors.NewInternalError(err)
}

func exportError(err error) error {
	var malformed *normalize.MalformedFieldError
	if errors.As(err, &malformed) {
		return apperrors.NewMalformedFieldError(err.Error(), err).
			WithMetadata("platform", string(malformed.Platform))
	}
	if errors.Is(err, normalize.ErrUnrecognizedFormat) {
		return apperrors.NewUnrecognizedFormatError(err.Error(), err)
	}
	return apperrors.NewInternalError(err)
}
