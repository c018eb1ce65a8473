// Package normalize maps raw Tinder and Hinge exports onto models.NormalizedProfile.
//
// Normalize is a pure function of its input: it performs no I/O and never reads the clock.
// Optional vendor fields map to explicit sentinels (models.AgeUnknown, models.GenderUnknown,
// models.OrderUnknown, empty strings, empty slices). Only required structural elements fail.
package normalize

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"swipestats-workers/internal/common/anonymize"
	"swipestats-workers/internal/common/validation"
	"swipestats-workers/internal/models"
)

// Detect reports which vendor produced raw. Tinder exports carry a Usage block; Hinge exports
// carry Matches or Prompts.
func Detect(raw models.RawExport) (models.Platform, error) {
	if _, ok := raw["Usage"]; ok {
		return models.PlatformTinder, nil
	}
	_, hasMatches := raw["Matches"]
	_, hasPrompts := raw["Prompts"]
	if hasMatches || hasPrompts {
		return models.PlatformHinge, nil
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "", &UnrecognizedFormatError{TopLevelKeys: keys}
}

// Normalize converts a decoded vendor export into a normalized profile. The vendor account id
// only feeds the profile key; where the export repeats it inside other values, such as photo
// URLs, it is replaced by the profile key.
func Normalize(raw models.RawExport) (*models.NormalizedProfile, error) {
	platform, err := Detect(raw)
	if err != nil {
		return nil, err
	}

	var (
		p        *models.NormalizedProfile
		vendorID string
	)
	switch platform {
	case models.PlatformTinder:
		if err := checkStructure(tinderSchema, platform, raw); err != nil {
			return nil, err
		}
		p, vendorID, err = normalizeTinder(raw)
	case models.PlatformHinge:
		if err := checkStructure(hingeSchema, platform, raw); err != nil {
			return nil, err
		}
		p, vendorID, err = normalizeHinge(raw)
	}
	if err != nil {
		return nil, err
	}

	redactVendorID(p, vendorID)
	models.SortUsage(p.Usage)
	for i := range p.Matches {
		models.SortMessages(p.Matches[i].Messages)
	}
	sortMatches(p.Matches)
	p.EmptyCollections()
	return p, nil
}

func checkStructure(schema *validation.Schema, platform models.Platform, raw models.RawExport) error {
	res, err := schema.ValidateDocument(raw)
	if err != nil {
		return &MalformedFieldError{Platform: platform, Field: "(document)", Expected: err.Error()}
	}
	if first := res.First(); first != nil {
		field := first.Field
		if field == "" {
			field = "(document)"
		}
		return &MalformedFieldError{Platform: platform, Field: field, Expected: first.Message}
	}
	return nil
}

// sortMatches orders matches by vendor order index. Matches without an index follow, ordered by
// first message time, then match time, then id.
func sortMatches(matches []models.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		aIdx, bIdx := a.OrderIndex != models.OrderUnknown, b.OrderIndex != models.OrderUnknown
		if aIdx != bIdx {
			return aIdx
		}
		if aIdx {
			return a.OrderIndex < b.OrderIndex
		}

		at, bt := chronoKey(a), chronoKey(b)
		switch {
		case at.IsZero() != bt.IsZero():
			return !at.IsZero()
		case !at.Equal(bt):
			return at.Before(bt)
		}
		return a.MatchID < b.MatchID
	})
}

func chronoKey(m models.Match) time.Time {
	if first := m.FirstMessageAt(); !first.IsZero() {
		return first
	}
	return m.MatchedAt
}

// scopedMatchID derives a match id that is stable across exports of one account and cannot collide
// with matches of another account.
func scopedMatchID(profileID, vendorMatchKey string) string {
	vendorMatchKey = strings.TrimSpace(vendorMatchKey)
	if vendorMatchKey == "" {
		return ""
	}
	return anonymize.Hash(fmt.Sprintf("%s/%s", profileID, vendorMatchKey))
}
