// Package merge combines two normalized profiles of the same person into one continuous history.
package merge

import (
	"errors"
	"fmt"

	"swipestats-workers/internal/ingest/stats"
	"swipestats-workers/internal/models"
)

var (
	// ErrPlatformMismatch is matched by an IdentityAssumptionViolation raised for profiles of different vendors.
	ErrPlatformMismatch = errors.New("profiles belong to different platforms")
	ErrMissingProfile   = errors.New("new profile is required")
)

// IdentityAssumptionViolation reports a pair of profiles that cannot belong to one account.
// Only the platform is checked; callers establish that both profiles are the same person.
type IdentityAssumptionViolation struct {
	Old models.Platform
	New models.Platform
}

func (e *IdentityAssumptionViolation) Error() string {
	return fmt.Sprintf("cannot merge %s profile into %s profile", e.New, e.Old)
}

func (e *IdentityAssumptionViolation) Is(target error) bool {
	return target == ErrPlatformMismatch
}

// Merge returns a new profile combining old and latest. Neither input is modified.
//
// Usage is unioned by date with latest winning on overlap. Matches keep old's order followed by the
// matches only latest has; a match present in both takes latest's metadata and the union of both
// message histories. Identity, jobs, education, prompts, media and the profile id come from latest.
// The result carries freshly aggregated stats.
//
// A nil old profile yields latest with stats attached.
func Merge(old, latest *models.NormalizedProfile) (*models.NormalizedProfile, error) {
	if latest == nil {
		return nil, ErrMissingProfile
	}
	if old == nil {
		return stats.Attach(latest), nil
	}
	if old.Platform != latest.Platform {
		return nil, &IdentityAssumptionViolation{Old: old.Platform, New: latest.Platform}
	}

	out := latest.Clone()
	out.Usage = mergeUsage(old.Usage, latest.Usage)
	out.Matches = mergeMatches(old.Matches, latest.Matches)
	out.EmptyCollections()

	s := stats.Aggregate(out)
	out.Meta = &s
	return out, nil
}

func mergeUsage(old, latest []models.UsageDay) []models.UsageDay {
	byDate := make(map[string]int, len(old)+len(latest))
	out := make([]models.UsageDay, 0, len(old)+len(latest))
	for _, list := range [][]models.UsageDay{old, latest} {
		for _, d := range list {
			if i, ok := byDate[d.Date]; ok {
				out[i] = d
				continue
			}
			byDate[d.Date] = len(out)
			out = append(out, d)
		}
	}
	models.SortUsage(out)
	return out
}

// Matches without an id cannot be matched up and are kept from both sides.
func mergeMatches(old, latest []models.Match) []models.Match {
	out := make([]models.Match, 0, len(old)+len(latest))
	byID := make(map[string]int, len(old))
	for _, m := range old {
		m.Messages = append([]models.Message(nil), m.Messages...)
		if m.MatchID != "" {
			byID[m.MatchID] = len(out)
		}
		out = append(out, m)
	}

	for _, m := range latest {
		i, ok := byID[m.MatchID]
		if m.MatchID == "" || !ok {
			m.Messages = append([]models.Message(nil), m.Messages...)
			if m.MatchID != "" {
				byID[m.MatchID] = len(out)
			}
			out = append(out, m)
			continue
		}
		m.Messages = models.UnionMessages(out[i].Messages, m.Messages)
		out[i] = m
	}
	return out
}
