// Package stats derives summary statistics from a normalized profile.
package stats

import (
	"swipestats-workers/internal/models"
)

// Aggregate computes DerivedStats from scratch. It is total: a nil or empty profile yields zero stats
// and MatchRate is 0 whenever there are no likes.
func Aggregate(p *models.NormalizedProfile) models.DerivedStats {
	var s models.DerivedStats
	if p == nil {
		return s
	}

	s.MatchesTotal = countMatches(p.Matches)

	dates := make(map[string]struct{}, len(p.Usage))
	for _, d := range p.Usage {
		s.SwipeLikesTotal += d.SwipeLikes
		s.SwipePassesTotal += d.SwipePasses
		s.AppOpensTotal += d.AppOpens
		s.SuperLikesTotal += d.SuperLikes
		s.MessagesSentTotal += d.MessagesSent
		s.MessagesReceivedTotal += d.MessagesReceived

		if d.Date == "" {
			continue
		}
		dates[d.Date] = struct{}{}
		if s.FirstDay == "" || d.Date < s.FirstDay {
			s.FirstDay = d.Date
		}
		if d.Date > s.LastDay {
			s.LastDay = d.Date
		}
	}
	s.DaysInPeriod = len(dates)
	s.MatchRate = MatchRate(s.MatchesTotal, s.SwipeLikesTotal)
	return s
}

// MatchRate is matches/likes, or 0 when likes is not positive.
func MatchRate(matches, likes int) float64 {
	if likes <= 0 {
		return 0
	}
	return float64(matches) / float64(likes)
}

// Attach returns a copy of p with Meta recomputed.
func Attach(p *models.NormalizedProfile) *models.NormalizedProfile {
	out := p.Clone()
	if out == nil {
		return nil
	}
	s := Aggregate(out)
	out.Meta = &s
	return out
}

// Matches without a vendor id are each counted once.
func countMatches(matches []models.Match) int {
	ids := make(map[string]struct{}, len(matches))
	anonymous := 0
	for _, m := range matches {
		if m.MatchID == "" {
			anonymous++
			continue
		}
		ids[m.MatchID] = struct{}{}
	}
	return len(ids) + anonymous
}
