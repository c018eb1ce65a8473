// Package consent removes the categories of a normalized profile the user did not agree to share.
package consent

import (
	"swipestats-workers/internal/ingest/stats"
	"swipestats-workers/internal/models"
)

// Apply returns a filtered copy of p. A withheld category is removed outright:
//
//	sharePhotos   -> media emptied
//	shareWorkInfo -> jobs emptied (titles, companies and their displayed flags together)
//	shareMatches  -> matches emptied
//	shareMessages -> every match keeps its metadata but loses its messages
//	sharePrompts  -> prompts emptied
//
// Education is never filtered. Unknown flags are ignored. Apply is idempotent. When p carries
// derived stats they are recomputed on the filtered result.
func Apply(p *models.NormalizedProfile, c models.ConsentDeclaration) *models.NormalizedProfile {
	out := p.Clone()
	if out == nil {
		return nil
	}

	if !c.Grants(models.ConsentPhotos) {
		out.Media = []models.Media{}
	}
	if !c.Grants(models.ConsentWorkInfo) {
		out.Jobs = []models.Job{}
	}
	if !c.Grants(models.ConsentMatches) {
		out.Matches = []models.Match{}
	}
	if !c.Grants(models.ConsentMessages) {
		for i := range out.Matches {
			out.Matches[i].Messages = []models.Message{}
		}
	}
	if !c.Grants(models.ConsentPrompts) {
		out.Prompts = []models.Prompt{}
	}

	if out.Meta != nil {
		s := stats.Aggregate(out)
		out.Meta = &s
	}
	return out
}
