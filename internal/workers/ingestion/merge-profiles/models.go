// internal/workers/ingestion/merge-profiles/models.go
package mergeprofiles

import "swipestats-workers/internal/models"

// Input carries the stored profile (optional) and the freshly normalized one.
type Input struct {
	OldProfile *models.NormalizedProfile `json:"oldProfile,omitempty"`
	NewProfile *models.NormalizedProfile `json:"newProfile"`
}

type Output struct {
	Profile *models.NormalizedProfile `json:"profile"`
	Stats   models.DerivedStats       `json:"stats"`
	Merged  bool                      `json:"merged"`
}
