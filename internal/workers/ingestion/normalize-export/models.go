// internal/workers/ingestion/normalize-export/models.go
package normalizeexport

import "swipestats-workers/internal/models"

type Input struct {
	Export models.RawExport `json:"export"`
}

type Output struct {
	Profile   *models.NormalizedProfile `json:"profile"`
	ProfileID string                    `json:"profileId"`
	Platform  string                    `json:"platform"`
}
