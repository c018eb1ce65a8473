// internal/workers/ingestion/ingest-upload/models.go
package ingestupload

import "swipestats-workers/internal/models"

type Input struct {
	UploadID string                    `json:"uploadId,omitempty"`
	Export   models.RawExport          `json:"export"`
	Consent  models.ConsentDeclaration `json:"consent,omitempty"`
}

// Output is kept small: the normalized profile itself stays in the profile store.
type Output struct {
	UploadID  string                   `json:"uploadId"`
	ProfileID string                   `json:"profileId"`
	Platform  string                   `json:"platform"`
	Merged    bool                     `json:"merged"`
	Indexed   bool                     `json:"indexed"`
	Withheld  []models.ConsentCategory `json:"withheld"`
	Stats     models.DerivedStats      `json:"stats"`
}
