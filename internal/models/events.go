package models

import "time"

// ProfileIngestedEvent announces a saved profile to downstream consumers. It carries only the
// hashed profileId and derived stats.
type ProfileIngestedEvent struct {
	UploadID   string       `json:"uploadId"`
	ProfileID  string       `json:"profileId"`
	Platform   Platform     `json:"platform"`
	Merged     bool         `json:"merged"`
	Stats      DerivedStats `json:"stats"`
	IngestedAt time.Time    `json:"ingestedAt"`
}
