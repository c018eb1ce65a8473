// internal/workers/data-access/load-profile/models.go
package loadprofile

import "swipestats-workers/internal/models"

type Input struct {
	ProfileID string `json:"profileId" validate:"required,len=64,hexadecimal"`
}

type Output struct {
	Found   bool                      `json:"found"`
	Profile *models.NormalizedProfile `json:"profile,omitempty"`
}
