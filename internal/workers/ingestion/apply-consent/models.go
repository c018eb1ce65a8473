// internal/workers/ingestion/apply-consent/models.go
package applyconsent

import "swipestats-workers/internal/models"

type Input struct {
	Profile *models.NormalizedProfile `json:"profile"`
	Consent models.ConsentDeclaration `json:"consent"`
}

type Output struct {
	Profile  *models.NormalizedProfile `json:"profile"`
	Withheld []models.ConsentCategory  `json:"withheld"`
}
