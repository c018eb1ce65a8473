// internal/workers/ingestion/aggregate-stats/models.go
package aggregatestats

import "swipestats-workers/internal/models"

type Input struct {
	Profile *models.NormalizedProfile `json:"profile"`
}

type Output struct {
	Stats models.DerivedStats `json:"stats"`
}
