// internal/workers/data-access/search-stats/models.go
package searchstats

import (
	"swipestats-workers/internal/repository"
	"swipestats-workers/internal/workers/data-access/search-stats/queries"
)

type Input struct {
	IndexName  string                `json:"indexName,omitempty"`
	Filters    queries.CohortFilters `json:"filters"`
	SortBy     string                `json:"sortBy,omitempty" validate:"omitempty,oneof=matchRate matchesTotal swipeLikesTotal daysInPeriod"`
	Pagination Pagination            `json:"pagination"`
}

type Pagination struct {
	From int `json:"from" validate:"gte=0"`
	Size int `json:"size" validate:"gte=0"`
}

type Output struct {
	Profiles  []repository.StatsDocument `json:"profiles"`
	TotalHits int64                      `json:"totalHits"`
	Averages  queries.CohortAverages     `json:"averages"`
	Took      int64                      `json:"took"` // milliseconds
}
