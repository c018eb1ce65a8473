package queries

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var (
	ErrMissingIndex  = errors.New("index name is required")
	ErrUnknownSortBy = errors.New("unknown sort field")
)

const (
	DefaultSize = 20
	MaxSize     = 100
)

// Sortable fields, all descending.
var sortFields = map[string]bool{
	"matchRate":       true,
	"matchesTotal":    true,
	"swipeLikesTotal": true,
	"daysInPeriod":    true,
}

// CohortFilters narrows the directory to comparable profiles. Zero values do not filter.
type CohortFilters struct {
	Platform     string `json:"platform,omitempty"`
	Gender       string `json:"gender,omitempty"`
	InterestedIn string `json:"interestedIn,omitempty"`
	Country      string `json:"country,omitempty"`
	City         string `json:"city,omitempty"`
	AgeMin       int    `json:"ageMin,omitempty"`
	AgeMax       int    `json:"ageMax,omitempty"`
	MinDays      int    `json:"minDays,omitempty"`
}

type CohortQuery struct {
	Index   string
	Filters CohortFilters
	SortBy  string
	From    int
	Size    int
}

// BuildQuery builds the search request for a cohort query.
func BuildQuery(q CohortQuery) (*esapi.SearchRequest, error) {
	if q.Index == "" {
		return nil, ErrMissingIndex
	}
	if q.SortBy != "" && !sortFields[q.SortBy] {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSortBy, q.SortBy)
	}

	from, size := q.From, q.Size
	if from < 0 {
		from = 0
	}
	if size < 1 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}

	body, err := json.Marshal(buildCohortQuery(q))
	if err != nil {
		return nil, err
	}

	return &esapi.SearchRequest{
		Index:          []string{q.Index},
		Body:           bytes.NewReader(body),
		From:           &from,
		Size:           &size,
		TrackTotalHits: true,
	}, nil
}

func buildCohortQuery(q CohortQuery) map[string]interface{} {
	f := q.Filters
	filterClauses := []interface{}{}

	for _, term := range []struct{ field, value string }{
		{"platform", f.Platform},
		{"gender", f.Gender},
		{"interestedIn", f.InterestedIn},
		{"country", f.Country},
		{"city", f.City},
	} {
		if term.value != "" {
			filterClauses = append(filterClauses, map[string]interface{}{
				"term": map[string]interface{}{term.field: term.value},
			})
		}
	}

	if f.AgeMin > 0 || f.AgeMax > 0 {
		ageRange := map[string]interface{}{}
		if f.AgeMin > 0 {
			ageRange["gte"] = f.AgeMin
		}
		if f.AgeMax > 0 {
			ageRange["lte"] = f.AgeMax
		}
		filterClauses = append(filterClauses, map[string]interface{}{
			"range": map[string]interface{}{"age": ageRange},
		})
	}

	if f.MinDays > 0 {
		filterClauses = append(filterClauses, map[string]interface{}{
			"range": map[string]interface{}{"daysInPeriod": map[string]interface{}{"gte": f.MinDays}},
		})
	}

	boolQuery := map[string]interface{}{
		"must": []interface{}{map[string]interface{}{"match_all": map[string]interface{}{}}},
	}
	if len(filterClauses) > 0 {
		boolQuery["filter"] = filterClauses
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"aggs": map[string]interface{}{
			"avgMatchRate":    map[string]interface{}{"avg": map[string]interface{}{"field": "matchRate"}},
			"avgMatchesTotal": map[string]interface{}{"avg": map[string]interface{}{"field": "matchesTotal"}},
			"avgSwipeLikes":   map[string]interface{}{"avg": map[string]interface{}{"field": "swipeLikesTotal"}},
			"avgDaysInPeriod": map[string]interface{}{"avg": map[string]interface{}{"field": "daysInPeriod"}},
		},
	}

	if q.SortBy != "" {
		query["sort"] = []map[string]interface{}{
			{q.SortBy: "desc"},
			{"profileId": "asc"},
		}
	}

	return query
}
