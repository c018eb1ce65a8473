package queries

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"swipestats-workers/internal/repository"
)

// CohortAverages are averaged over every matching document, not just the returned page.
type CohortAverages struct {
	MatchRate    float64 `json:"matchRate"`
	MatchesTotal float64 `json:"matchesTotal"`
	SwipeLikes   float64 `json:"swipeLikesTotal"`
	DaysInPeriod float64 `json:"daysInPeriod"`
}

type QueryResult struct {
	Profiles  []repository.StatsDocument
	TotalHits int64
	Averages  CohortAverages
	Took      int64
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source repository.StatsDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]struct {
		Value *float64 `json:"value"`
	} `json:"aggregations"`
}

// Execute runs q. A missing index yields repository.ErrIndexNotFound.
func Execute(ctx context.Context, esClient *elasticsearch.Client, q CohortQuery) (*QueryResult, error) {
	req, err := BuildQuery(q)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := req.Do(ctx, esClient)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, repository.ErrIndexNotFound
	}
	if res.IsError() {
		return nil, fmt.Errorf("search query failed: %s", res.String())
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := &QueryResult{
		Profiles:  make([]repository.StatsDocument, 0, len(r.Hits.Hits)),
		TotalHits: r.Hits.Total.Value,
		Took:      time.Since(start).Milliseconds(),
	}
	for _, hit := range r.Hits.Hits {
		out.Profiles = append(out.Profiles, hit.Source)
	}

	avg := func(name string) float64 {
		if a, ok := r.Aggregations[name]; ok && a.Value != nil {
			return *a.Value
		}
		return 0
	}
	out.Averages = CohortAverages{
		MatchRate:    avg("avgMatchRate"),
		MatchesTotal: avg("avgMatchesTotal"),
		SwipeLikes:   avg("avgSwipeLikes"),
		DaysInPeriod: avg("avgDaysInPeriod"),
	}
	return out, nil
}
