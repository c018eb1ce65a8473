package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"swipestats-workers/internal/ingest/pipeline"
	"swipestats-workers/internal/models"
)

var ErrIndexNotFound = pipeline.ErrIndexNotFound

const defaultStatsIndex = "profile-stats"

const statsIndexMapping = `{
  "mappings": {
    "properties": {
      "profileId":             {"type": "keyword"},
      "platform":              {"type": "keyword"},
      "age":                   {"type": "integer"},
      "gender":                {"type": "keyword"},
      "interestedIn":          {"type": "keyword"},
      "city":                  {"type": "keyword"},
      "country":               {"type": "keyword"},
      "matchesTotal":          {"type": "integer"},
      "swipeLikesTotal":       {"type": "integer"},
      "swipePassesTotal":      {"type": "integer"},
      "matchRate":             {"type": "double"},
      "daysInPeriod":          {"type": "integer"},
      "firstDay":              {"type": "date", "format": "yyyy-MM-dd"},
      "lastDay":               {"type": "date", "format": "yyyy-MM-dd"},
      "indexedAt":             {"type": "date"}
    }
  }
}`

// StatsDocument is the directory view of a profile: derived stats plus the identity fields
// listing pages filter on. Nothing consent-gated is included.
type StatsDocument struct {
	ProfileID        string            `json:"profileId"`
	Platform         models.Platform   `json:"platform"`
	Age              int               `json:"age,omitempty"`
	Gender           models.Gender     `json:"gender"`
	InterestedIn     models.Preference `json:"interestedIn"`
	City             string            `json:"city,omitempty"`
	Country          string            `json:"country,omitempty"`
	MatchesTotal     int               `json:"matchesTotal"`
	SwipeLikesTotal  int               `json:"swipeLikesTotal"`
	SwipePassesTotal int               `json:"swipePassesTotal"`
	MatchRate        float64           `json:"matchRate"`
	DaysInPeriod     int               `json:"daysInPeriod"`
	FirstDay         string            `json:"firstDay,omitempty"`
	LastDay          string            `json:"lastDay,omitempty"`
	IndexedAt        time.Time         `json:"indexedAt"`
}

// NewStatsDocument builds the indexed view of p. p must carry Meta.
func NewStatsDocument(p *models.NormalizedProfile, now time.Time) StatsDocument {
	doc := StatsDocument{
		ProfileID:    p.ProfileID,
		Platform:     p.Platform,
		Age:          p.Identity.Age,
		Gender:       p.Identity.Gender,
		InterestedIn: p.Identity.InterestedIn,
		City:         p.Identity.City,
		Country:      p.Identity.Country,
		IndexedAt:    now.UTC(),
	}
	if m := p.Meta; m != nil {
		doc.MatchesTotal = m.MatchesTotal
		doc.SwipeLikesTotal = m.SwipeLikesTotal
		doc.SwipePassesTotal = m.SwipePassesTotal
		doc.MatchRate = m.MatchRate
		doc.DaysInPeriod = m.DaysInPeriod
		doc.FirstDay = m.FirstDay
		doc.LastDay = m.LastDay
	}
	return doc
}

// ElasticsearchStatsIndexer publishes StatsDocuments keyed by profileId.
type ElasticsearchStatsIndexer struct {
	client *elasticsearch.Client
	index  string
	now    func() time.Time
}

func NewElasticsearchStatsIndexer(client *elasticsearch.Client, index string) *ElasticsearchStatsIndexer {
	if index == "" {
		index = defaultStatsIndex
	}
	return &ElasticsearchStatsIndexer{client: client, index: index, now: time.Now}
}

func (i *ElasticsearchStatsIndexer) Index() string { return i.index }

// EnsureIndex creates the stats index with its mapping if missing.
func (i *ElasticsearchStatsIndexer) EnsureIndex(ctx context.Context) error {
	exists := esapi.IndicesExistsRequest{Index: []string{i.index}}
	res, err := exists.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("check index %s: %w", i.index, err)
	}
	res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("check index %s: %s", i.index, res.Status())
	}

	create := esapi.IndicesCreateRequest{
		Index: i.index,
		Body:  strings.NewReader(statsIndexMapping),
	}
	res, err = create.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("create index %s: %w", i.index, err)
	}
	defer res.Body.Close()

	// Another worker may have created it first.
	if res.IsError() && !strings.Contains(res.String(), "resource_already_exists_exception") {
		return fmt.Errorf("create index %s: %s", i.index, res.String())
	}
	return nil
}

// IndexStats upserts the stats document for p.
func (i *ElasticsearchStatsIndexer) IndexStats(ctx context.Context, p *models.NormalizedProfile) error {
	if p == nil || p.Meta == nil {
		return errors.New("index stats: profile has no derived stats")
	}

	body, err := json.Marshal(NewStatsDocument(p, i.now()))
	if err != nil {
		return fmt.Errorf("encode stats document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: p.ProfileID,
		Body:       strings.NewReader(string(body)),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("index stats %s: %w", p.ProfileID, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, i.index)
	}
	if res.IsError() {
		return fmt.Errorf("index stats %s: %s", p.ProfileID, res.String())
	}
	return nil
}
