// internal/common/database/elasticsearch.go
package database

import (
	"context"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"

	apperrors "swipestats-workers/internal/common/errors"
	"swipestats-workers/internal/common/config"
)

const serviceElasticsearch = "elasticsearch"

// ElasticsearchClient holds the client for the stats directory index and cohort search.
type ElasticsearchClient struct {
	Client *elasticsearch.Client
}

// NewElasticsearch retries overloaded or restarting nodes inside the transport so a single
// stats write survives a rolling restart.
func NewElasticsearch(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	addresses := cfg.Addresses
	if cfg.URL != "" {
		addresses = []string{cfg.URL}
	}
	if len(addresses) == 0 {
		return nil, fmt.Errorf("elasticsearch address is required")
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:            addresses,
		Username:             cfg.Username,
		Password:             cfg.Password,
		MaxRetries:           3,
		RetryOnStatus:        []int{http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout},
		EnableRetryOnTimeout: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	return &ElasticsearchClient{Client: es}, nil
}

// Ping fails with STORAGE_UNAVAILABLE.
func (c *ElasticsearchClient) Ping(ctx context.Context) error {
	res, err := c.Client.Ping(c.Client.Ping.WithContext(ctx))
	if err != nil {
		return apperrors.NewStorageUnavailableError(serviceElasticsearch, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return apperrors.NewStorageUnavailableError(serviceElasticsearch, fmt.Errorf("ping returned %s", res.Status()))
	}
	return nil
}
