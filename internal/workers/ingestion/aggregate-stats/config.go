// internal/workers/ingestion/aggregate-stats/config.go
package aggregatestats

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
