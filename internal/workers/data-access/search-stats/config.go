// internal/workers/data-access/search-stats/config.go
package searchstats

import "time"

type Config struct {
	Timeout time.Duration
	Index   string
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 15 * time.Second,
		Index:   "profile-stats",
	}
}
