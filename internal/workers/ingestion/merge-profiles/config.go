// internal/workers/ingestion/merge-profiles/config.go
package mergeprofiles

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
