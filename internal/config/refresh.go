package config

import (
	"sync"
	"time"
)

type RefreshConfig struct {
	Enabled   bool
	Interval  time.Duration
	BatchSize int
}

var (
	refreshConfig *RefreshConfig
	refreshOnce   sync.Once
)

func LoadRefreshConfig() *RefreshConfig {
	refreshOnce.Do(func() {
		refreshConfig = &RefreshConfig{
			Enabled:   envBool("REFRESH_ENABLED", true),
			Interval:  envDuration("REFRESH_INTERVAL", 15*time.Minute),
			BatchSize: envInt("REFRESH_BATCH_SIZE", 100),
		}
	})
	return refreshConfig
}
