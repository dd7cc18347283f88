package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Target page
	PageURL     string `env:"PAGE_URL,required"`
	DebuggerURL string `env:"DEBUGGER_URL"`
	Headless    bool   `env:"HEADLESS" envDefault:"true"`

	// Project correlation
	ProjectID string `env:"PROJECT_ID"`

	// Persistence. Empty DATABASE_URL selects the in-memory store.
	DatabaseURL string `env:"DATABASE_URL"`

	// Auth collaborator
	AuthUserID string `env:"AUTH_USER_ID"`

	// Scan scheduling. FastMode shortens the inter-scan cooldown for
	// simplified deployments.
	FastMode       bool          `env:"FAST_MODE" envDefault:"false"`
	ScanDebounce   time.Duration `env:"SCAN_DEBOUNCE" envDefault:"1s"`
	FlushInterval  time.Duration `env:"FLUSH_INTERVAL" envDefault:"10s"`
	FlushBatchSize int           `env:"FLUSH_BATCH_SIZE" envDefault:"5"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ScanCooldown returns the minimum interval between scans.
func (c *Config) ScanCooldown() time.Duration {
	if c.FastMode {
		return CooldownFast
	}
	return CooldownRegular
}
