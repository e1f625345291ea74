// Package config defines service configuration structures and loading hooks.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/okian/trustmatch/internal/domain/matching"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageBolt   = "bolt"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// EventQueueSize bounds the in-memory activity queue.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of activity workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the event id deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// Storage is memory or bolt; BoltPath is required for bolt.
	Storage  string `koanf:"storage"`
	BoltPath string `koanf:"bolt_path"`

	FraudWindowDays    int `koanf:"fraud_window_days"`
	RecentActivityDays int `koanf:"recent_activity_days"`

	// Fraud heuristic thresholds.
	DuplicateTargetThreshold int `koanf:"duplicate_target_threshold"`
	BurstMaxAccountAgeHours  int `koanf:"burst_max_account_age_hours"`
	BurstActivityThreshold   int `koanf:"burst_activity_threshold"`

	MatchWeights matching.Weights `koanf:"match_weights"`

	// MaxPageSize caps the size of recommendation pages.
	MaxPageSize int `koanf:"max_page_size"`

	// HistoryLimit caps GET /trust/{id}/history?limit.
	HistoryLimit int `koanf:"history_limit"`

	// KafkaBrokers enables notification publishing when non-empty.
	KafkaBrokers []string `koanf:"kafka_brokers"`
	KafkaTopic   string   `koanf:"kafka_topic"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:                 "info",
		LogFormat:                "text",
		Addr:                     ":9080",
		EventQueueSize:           10_000,
		WorkerCount:              runtime.NumCPU() * 4,
		DedupeSize:               500_000,
		Storage:                  StorageMemory,
		BoltPath:                 "data/trustmatch.db",
		FraudWindowDays:          7,
		RecentActivityDays:       30,
		DuplicateTargetThreshold: 3,
		BurstMaxAccountAgeHours:  24,
		BurstActivityThreshold:   5,
		MatchWeights:             matching.DefaultWeights(),
		MaxPageSize:              100,
		HistoryLimit:             100,
		KafkaTopic:               "trustmatch.notifications",
	}
}

// FraudWindow is the lookback the fraud detector inspects.
func (c *Config) FraudWindow() time.Duration {
	return time.Duration(c.FraudWindowDays) * 24 * time.Hour
}

// RecentActivityWindow is the lookback for the trust activity factor.
func (c *Config) RecentActivityWindow() time.Duration {
	return time.Duration(c.RecentActivityDays) * 24 * time.Hour
}

// BurstMaxAccountAge is the account age below which burst activity is flagged.
func (c *Config) BurstMaxAccountAge() time.Duration {
	return time.Duration(c.BurstMaxAccountAgeHours) * time.Hour
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	positive := []struct {
		name string
		v    int
	}{
		{"queue_size", c.EventQueueSize},
		{"worker_count", c.WorkerCount},
		{"dedupe_size", c.DedupeSize},
		{"fraud_window_days", c.FraudWindowDays},
		{"recent_activity_days", c.RecentActivityDays},
		{"duplicate_target_threshold", c.DuplicateTargetThreshold},
		{"burst_max_account_age_hours", c.BurstMaxAccountAgeHours},
		{"burst_activity_threshold", c.BurstActivityThreshold},
		{"max_page_size", c.MaxPageSize},
		{"history_limit", c.HistoryLimit},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, p.name, p.v)
		}
	}

	switch {
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Storage != StorageMemory && c.Storage != StorageBolt:
		return fmt.Errorf("%w: unknown storage %q", ErrInvalidConfig, c.Storage)
	case c.Storage == StorageBolt && strings.TrimSpace(c.BoltPath) == "":
		return fmt.Errorf("%w: bolt_path is required for bolt storage", ErrInvalidConfig)
	case len(c.KafkaBrokers) > 0 && strings.TrimSpace(c.KafkaTopic) == "":
		return fmt.Errorf("%w: kafka_topic is required with kafka_brokers", ErrInvalidConfig)
	}
	if err := c.MatchWeights.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
