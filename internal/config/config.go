// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

// Package config holds all application configuration, loaded in layers
// (defaults, optional YAML file, environment variables) via Koanf v2.
//
// Config is immutable after Load() and safe for concurrent reads.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Relay server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Queue    QueueConfig    `koanf:"queue"`
	Cache    CacheConfig    `koanf:"cache"`
	Hub      HubConfig      `koanf:"hub"`
	Store    StoreConfig    `koanf:"store"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout time.Duration `koanf:"timeout"`
	// CORSOrigins lists allowed origins for browser clients. Empty means
	// same-origin only.
	CORSOrigins []string `koanf:"cors_origins"`
}

// SecurityConfig holds authentication and rate limiting settings.
// Token issuance lives in the platform's auth service; Relay only verifies.
type SecurityConfig struct {
	// JWTSecret is the shared HMAC secret used to verify handshake tokens.
	JWTSecret string `koanf:"jwt_secret" validate:"required,min=32"`

	// SessionTimeout bounds how long an issued token stays valid.
	SessionTimeout time.Duration `koanf:"session_timeout"`

	// RateLimitReqs / RateLimitWindow bound API requests per client IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// QueueConfig tunes the priority queue optimizer.
type QueueConfig struct {
	// BatchSize is how many items one batch flush drains from a tier.
	BatchSize int `koanf:"batch_size" validate:"gte=1"`

	// MaxBatchSize caps self-tuning batch growth.
	MaxBatchSize int `koanf:"max_batch_size" validate:"gte=1"`

	// BatchDelay is the debounce before a non-urgent tier is flushed.
	BatchDelay time.Duration `koanf:"batch_delay"`

	// SweepInterval is the periodic all-tier flush guaranteeing progress.
	SweepInterval time.Duration `koanf:"sweep_interval"`

	// OptimizeThreshold is the total queued volume above which batch size grows.
	OptimizeThreshold int `koanf:"optimize_threshold"`

	// MaxItemAge force-drains a tier whose oldest item exceeds this age.
	MaxItemAge time.Duration `koanf:"max_item_age"`
}

// CacheConfig tunes the ephemeral TTL cache.
type CacheConfig struct {
	// DefaultTTL applies when callers do not pass an explicit TTL.
	DefaultTTL time.Duration `koanf:"default_ttl"`

	// MaxEntries bounds the table; the sweeper evicts oldest entries beyond it.
	MaxEntries int `koanf:"max_entries" validate:"gte=1"`

	// SweepInterval is how often the background sweep runs.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// HubConfig tunes websocket connection handling.
type HubConfig struct {
	// SendBuffer is the per-connection outbound channel capacity.
	SendBuffer int `koanf:"send_buffer"`

	// InboundRate / InboundBurst limit client events per connection.
	InboundRate  float64 `koanf:"inbound_rate"`
	InboundBurst int     `koanf:"inbound_burst"`
}

// StoreConfig selects the preference store implementation.
type StoreConfig struct {
	// Backend is "memory" or "badger".
	Backend string `koanf:"backend" validate:"oneof=memory badger"`

	// Path is the badger database directory (badger backend only).
	Path string `koanf:"path"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Validate checks that required configuration is present and consistent.
// Structural constraints are covered by validator tags; cross-field rules
// live here.
func (c *Config) Validate() error {
	if err := validateStruct(c); err != nil {
		return err
	}

	if c.Queue.BatchSize > c.Queue.MaxBatchSize {
		return fmt.Errorf("queue.batch_size (%d) must not exceed queue.max_batch_size (%d)",
			c.Queue.BatchSize, c.Queue.MaxBatchSize)
	}
	if c.Queue.BatchDelay <= 0 {
		return fmt.Errorf("queue.batch_delay must be positive, got %s", c.Queue.BatchDelay)
	}
	if c.Queue.SweepInterval <= 0 {
		return fmt.Errorf("queue.sweep_interval must be positive, got %s", c.Queue.SweepInterval)
	}
	if c.Cache.SweepInterval <= 0 {
		return fmt.Errorf("cache.sweep_interval must be positive, got %s", c.Cache.SweepInterval)
	}
	if c.Store.Backend == "badger" && c.Store.Path == "" {
		return fmt.Errorf("store.path is required when store.backend=badger")
	}

	return nil
}
