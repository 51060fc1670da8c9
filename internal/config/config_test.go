// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadRequiresJWTSecret(t *testing.T) {
	if _, err := Load(); err == nil {
		t.Fatal("Load without a JWT secret must fail validation")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RELAY_SECURITY_JWT_SECRET", testSecret)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8090 {
		t.Errorf("Server.Port = %d, want 8090", cfg.Server.Port)
	}
	if cfg.Queue.BatchSize != 100 || cfg.Queue.MaxBatchSize != 500 {
		t.Errorf("queue batch defaults = %d/%d", cfg.Queue.BatchSize, cfg.Queue.MaxBatchSize)
	}
	if cfg.Queue.BatchDelay != 5*time.Second {
		t.Errorf("BatchDelay = %s, want 5s", cfg.Queue.BatchDelay)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("Store.Backend = %q, want memory", cfg.Store.Backend)
	}
	if cfg.Security.SessionTimeout != 24*time.Hour {
		t.Errorf("SessionTimeout = %s, want 24h", cfg.Security.SessionTimeout)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RELAY_SECURITY_JWT_SECRET", testSecret)
	t.Setenv("RELAY_SERVER_PORT", "9000")
	t.Setenv("RELAY_QUEUE_BATCH_SIZE", "50")
	t.Setenv("RELAY_QUEUE_BATCH_DELAY", "2s")
	t.Setenv("RELAY_LOGGING_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Queue.BatchSize != 50 {
		t.Errorf("Queue.BatchSize = %d, want 50", cfg.Queue.BatchSize)
	}
	if cfg.Queue.BatchDelay != 2*time.Second {
		t.Errorf("Queue.BatchDelay = %s, want 2s", cfg.Queue.BatchDelay)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadCORSOriginsFromEnv(t *testing.T) {
	t.Setenv("RELAY_SECURITY_JWT_SECRET", testSecret)
	t.Setenv("RELAY_SERVER_CORS_ORIGINS", "https://pharmacy.example.com, https://ops.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"https://pharmacy.example.com", "https://ops.example.com"}
	if len(cfg.Server.CORSOrigins) != len(want) {
		t.Fatalf("CORSOrigins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
	for i := range want {
		if cfg.Server.CORSOrigins[i] != want[i] {
			t.Fatalf("CORSOrigins[%d] = %q, want %q", i, cfg.Server.CORSOrigins[i], want[i])
		}
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	yaml := strings.Join([]string{
		"server:",
		"  port: 8443",
		"security:",
		"  jwt_secret: " + testSecret,
		"store:",
		"  backend: badger",
		"  path: " + filepath.Join(dir, "prefs"),
	}, "\n")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8443 {
		t.Errorf("Server.Port = %d, want 8443", cfg.Server.Port)
	}
	if cfg.Store.Backend != "badger" {
		t.Errorf("Store.Backend = %q, want badger", cfg.Store.Backend)
	}
}

func TestEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	yaml := "server:\n  port: 8443\nsecurity:\n  jwt_secret: " + testSecret + "\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("RELAY_SERVER_PORT", "9001")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("Server.Port = %d, want 9001 (env should win)", cfg.Server.Port)
	}
}

func TestValidateCrossFieldRules(t *testing.T) {
	base := func() *Config {
		cfg := defaultConfig()
		cfg.Security.JWTSecret = testSecret
		return cfg
	}

	cfg := base()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("baseline config invalid: %v", err)
	}

	cfg = base()
	cfg.Queue.BatchSize = 600
	if err := cfg.Validate(); err == nil {
		t.Error("batch_size above max_batch_size must fail")
	}

	cfg = base()
	cfg.Store.Backend = "badger"
	cfg.Store.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Error("badger backend without a path must fail")
	}

	cfg = base()
	cfg.Security.JWTSecret = "short"
	if err := cfg.Validate(); err == nil {
		t.Error("short JWT secret must fail")
	}

	cfg = base()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown log level must fail")
	}
}
