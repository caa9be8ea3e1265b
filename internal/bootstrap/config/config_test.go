package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaultsAndFile(t *testing.T) {
	path := writeConfig(t, `
app:
  env: test
database:
  dsn: state/test.sqlite
scanner:
  backend: disabled
scan_queue:
  attempt_timeout: 90s
`)

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Scanner.Backend != "disabled" {
		t.Fatalf("scanner backend = %q", cfg.Scanner.Backend)
	}
	if cfg.ScanQueue.AttemptTimeout != 90*time.Second {
		t.Fatalf("attempt timeout = %v", cfg.ScanQueue.AttemptTimeout)
	}
	if cfg.ScanQueue.MaxAttempts != 3 || cfg.ScanQueue.FallbackPolicy != "reject" {
		t.Fatalf("scan queue defaults = %+v", cfg.ScanQueue)
	}
	if cfg.Scanner.Timeout != 2*time.Minute {
		t.Fatalf("scanner timeout = %v", cfg.Scanner.Timeout)
	}
}

func TestLoadRejectsDisabledScannerInProduction(t *testing.T) {
	path := writeConfig(t, `
app:
  env: production
scanner:
  backend: disabled
`)

	_, err := Load(context.Background(), path)
	if err == nil || !strings.Contains(err.Error(), "disabled") {
		t.Fatalf("Load() error = %v, want disabled backend rejection", err)
	}
}

func TestValidateFallbackPolicy(t *testing.T) {
	cfg := Config{
		App:       AppConfig{Env: "local"},
		Database:  DatabaseConfig{DSN: "x.sqlite"},
		Storage:   StorageConfig{UploadDir: "u", QuarantineDir: "q"},
		Scanner:   ScannerConfig{Backend: "clamd"},
		ScanQueue: ScanQueueConfig{Workers: 1, MaxAttempts: 3, AttemptTimeout: time.Minute, FallbackPolicy: "maybe"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate() expected error for fallback policy")
	}

	cfg.ScanQueue.FallbackPolicy = "allow"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
app:
  env: test
scanner:
  backend: cli
`)
	t.Setenv("SF_SCAN_QUEUE_FALLBACK_POLICY", "allow")

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ScanQueue.FallbackPolicy != "allow" {
		t.Fatalf("fallback policy = %q, want allow from env", cfg.ScanQueue.FallbackPolicy)
	}
}

func TestIsNonProductionOnlyLocalAndTest(t *testing.T) {
	for env, want := range map[string]bool{
		"local":       true,
		"TEST":        true,
		"dev":         false,
		"development": false,
		"staging":     false,
		"production":  false,
		"":            false,
	} {
		cfg := Config{App: AppConfig{Env: env}}
		if got := cfg.IsNonProduction(); got != want {
			t.Fatalf("IsNonProduction(%q) = %v, want %v", env, got, want)
		}
	}
}
