package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"crosslink/internal/config"
)

func TestLoadDefaultConfigUsesEnvAndExpandsPaths(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "test-key")
	t.Setenv("CROSSLINK_API_TOKEN", "secret")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "crosslink")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "crosslink.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.TMDB.APIKey != "test-key" {
		t.Fatalf("expected TMDB key from env, got %q", cfg.TMDB.APIKey)
	}
	if cfg.Paths.APIToken != "secret" {
		t.Fatalf("expected api token from env, got %q", cfg.Paths.APIToken)
	}
	if cfg.MDL.BreakerEnabled {
		t.Fatal("expected breaker disabled by default")
	}
}

func TestDefaultTTLsStayDistinct(t *testing.T) {
	cfg := config.Default()
	if cfg.TitleTTL() != 7*24*time.Hour {
		t.Fatalf("unexpected title ttl %v", cfg.TitleTTL())
	}
	if cfg.StaleSweepAge() != 6*24*time.Hour {
		t.Fatalf("unexpected stale sweep age %v", cfg.StaleSweepAge())
	}
	if cfg.StaleSweepAge() >= cfg.TitleTTL() {
		t.Fatal("expected sweep threshold to stay ahead of read ttl")
	}
	if cfg.PersonTTL() != 7*24*time.Hour {
		t.Fatalf("unexpected person ttl %v", cfg.PersonTTL())
	}
}

func TestLoadParsesFileAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crosslink.toml")
	data, err := toml.Marshal(map[string]any{
		"paths":   map[string]any{"data_dir": filepath.Join(dir, "data")},
		"mdl":     map[string]any{"base_url": "http://proxy.local/ ", "request_timeout_seconds": 3},
		"sync":    map[string]any{"active_statuses": []string{" Watching ", "watching", "on_hold"}},
		"logging": map[string]any{"format": "JSON", "level": "Debug"},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected explicit path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.MDL.BaseURL != "http://proxy.local" {
		t.Fatalf("expected trimmed base url, got %q", cfg.MDL.BaseURL)
	}
	if cfg.MDLRequestTimeout() != 3*time.Second {
		t.Fatalf("unexpected timeout %v", cfg.MDLRequestTimeout())
	}
	if got := strings.Join(cfg.Sync.ActiveStatuses, ","); got != "watching,on_hold" {
		t.Fatalf("unexpected active statuses %q", got)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config %+v", cfg.Logging)
	}
	if cfg.Warm.Concurrency != 3 {
		t.Fatalf("expected default warm concurrency, got %d", cfg.Warm.Concurrency)
	}
}

func TestValidateRejectsSweepLongerThanTTL(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.StaleSweepHours = cfg.Cache.TitleTTLHours + 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero concurrency", func(c *config.Config) { c.Warm.Concurrency = 0 }},
		{"negative round delay", func(c *config.Config) { c.Warm.RoundDelayMS = -1 }},
		{"zero budget", func(c *config.Config) { c.Sync.TimeBudgetSeconds = 0 }},
		{"zero mdl timeout", func(c *config.Config) { c.MDL.RequestTimeoutSeconds = 0 }},
		{"breaker without threshold", func(c *config.Config) {
			c.MDL.BreakerEnabled = true
			c.MDL.BreakerFailureThreshold = 0
		}},
		{"unknown log format", func(c *config.Config) { c.Logging.Format = "xml" }},
		{"zero tmdb rate", func(c *config.Config) { c.TMDB.RequestsPerSecond = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("expected sample to load, exists=%v err=%v", exists, err)
	}
}
