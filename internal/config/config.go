package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// TMDB contains configuration for The Movie Database API (the primary catalog).
type TMDB struct {
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url"`
	Language          string  `toml:"language"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// MDL contains configuration for the MyDramaList scraping proxy (the secondary catalog).
type MDL struct {
	BaseURL                 string `toml:"base_url"`
	RequestTimeoutSeconds   int    `toml:"request_timeout_seconds"`
	BreakerEnabled          bool   `toml:"breaker_enabled"`
	BreakerFailureThreshold int    `toml:"breaker_failure_threshold"`
	BreakerCooldownSeconds  int    `toml:"breaker_cooldown_seconds"`
}

// Cache contains the freshness policy for cached links and person profiles.
type Cache struct {
	// TitleTTLHours is the read-time freshness window for title and season links.
	TitleTTLHours int `toml:"title_ttl_hours"`
	// PersonTTLHours is the freshness window for person profiles.
	PersonTTLHours int `toml:"person_ttl_hours"`
	// StaleSweepHours is the scheduled sync threshold. Kept shorter than
	// TitleTTLHours so the sweep refreshes links before readers see them stale.
	StaleSweepHours int `toml:"stale_sweep_hours"`
}

// Warm contains batch settings for the bulk cache warm job.
type Warm struct {
	Concurrency  int `toml:"concurrency"`
	RoundDelayMS int `toml:"round_delay_ms"`
}

// Sync contains settings for the time-boxed scheduled sync.
type Sync struct {
	TimeBudgetSeconds int      `toml:"time_budget_seconds"`
	ItemDelayMS       int      `toml:"item_delay_ms"`
	ActiveStatuses    []string `toml:"active_statuses"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for crosslink.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and API bind address
//   - TMDB: primary catalog credentials and request throttle
//   - MDL: secondary catalog proxy, per-call timeout, optional breaker
//   - Cache: TTLs for links and people, sweep threshold
//   - Warm: bulk warm concurrency and inter-round pause
//   - Sync: scheduled sync budget, per-item delay, active watch statuses
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	TMDB    TMDB    `toml:"tmdb"`
	MDL     MDL     `toml:"mdl"`
	Cache   Cache   `toml:"cache"`
	Warm    Warm    `toml:"warm"`
	Sync    Sync    `toml:"sync"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("crosslink.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite file backing the link store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "crosslink.db")
}

// LockPath returns the file used to keep warm and sync runs single-instance.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "crosslink.lock")
}

// TitleTTL is the read-time freshness window for title and season links.
func (c *Config) TitleTTL() time.Duration {
	return time.Duration(c.Cache.TitleTTLHours) * time.Hour
}

// PersonTTL is the freshness window for person profiles.
func (c *Config) PersonTTL() time.Duration {
	return time.Duration(c.Cache.PersonTTLHours) * time.Hour
}

// StaleSweepAge is the age past which the scheduled sync refreshes a link.
func (c *Config) StaleSweepAge() time.Duration {
	return time.Duration(c.Cache.StaleSweepHours) * time.Hour
}

// MDLRequestTimeout bounds every call to the secondary catalog.
func (c *Config) MDLRequestTimeout() time.Duration {
	return time.Duration(c.MDL.RequestTimeoutSeconds) * time.Second
}

// MDLBreakerCooldown is how long an open breaker rejects calls.
func (c *Config) MDLBreakerCooldown() time.Duration {
	return time.Duration(c.MDL.BreakerCooldownSeconds) * time.Second
}

// WarmRoundDelay is the pause between warm batch rounds.
func (c *Config) WarmRoundDelay() time.Duration {
	return time.Duration(c.Warm.RoundDelayMS) * time.Millisecond
}

// SyncTimeBudget is the soft wall-clock budget of one scheduled sync.
func (c *Config) SyncTimeBudget() time.Duration {
	return time.Duration(c.Sync.TimeBudgetSeconds) * time.Second
}

// SyncItemDelay is the pause between sequential scheduled sync items.
func (c *Config) SyncItemDelay() time.Duration {
	return time.Duration(c.Sync.ItemDelayMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
