package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the dashboard API.
	Listen string `yaml:"listen" json:"listen"`

	// APIBaseURL is the webhook endpoint all logical queries go to
	// (e.g. "https://your-n8n-instance.com/webhook"). Required; the
	// NACHHILFE_API_URL environment variable overrides it.
	APIBaseURL string `yaml:"api_base_url" json:"api_base_url"`

	// APIToken, if set, is sent as a bearer token on every request.
	APIToken string `yaml:"api_token,omitempty" json:"api_token,omitempty"`

	// Timezone is the IANA timezone used as canonical display zone
	// (e.g. "Europe/Berlin"). Date bucketing (today / this week) happens
	// in this zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron-style schedule string (e.g. "*/5 * * * *")
	// used to re-warm the calendar cache in the background. Empty disables
	// the scheduled warm; the cache TTL still bounds staleness.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CalendarTTLSeconds bounds the staleness of the calendar feed cache.
	CalendarTTLSeconds int `yaml:"calendar_ttl_seconds" json:"calendar_ttl_seconds"`

	// RosterTTLSeconds bounds the staleness of the student/teacher lists,
	// which change far less often than the calendar itself.
	RosterTTLSeconds int `yaml:"roster_ttl_seconds" json:"roster_ttl_seconds"`

	// FetchTimeoutSeconds bounds a single webhook round trip.
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds" json:"fetch_timeout_seconds"`

	// UpcomingLimit caps the "next appointments" view.
	UpcomingLimit int `yaml:"upcoming_limit" json:"upcoming_limit"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:              "127.0.0.1:8080",
		APIBaseURL:          "",
		Timezone:            "Europe/Berlin",
		RefreshCron:         "*/5 * * * *",
		CalendarTTLSeconds:  300,
		RosterTTLSeconds:    1800,
		FetchTimeoutSeconds: 15,
		UpcomingLimit:       5,
		LogLevel:            "info",
		BasicAuth:           nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "Europe/Berlin"
	}
	if c.CalendarTTLSeconds <= 0 {
		c.CalendarTTLSeconds = 300
	}
	if c.RosterTTLSeconds <= 0 {
		c.RosterTTLSeconds = 1800
	}
	if c.FetchTimeoutSeconds <= 0 {
		c.FetchTimeoutSeconds = 15
	}
	if c.UpcomingLimit <= 0 {
		c.UpcomingLimit = 5
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// ApplyEnv overlays environment overrides onto the loaded config. The API
// base URL is the one secret-ish value operators typically keep out of the
// config file.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("NACHHILFE_API_URL"); v != "" {
		c.APIBaseURL = v
	}
	if v := os.Getenv("NACHHILFE_API_TOKEN"); v != "" {
		c.APIToken = v
	}
}

// Validate checks the parts of the configuration the application cannot run
// without. A missing webhook URL is a startup-blocking condition, not a
// runtime error inside the engine.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("api_base_url is required (set it in the config file or via NACHHILFE_API_URL)")
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api_base_url %q is not a valid absolute URL", c.APIBaseURL)
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".nachhilfecal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// Set permissions to 0600 on temp file before rename.
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	// Rename over the target path.
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
