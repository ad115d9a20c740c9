package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. EVCAL_LISTEN.
const EnvPrefix = "EVCAL"

const (
	defaultListen      = "127.0.0.1:8080"
	defaultWeekStart   = "sunday"
	defaultLogLevel    = "info"
	defaultLeadMinutes = 5
	defaultScan        = "@every 1m"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// RemindersConfig controls desktop reminders.
type RemindersConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// LeadMinutes is how far ahead of its start an event is announced.
	// Values outside 1..5 are clamped to 5.
	LeadMinutes int `yaml:"lead_minutes" json:"lead_minutes"`

	// Scan is the cron spec of the periodic re-plan, e.g. "@every 1m".
	Scan string `yaml:"scan" json:"scan"`
}

// Lead returns LeadMinutes as a duration.
func (r RemindersConfig) Lead() time.Duration {
	return time.Duration(r.LeadMinutes) * time.Minute
}

type CSVConfig struct {
	// ExportIDs adds an ID column to exported CSV.
	ExportIDs bool `yaml:"export_ids" json:"export_ids"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone that defines "local" for dates, times
	// and reminders. Empty means the host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "sunday" (default) or "monday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// DataDir holds the key-value store.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	Reminders RemindersConfig `yaml:"reminders" json:"reminders"`
	CSV       CSVConfig       `yaml:"csv" json:"csv"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:    defaultListen,
		WeekStart: defaultWeekStart,
		DataDir:   DefaultDataDir(),
		LogLevel:  defaultLogLevel,
		Reminders: RemindersConfig{
			Enabled:     true,
			LeadMinutes: defaultLeadMinutes,
			Scan:        defaultScan,
		},
	}
}

// DefaultDataDir is $XDG_STATE_HOME/evcal, falling back to
// ~/.local/state/evcal and finally ./evcal-data.
func DefaultDataDir() string {
	if x := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); x != "" {
		return filepath.Join(x, "evcal")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "evcal")
	}
	return "evcal-data"
}

// DefaultPath is $XDG_CONFIG_HOME/evcal/config.yaml or the
// os.UserConfigDir equivalent.
func DefaultPath() string {
	if x := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); x != "" {
		return filepath.Join(x, "evcal", "config.yaml")
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "evcal", "config.yaml")
	}
	return "evcal.yaml"
}

// Normalize fills in missing/zero values with defaults so partially
// filled configs still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	c.WeekStart = strings.ToLower(strings.TrimSpace(c.WeekStart))
	if c.WeekStart != "monday" && c.WeekStart != "sunday" {
		c.WeekStart = defaultWeekStart
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir()
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Reminders.LeadMinutes <= 0 || c.Reminders.LeadMinutes > defaultLeadMinutes {
		c.Reminders.LeadMinutes = defaultLeadMinutes
	}
	if strings.TrimSpace(c.Reminders.Scan) == "" {
		c.Reminders.Scan = defaultScan
	}
	if c.BasicAuth != nil && c.BasicAuth.Username == "" && c.BasicAuth.Password == "" {
		c.BasicAuth = nil
	}
}

// WeekStartDay maps WeekStart onto a time.Weekday.
func (c *Config) WeekStartDay() time.Weekday {
	if c.WeekStart == "monday" {
		return time.Monday
	}
	return time.Sunday
}

// Location resolves Timezone; an empty or unknown zone yields time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load reads the YAML file at path, then applies EVCAL_* environment
// overrides.
//
// On first run (no file) a default config is written with 0600 perms
// and returned; environment overrides are applied to the returned value
// but not saved.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	var cfg *Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = DefaultConfig()
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
	case err != nil:
		return nil, err
	default:
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	cfg.Normalize()
	return cfg, nil
}

// applyEnv overrides cfg fields from the environment.
func applyEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)

	_ = v.BindEnv("listen")
	_ = v.BindEnv("timezone")
	_ = v.BindEnv("week_start")
	_ = v.BindEnv("data_dir")
	_ = v.BindEnv("log_level")
	_ = v.BindEnv("reminders_enabled")
	_ = v.BindEnv("reminders_lead_minutes")
	_ = v.BindEnv("reminders_scan")
	_ = v.BindEnv("csv_export_ids")
	_ = v.BindEnv("basic_auth_username")
	_ = v.BindEnv("basic_auth_password")

	if v.IsSet("listen") {
		cfg.Listen = v.GetString("listen")
	}
	if v.IsSet("timezone") {
		cfg.Timezone = v.GetString("timezone")
	}
	if v.IsSet("week_start") {
		cfg.WeekStart = v.GetString("week_start")
	}
	if v.IsSet("data_dir") {
		cfg.DataDir = v.GetString("data_dir")
	}
	if v.IsSet("log_level") {
		cfg.LogLevel = v.GetString("log_level")
	}
	if v.IsSet("reminders_enabled") {
		cfg.Reminders.Enabled = v.GetBool("reminders_enabled")
	}
	if v.IsSet("reminders_lead_minutes") {
		cfg.Reminders.LeadMinutes = v.GetInt("reminders_lead_minutes")
	}
	if v.IsSet("reminders_scan") {
		cfg.Reminders.Scan = v.GetString("reminders_scan")
	}
	if v.IsSet("csv_export_ids") {
		cfg.CSV.ExportIDs = v.GetBool("csv_export_ids")
	}
	if v.IsSet("basic_auth_username") || v.IsSet("basic_auth_password") {
		if cfg.BasicAuth == nil {
			cfg.BasicAuth = &BasicAuthConfig{}
		}
		if v.IsSet("basic_auth_username") {
			cfg.BasicAuth.Username = v.GetString("basic_auth_username")
		}
		if v.IsSet("basic_auth_password") {
			cfg.BasicAuth.Password = v.GetString("basic_auth_password")
		}
	}
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) if needed.
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

	tmp, err := os.CreateTemp(dir, ".evcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
