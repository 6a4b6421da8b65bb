package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Backend   BackendConfig   `mapstructure:"backend"`
	Poll      PollConfig      `mapstructure:"poll"`
	Downloads DownloadsConfig `mapstructure:"downloads"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Probe     ProbeConfig     `mapstructure:"probe"`
}

// BackendConfig locates the processing backend.
type BackendConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// TimeoutSeconds bounds each request; 0 disables the limit.
	TimeoutSeconds int `mapstructure:"timeout"`
}

// PollConfig controls task status polling.
type PollConfig struct {
	IntervalMS  int `mapstructure:"interval_ms"`
	MaxFailures int `mapstructure:"max_failures"`
}

// DownloadsConfig controls saving produced files locally.
type DownloadsConfig struct {
	Dir   string `mapstructure:"dir"`
	Fetch bool   `mapstructure:"fetch"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// DashboardConfig holds the live dashboard server configuration.
type DashboardConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// ProbeConfig locates the media probe tools.
type ProbeConfig struct {
	FFprobePath   string `mapstructure:"ffprobe_path"`
	MediaInfoPath string `mapstructure:"mediainfo_path"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL: "http://localhost:11000",
		},
		Poll: PollConfig{
			IntervalMS: 1000,
		},
		Downloads: DownloadsConfig{
			Dir: "./downloads",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Dashboard: DashboardConfig{
			Host: "127.0.0.1",
			Port: 11080,
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > .env > config file > defaults
func Load(configPath string) (*Config, error) {
	return load(configPath, ".env")
}

func load(configPath, envFile string) (*Config, error) {
	// Existing environment variables win over .env entries.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.clipforge")
	}

	v.SetEnvPrefix("CLIPFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("backend.base_url", d.Backend.BaseURL)
	v.SetDefault("backend.timeout", d.Backend.TimeoutSeconds)

	v.SetDefault("poll.interval_ms", d.Poll.IntervalMS)
	v.SetDefault("poll.max_failures", d.Poll.MaxFailures)

	v.SetDefault("downloads.dir", d.Downloads.Dir)
	v.SetDefault("downloads.fetch", d.Downloads.Fetch)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.path", d.Logging.Path)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)

	v.SetDefault("dashboard.enabled", d.Dashboard.Enabled)
	v.SetDefault("dashboard.host", d.Dashboard.Host)
	v.SetDefault("dashboard.port", d.Dashboard.Port)

	v.SetDefault("probe.ffprobe_path", d.Probe.FFprobePath)
	v.SetDefault("probe.mediainfo_path", d.Probe.MediaInfoPath)
}

// Validate rejects values the client cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return fmt.Errorf("backend.base_url must not be empty")
	}
	if c.Backend.TimeoutSeconds < 0 {
		return fmt.Errorf("backend.timeout must not be negative")
	}
	if c.Poll.IntervalMS <= 0 {
		return fmt.Errorf("poll.interval_ms must be positive, got %d", c.Poll.IntervalMS)
	}
	if c.Poll.MaxFailures < 0 {
		return fmt.Errorf("poll.max_failures must not be negative")
	}
	if c.Dashboard.Enabled && (c.Dashboard.Port <= 0 || c.Dashboard.Port > 65535) {
		return fmt.Errorf("dashboard.port out of range: %d", c.Dashboard.Port)
	}
	return nil
}

// Timeout returns the per-request backend timeout.
func (c *BackendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Interval returns the poll interval.
func (c *PollConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// Address returns the dashboard listen address.
func (c *DashboardConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
