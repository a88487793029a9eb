// Package config loads the portal configuration and the clinic directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Address string `yaml:"address"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Schedule struct {
		Source          string `yaml:"source"` // local | remote
		BaseURL         string `yaml:"base_url"`
		APIKey          string `yaml:"api_key"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
		WindowDays      int    `yaml:"window_days"`
		Timezone        string `yaml:"timezone"`
		FetchTimeoutSec int    `yaml:"fetch_timeout_seconds"`
	} `yaml:"schedule"`

	Directory struct {
		Path          string `yaml:"path"`
		ReloadSeconds int    `yaml:"reload_seconds"`
	} `yaml:"directory"`

	WhatsApp struct {
		Phone string `yaml:"phone"`
	} `yaml:"whatsapp"`

	Telegram struct {
		BotToken     string  `yaml:"bot_token"`
		StaffChatIDs []int64 `yaml:"staff_chat_ids"`
		DailyDigest  bool    `yaml:"daily_digest"`
		DigestHour   *int    `yaml:"digest_hour"`
	} `yaml:"telegram"`

	Sheets struct {
		Enabled         bool   `yaml:"enabled"`
		CredentialsFile string `yaml:"credentials_file"`
		SpreadsheetID   string `yaml:"spreadsheet_id"`
		Range           string `yaml:"range"`
	} `yaml:"sheets"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Session struct {
		TimeoutMinutes int `yaml:"timeout_minutes"`
	} `yaml:"session"`

	RateLimit struct {
		SubmitPerMinute int `yaml:"submit_per_minute"`
		Burst           int `yaml:"burst"`
	} `yaml:"ratelimit"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/portal.db"
	}

	if cfg.Database.Path != ":memory:" {
		if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Schedule.Source {
	case "", "local":
	case "remote":
		if c.Schedule.BaseURL == "" {
			return fmt.Errorf("schedule.base_url is required for remote source")
		}
	default:
		return fmt.Errorf("schedule.source: unknown value %q", c.Schedule.Source)
	}
	if c.Sheets.Enabled && (c.Sheets.CredentialsFile == "" || c.Sheets.SpreadsheetID == "") {
		return fmt.Errorf("sheets: credentials_file and spreadsheet_id are required when enabled")
	}
	if h := c.DigestHour(); h < 0 || h > 23 {
		return fmt.Errorf("telegram.digest_hour: %d is not an hour of the day", h)
	}
	if _, err := time.LoadLocation(c.TimezoneName()); err != nil {
		return fmt.Errorf("schedule.timezone: %w", err)
	}
	return nil
}

func (c *Config) ServerAddress() string {
	if c.Server.Address == "" {
		return ":8080"
	}
	return c.Server.Address
}

func (c *Config) ScheduleSource() string {
	if c.Schedule.Source == "" {
		return "local"
	}
	return c.Schedule.Source
}

func (c *Config) TimezoneName() string {
	if c.Schedule.Timezone == "" {
		return "Africa/Cairo"
	}
	return c.Schedule.Timezone
}

// Location returns the clinic time zone, UTC if it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimezoneName())
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) WindowDays() int {
	if c.Schedule.WindowDays <= 0 {
		return 14
	}
	return c.Schedule.WindowDays
}

func (c *Config) CacheTTL() time.Duration {
	if c.Schedule.CacheTTLSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.Schedule.CacheTTLSeconds) * time.Second
}

func (c *Config) FetchTimeout() time.Duration {
	if c.Schedule.FetchTimeoutSec <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Schedule.FetchTimeoutSec) * time.Second
}

func (c *Config) DirectoryPath() string {
	if c.Directory.Path == "" {
		return "configs/directory.yaml"
	}
	return c.Directory.Path
}

func (c *Config) DirectoryReload() time.Duration {
	if c.Directory.ReloadSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Directory.ReloadSeconds) * time.Second
}

func (c *Config) SessionTimeout() time.Duration {
	if c.Session.TimeoutMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Session.TimeoutMinutes) * time.Minute
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

func (c *Config) BackupPath() string {
	if c.Backup.Path == "" {
		return "backups"
	}
	return c.Backup.Path
}

func (c *Config) SubmitRate() (perMinute, burst int) {
	perMinute, burst = c.RateLimit.SubmitPerMinute, c.RateLimit.Burst
	if perMinute <= 0 {
		perMinute = 6
	}
	if burst <= 0 {
		burst = 3
	}
	return perMinute, burst
}

func (c *Config) SheetsRange() string {
	if c.Sheets.Range == "" {
		return "Bookings!A:M"
	}
	return c.Sheets.Range
}

// DigestHour is the local hour of the staff daily digest.
func (c *Config) DigestHour() int {
	if c.Telegram.DigestHour == nil {
		return 20
	}
	return *c.Telegram.DigestHour
}
