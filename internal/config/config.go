package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		Debug    bool   `yaml:"debug"`
	} `yaml:"telegram"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		Path          string `yaml:"path"`
		IntervalHours int    `yaml:"interval_hours"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	GoogleCalendar struct {
		Enabled           bool   `yaml:"enabled"`
		ServiceAccountKey string `yaml:"service_account_key_path"`
		CalendarID        string `yaml:"calendar_id"`
		TimeZone          string `yaml:"time_zone"`
		ApplicationName   string `yaml:"application_name"`
	} `yaml:"google_calendar"`

	Booking struct {
		HorizonDays int `yaml:"horizon_days"`
		OpenHour    int `yaml:"open_hour"`
		CloseHour   int `yaml:"close_hour"`
		SlotMinutes int `yaml:"slot_minutes"`
	} `yaml:"booking"`

	Reminders struct {
		IntervalMinutes int `yaml:"interval_minutes"`
	} `yaml:"reminders"`

	API struct {
		Enabled bool   `yaml:"enabled"`
		Listen  string `yaml:"listen"`
		Token   string `yaml:"token"`
	} `yaml:"api"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`
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
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/massagebot.db"
	}
	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// HorizonDays is the number of days ahead to keep slots generated for.
func (c *Config) HorizonDays() int {
	if c.Booking.HorizonDays <= 0 {
		return 7
	}
	return c.Booking.HorizonDays
}

// OpenHour is the first bookable hour of the day.
func (c *Config) OpenHour() int {
	if c.Booking.OpenHour <= 0 {
		return 9
	}
	return c.Booking.OpenHour
}

// CloseHour is the hour after the last bookable slot.
func (c *Config) CloseHour() int {
	if c.Booking.CloseHour <= 0 {
		return 17
	}
	return c.Booking.CloseHour
}

// SlotMinutes is the length of a generated slot.
func (c *Config) SlotMinutes() int {
	if c.Booking.SlotMinutes <= 0 {
		return 60
	}
	return c.Booking.SlotMinutes
}

// ReminderInterval is how often the reminder job scans the ledger.
func (c *Config) ReminderInterval() time.Duration {
	if c.Reminders.IntervalMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Reminders.IntervalMinutes) * time.Minute
}
