// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

type CalendarConfig struct {
	// Timezone decides which calendar day a booking falls on.
	Timezone   string  `yaml:"timezone"`
	SlotHeight float64 `yaml:"slot_height"`
	MinHeight  float64 `yaml:"min_height"`
}

// ViewStateConfig selects where the CLI keeps its calendar view between runs.
type ViewStateConfig struct {
	Backend string        `yaml:"backend"` // file or redis
	Dir     string        `yaml:"dir"`
	Owner   string        `yaml:"owner"`
	TTL     time.Duration `yaml:"ttl"`
	Redis   struct {
		Addr     string `yaml:"addr"`
		DB       int    `yaml:"db"`
		Password string `yaml:"-"` // Loaded from environment
	} `yaml:"redis"`
}

type SchedulerConfig struct {
	StatusSweepCron string `yaml:"status_sweep_cron"`
}

type RateLimitConfig struct {
	// MutationsPerMinute is the sustained rate of booking writes per client IP.
	MutationsPerMinute int `yaml:"mutations_per_minute"`
	Burst              int `yaml:"burst"`
}

// ClientConfig is used by the CLI to reach the backend.
type ClientConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Timeout        time.Duration `yaml:"timeout"`
	RequestsPerSec float64       `yaml:"requests_per_second"`
	MaxRetries     int           `yaml:"max_retries"`
}

type Config struct {
	App struct {
		Name            string        `yaml:"name"`
		Environment     string        `yaml:"environment"`
		Port            int           `yaml:"port"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"app"`

	Database  DatabaseConfig  `yaml:"database"`
	Calendar  CalendarConfig  `yaml:"calendar"`
	ViewState ViewStateConfig `yaml:"view_state"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Client    ClientConfig    `yaml:"client"`

	Features struct {
		EnableMetrics bool `yaml:"enable_metrics"`
		EnableDebug   bool `yaml:"enable_debug"`
	} `yaml:"features"`
}

// Default returns a configuration that runs without a config file.
func Default() *Config {
	var cfg Config
	cfg.App.Name = "venuecal"
	cfg.App.Environment = "development"
	cfg.App.Port = 8080
	cfg.Database.Driver = "sqlite"
	cfg.Database.Filename = "data/venuecal.db"
	cfg.applyDefaults()
	return &cfg
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML, fills defaults, applies environment overrides and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.ShutdownTimeout == 0 {
		c.App.ShutdownTimeout = 30 * time.Second
	}
	if c.Calendar.Timezone == "" {
		c.Calendar.Timezone = "UTC"
	}
	if c.Calendar.SlotHeight == 0 {
		c.Calendar.SlotHeight = 48
	}
	if c.Calendar.MinHeight == 0 {
		c.Calendar.MinHeight = 36
	}
	if c.ViewState.Backend == "" {
		c.ViewState.Backend = "file"
	}
	if c.ViewState.Dir == "" {
		c.ViewState.Dir = ".venuecal"
	}
	if c.ViewState.Owner == "" {
		c.ViewState.Owner = "default"
	}
	if c.Scheduler.StatusSweepCron == "" {
		c.Scheduler.StatusSweepCron = "*/5 * * * *"
	}
	if c.RateLimit.MutationsPerMinute == 0 {
		c.RateLimit.MutationsPerMinute = 60
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 10
	}
	if c.Client.BaseURL == "" {
		c.Client.BaseURL = fmt.Sprintf("http://localhost:%d", c.App.Port)
	}
	if c.Client.Timeout == 0 {
		c.Client.Timeout = 10 * time.Second
	}
	if c.Client.RequestsPerSec == 0 {
		c.Client.RequestsPerSec = 10
	}
	if c.Client.MaxRetries == 0 {
		c.Client.MaxRetries = 3
	}
}

// applyEnv loads secrets and a few deployment overrides from the environment.
func (c *Config) applyEnv() {
	c.ViewState.Redis.Password = os.Getenv("REDIS_PASSWORD")
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.ViewState.Redis.Addr = addr
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.App.Port = p
		}
	}
	if url := os.Getenv("VENUECAL_URL"); url != "" {
		c.Client.BaseURL = url
	}
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Calendar.SlotHeight < 0 || c.Calendar.MinHeight < 0 {
		return fmt.Errorf("calendar slot height must not be negative")
	}

	switch c.ViewState.Backend {
	case "file":
	case "redis":
		if c.ViewState.Redis.Addr == "" {
			return fmt.Errorf("redis address is required for the redis view state backend")
		}
	default:
		return fmt.Errorf("unsupported view state backend: %s", c.ViewState.Backend)
	}

	if _, err := cron.ParseStandard(c.Scheduler.StatusSweepCron); err != nil {
		return fmt.Errorf("invalid status sweep cron %q: %w", c.Scheduler.StatusSweepCron, err)
	}
	if c.RateLimit.MutationsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit values must not be negative")
	}
	return nil
}

// Location resolves the calendar timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Calendar.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid calendar timezone %q: %w", c.Calendar.Timezone, err)
	}
	return loc, nil
}
