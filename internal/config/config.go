package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	NodeID   string `yaml:"node_id"`
	HTTPPort int    `yaml:"http_port"`
	Debug    bool   `yaml:"debug"`
	LogLevel string `yaml:"log_level"`

	DataDir      string `yaml:"data_dir"`
	StoreBackend string `yaml:"store_backend"` // memory | badger
	ListBackend  string `yaml:"list_backend"`  // memory | badger | sqlite

	TickInterval     time.Duration `yaml:"tick_interval"`
	MaxJobDuration   time.Duration `yaml:"max_job_duration"`
	HistoryCap       int           `yaml:"history_cap"`
	FeedSize         int           `yaml:"feed_size"`
	EmailProbability float64       `yaml:"email_probability"`
	PageSize         int           `yaml:"page_size"`

	RateWindow    time.Duration `yaml:"rate_window"`
	RateMaxStarts int           `yaml:"rate_max_starts"`

	// Per-client API throttling.
	APIRPS   float64 `yaml:"api_rps"`
	APIBurst int     `yaml:"api_burst"`
}

func defaults() *Config {
	return &Config{
		NodeID:           "node-default",
		HTTPPort:         8000,
		LogLevel:         "info",
		DataDir:          "./data",
		StoreBackend:     "memory",
		ListBackend:      "memory",
		TickInterval:     500 * time.Millisecond,
		MaxJobDuration:   10 * time.Minute,
		HistoryCap:       50,
		FeedSize:         50,
		EmailProbability: 0.3,
		PageSize:         25,
		RateWindow:       time.Hour,
		RateMaxStarts:    5,
		APIRPS:           20,
		APIBurst:         40,
	}
}

// Load reads the YAML file named by CONFIG_FILE, if any, then applies
// environment variables on top.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile is Load with an explicit file path. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	c := defaults()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	c.applyEnv()
	return c, nil
}

func (c *Config) applyEnv() {
	c.NodeID = getEnv("NODE_ID", c.NodeID)
	c.HTTPPort = getEnvInt("HTTP_PORT", c.HTTPPort)
	c.Debug = getEnvBool("DEBUG", c.Debug)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.DataDir = getEnv("DATA_DIR", c.DataDir)
	c.StoreBackend = getEnv("STORE_BACKEND", c.StoreBackend)
	c.ListBackend = getEnv("LIST_BACKEND", c.ListBackend)
	c.TickInterval = getEnvDuration("TICK_INTERVAL", c.TickInterval)
	c.MaxJobDuration = getEnvDuration("MAX_JOB_DURATION", c.MaxJobDuration)
	c.HistoryCap = getEnvInt("HISTORY_CAP", c.HistoryCap)
	c.FeedSize = getEnvInt("FEED_SIZE", c.FeedSize)
	c.EmailProbability = getEnvFloat("EMAIL_PROBABILITY", c.EmailProbability)
	c.PageSize = getEnvInt("PAGE_SIZE", c.PageSize)
	c.RateWindow = getEnvDuration("RATE_WINDOW", c.RateWindow)
	c.RateMaxStarts = getEnvInt("RATE_MAX_STARTS", c.RateMaxStarts)
	c.APIRPS = getEnvFloat("API_RPS", c.APIRPS)
	c.APIBurst = getEnvInt("API_BURST", c.APIBurst)
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("http_port %d out of range", c.HTTPPort))
	}
	switch c.StoreBackend {
	case "memory", "badger":
	default:
		errs = append(errs, fmt.Errorf("store_backend %q: want memory or badger", c.StoreBackend))
	}
	switch c.ListBackend {
	case "memory", "badger", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("list_backend %q: want memory, badger or sqlite", c.ListBackend))
	}
	if c.UsesDisk() && strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("data_dir is required for on-disk backends"))
	}
	if c.TickInterval <= 0 {
		errs = append(errs, errors.New("tick_interval must be positive"))
	}
	if c.MaxJobDuration <= 0 {
		errs = append(errs, errors.New("max_job_duration must be positive"))
	}
	if c.HistoryCap <= 0 {
		errs = append(errs, errors.New("history_cap must be positive"))
	}
	if c.FeedSize <= 0 {
		errs = append(errs, errors.New("feed_size must be positive"))
	}
	if c.EmailProbability < 0 || c.EmailProbability > 1 {
		errs = append(errs, fmt.Errorf("email_probability %v not in [0, 1]", c.EmailProbability))
	}
	if c.PageSize <= 0 || c.PageSize > 500 {
		errs = append(errs, fmt.Errorf("page_size %d not in 1..500", c.PageSize))
	}
	if c.RateWindow <= 0 {
		errs = append(errs, errors.New("rate_window must be positive"))
	}
	if c.RateMaxStarts <= 0 {
		errs = append(errs, errors.New("rate_max_starts must be positive"))
	}
	if c.APIRPS <= 0 || c.APIBurst <= 0 {
		errs = append(errs, errors.New("api_rps and api_burst must be positive"))
	}
	return errors.Join(errs...)
}

// UsesDisk reports whether any backend writes under DataDir.
func (c *Config) UsesDisk() bool {
	return c.StoreBackend == "badger" || c.ListBackend == "badger" || c.ListBackend == "sqlite"
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("500ms") or whole seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if i, err := strconv.Atoi(v); err == nil {
		return time.Duration(i) * time.Second
	}
	return fallback
}
