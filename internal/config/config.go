package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Backend selects which concrete store adapter is built at startup.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendDatabase Backend = "database"
)

// Config holds all configuration for the application.
type Config struct {
	Storage   Storage   `mapstructure:"storage"`
	Logger    Logger    `mapstructure:"logger"`
	Server    Server    `mapstructure:"server"`
	PriceFeed PriceFeed `mapstructure:"pricefeed"`
	Watcher   Watcher   `mapstructure:"watcher"`
	Session   Session   `mapstructure:"session"`
}

// Storage holds the configuration for the persistence backend.
type Storage struct {
	Backend Backend `mapstructure:"backend"`
	DSN     string  `mapstructure:"dsn"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port int `mapstructure:"port"`
}

// PriceFeed holds the configuration for the public ticker API.
type PriceFeed struct {
	BaseURL        string  `mapstructure:"base_url"`
	Quote          string  `mapstructure:"quote"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Watcher holds the configuration for the periodic alert check.
type Watcher struct {
	OwnerID  string   `mapstructure:"owner_id"`
	Assets   []string `mapstructure:"assets"`
	Interval int      `mapstructure:"interval"` // seconds
}

// Session holds the configuration for issued bearer tokens. IssueKey guards
// token issuance over HTTP; when empty, tokens come only from `tracker session issue`.
type Session struct {
	TTLMinutes int    `mapstructure:"ttl_minutes"`
	IssueKey   string `mapstructure:"issue_key"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate rejects configurations that cannot be wired.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendDatabase:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the %q backend", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("storage.backend", string(BackendDatabase))
	v.SetDefault("storage.dsn", "tracker.db")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("server.port", 8080)
	v.SetDefault("pricefeed.base_url", "https://api.binance.com/api/v3")
	v.SetDefault("pricefeed.quote", "USDT")
	v.SetDefault("pricefeed.rate_limit", 10)      // requests per second
	v.SetDefault("pricefeed.rate_limit_burst", 5) // burst size
	v.SetDefault("watcher.interval", 60)
	v.SetDefault("watcher.owner_id", "")
	v.SetDefault("watcher.assets", []string{})
	v.SetDefault("session.ttl_minutes", 60*24)
	v.SetDefault("session.issue_key", "")

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		// Defaults and environment are enough to run without a file.
		err = nil
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}
	err = config.Validate()
	return
}
