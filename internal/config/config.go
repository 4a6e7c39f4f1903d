// Package config handles configuration loading for finview.
// It supports YAML config files, a .env file, and environment variable
// overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment variables that carry the upstream API key. EnvAPIKey is the
// bare name the deployment's .env files use.
const (
	EnvAPIKey         = "API_KEY"
	EnvUpstreamAPIKey = "FINVIEW_UPSTREAM_API_KEY"
	envPrefix         = "FINVIEW"
)

// Config represents the complete application configuration.
type Config struct {
	Upstream UpstreamConfig `mapstructure:"upstream" yaml:"upstream"`
	API      APIConfig      `mapstructure:"api"      yaml:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
}

// UpstreamConfig holds settings for the Financial Modeling Prep API.
type UpstreamConfig struct {
	BaseURL   string        `mapstructure:"base_url"   yaml:"base_url"`
	APIKey    string        `mapstructure:"api_key"    yaml:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout"    yaml:"timeout"`
	RateLimit int           `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per second, 0 = unlimited
	CacheTTL  time.Duration `mapstructure:"cache_ttl"  yaml:"cache_ttl"`  // per-symbol income statement cache, 0 = off
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// Addr returns host:port for net/http.
func (a APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.finview/config.yaml (home directory)
//  3. /etc/finview/config.yaml (system)
//
// A .env file in the working directory is loaded first; it never overrides
// variables already set in the process environment.
// Format: FINVIEW_<SECTION>_<KEY>, e.g., FINVIEW_API_PORT
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".finview"))
	v.AddConfigPath("/etc/finview")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with. A missing API key
// is not an error here: the upstream will reject the calls and the
// handlers report that.
func (c *Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port out of range: %d", c.API.Port)
	}
	if c.Upstream.RateLimit < 0 {
		return fmt.Errorf("upstream.rate_limit must not be negative")
	}
	return nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Upstream defaults
	v.SetDefault("upstream.base_url", "https://financialmodelingprep.com/stable")
	v.SetDefault("upstream.api_key", "")
	v.SetDefault("upstream.timeout", 15*time.Second)
	v.SetDefault("upstream.rate_limit", 5)
	v.SetDefault("upstream.cache_ttl", 10*time.Minute)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 5000)
	v.SetDefault("api.cors_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads the API key from the environment.
// FINVIEW_UPSTREAM_API_KEY wins over the bare API_KEY.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv(EnvUpstreamAPIKey); key != "" {
		cfg.Upstream.APIKey = key
		return
	}
	if key := os.Getenv(EnvAPIKey); key != "" {
		cfg.Upstream.APIKey = key
	}
}

// loadDotEnv loads path into the environment if it exists.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("error loading %s: %w", path, err)
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
