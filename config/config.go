package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultServerURL is the historical upload endpoint baked into the client.
const DefaultServerURL = "http://193.222.99.46:8080"

// Config holds every tunable for the sender and the server. Load returns
// it to the caller, which passes it down explicitly; nothing reads
// configuration through package globals.
type Config struct {
	ServerURL    string        `mapstructure:"server_url"`
	Profile      string        `mapstructure:"profile"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
	Port         int           `mapstructure:"port"`
	StoragePath  string        `mapstructure:"storage_path"`
	RegistryPath string        `mapstructure:"registry_path"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
	Debug        bool          `mapstructure:"debug"`
}

// Load reads the configuration plus environment overrides. path may be
// a directory searched for config.yaml, in which case a missing file is
// fine and defaults apply, or an explicit .yaml file, which must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	explicit := strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")
	if explicit {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(path)
	}
	v.SetEnvPrefix("QUERYBYTE")
	v.AutomaticEnv()

	v.SetDefault("server_url", DefaultServerURL)
	v.SetDefault("profile", "default")
	v.SetDefault("max_retries", 5)
	v.SetDefault("retry_delay", "500ms")
	v.SetDefault("port", 8080)
	v.SetDefault("storage_path", "./uploads")
	v.SetDefault("registry_path", "./registry_db")
	v.SetDefault("session_ttl", "10m")
	v.SetDefault("debug", false)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no component could run with.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url must not be empty")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry_delay must not be negative, got %s", c.RetryDelay)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("session_ttl must not be negative, got %s", c.SessionTTL)
	}
	return nil
}
