// Package config loads and validates relay configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/title-relay/internal/override"
)

// Identity of the service, used in the outbound User-Agent.
const (
	ServiceName = "title-relay"
	Repository  = "https://github.com/JakeFAU/title-relay"
)

// Version is stamped at build time with -ldflags "-X ...config.Version=...".
var Version = "dev"

// DefaultUserAgent names the relay, its version, and where to learn about it.
func DefaultUserAgent() string {
	return fmt.Sprintf("%s/%s (+%s)", ServiceName, Version, Repository)
}

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Watchdog  WatchdogConfig  `mapstructure:"watchdog"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Overrides []override.Spec `mapstructure:"overrides"`
	// File is the config file read or seeded, empty when running on defaults alone.
	File string `mapstructure:"-"`
}

// ServerConfig controls the inbound HTTP listener.
type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// FetchConfig governs outbound requests to target sites.
type FetchConfig struct {
	MaxPayloadSize    int64         `mapstructure:"max_payload_size"`
	MaxDecodedSize    int64         `mapstructure:"max_decoded_size"`
	MaxRedirects      int           `mapstructure:"max_redirects"`
	Timeout           time.Duration `mapstructure:"timeout"`
	AdminContact      string        `mapstructure:"admin_contact"`
	PreferredLanguage string        `mapstructure:"preferred_language"`
	UserAgent         string        `mapstructure:"user_agent"`
}

// WatchdogConfig bounds the end-to-end time of a relay request.
type WatchdogConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	Disabled bool          `mapstructure:"disabled"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// MetricsConfig controls the Prometheus admin listener. Port 0 disables it.
type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

// RateLimitConfig sets the per-client inbound token bucket. RPS 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// DefaultConfigFile is seeded in the working directory when no config file is
// given and none is found on the search path.
const DefaultConfigFile = "titlerelay.yaml"

// Load builds a Config from disk/environment. When the named file, or with no
// name any file on the search path, does not exist, the defaults are written
// out so operators have a file to edit.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TITLERELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", "TITLERELAY_SERVER_PORT", "PORT"); err != nil {
		return Config{}, fmt.Errorf("bind port env: %w", err)
	}

	setDefaults(v)

	file, err := readConfig(v, path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.File = file
	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = DefaultUserAgent()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func readConfig(v *viper.Viper, path string) (string, error) {
	if path == "" {
		v.SetConfigName("titlerelay")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/titlerelay/")
		err := v.ReadInConfig()
		if err == nil {
			return v.ConfigFileUsed(), nil
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return "", fmt.Errorf("read config: %w", err)
		}
		if err := seedDefaults(DefaultConfigFile); err != nil {
			// A read-only working directory still runs on defaults.
			return "", nil //nolint:nilerr // seeding is best effort here
		}
		return DefaultConfigFile, nil
	}

	v.SetConfigFile(path)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := seedDefaults(path); err != nil {
			return "", fmt.Errorf("seed config %s: %w", path, err)
		}
		return path, nil
	}
	if err := v.ReadInConfig(); err != nil {
		return "", fmt.Errorf("read config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// seedDefaults writes only the built-in defaults to path, never values that
// came from the environment.
func seedDefaults(path string) error {
	seed := viper.New()
	setDefaults(seed)
	if err := seed.SafeWriteConfigAs(path); err != nil {
		return fmt.Errorf("write defaults: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 6643)
	v.SetDefault("server.read_header_timeout", 5*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("fetch.max_payload_size", 1_000_000)
	v.SetDefault("fetch.max_decoded_size", 10_000_000)
	v.SetDefault("fetch.max_redirects", 5)
	v.SetDefault("fetch.timeout", 3*time.Second)
	v.SetDefault("fetch.admin_contact", "someone@example.com")
	v.SetDefault("fetch.preferred_language", "en;q=0.9, de;q=0.5, *;q=0.3")
	v.SetDefault("fetch.user_agent", "")
	v.SetDefault("watchdog.timeout", 3*time.Second)
	v.SetDefault("watchdog.disabled", false)
	v.SetDefault("logging.development", false)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("ratelimit.rps", 0)
	v.SetDefault("ratelimit.burst", 1)
	v.SetDefault("overrides", []map[string]string{})
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be within 1-65535")
	}
	if c.Fetch.MaxPayloadSize <= 0 {
		return fmt.Errorf("fetch.max_payload_size must be > 0")
	}
	if c.Fetch.MaxDecodedSize <= 0 {
		return fmt.Errorf("fetch.max_decoded_size must be > 0")
	}
	if c.Fetch.MaxRedirects < 0 {
		return fmt.Errorf("fetch.max_redirects must be >= 0")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0")
	}
	if !c.Watchdog.Disabled && c.Watchdog.Timeout <= 0 {
		return fmt.Errorf("watchdog.timeout must be > 0 unless the watchdog is disabled")
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be within 0-65535")
	}
	if c.Metrics.Port != 0 && c.Metrics.Port == c.Server.Port {
		return fmt.Errorf("metrics.port must differ from server.port")
	}
	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("ratelimit.rps must be >= 0")
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0 {
		return fmt.Errorf("ratelimit.burst must be > 0 when rate limiting is enabled")
	}
	return nil
}
