// Package config loads runtime settings for aegis-intel and aegis-core.
//
// Sources are layered, later ones winning:
//
//  1. built-in defaults
//  2. an optional YAML file
//  3. AEGIS_* environment variables (AEGIS_INTEL_INTERVAL -> intel.interval)
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment variables read by Load.
const EnvPrefix = "AEGIS_"

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "AEGIS_CONFIG_PATH"

// DefaultConfigPaths lists the files searched, in order, when no path is given.
var DefaultConfigPaths = []string{
	"aegis.yaml",
	"aegis.yml",
	"/etc/aegis/aegis.yaml",
}

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the root of all settings.
type Config struct {
	Intel    IntelConfig    `koanf:"intel"`
	Alerting AlertingConfig `koanf:"alerting"`
	Core     CoreConfig     `koanf:"core"`
	Cache    CacheConfig    `koanf:"cache"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// IntelConfig drives the simulated detection loop.
type IntelConfig struct {
	Interval        time.Duration `koanf:"interval" validate:"gt=0"`
	FaceThreshold   float64       `koanf:"face_threshold" validate:"gte=0,lte=1"`
	ThreatThreshold float64       `koanf:"threat_threshold" validate:"gte=0,lte=1"`
	Seed            uint64        `koanf:"seed"` // 0 = seed from the clock
}

// AlertingConfig drives the outbound alert client.
type AlertingConfig struct {
	Enabled         bool              `koanf:"enabled"`
	URL             string            `koanf:"url"`
	Level           string            `koanf:"level" validate:"oneof=LEVEL_1_SAFE LEVEL_4_CRITICAL"`
	Timeout         time.Duration     `koanf:"timeout" validate:"gt=0"`
	RatePerSecond   float64           `koanf:"rate_per_second" validate:"gt=0"`
	Burst           int               `koanf:"burst" validate:"gte=1"`
	BreakerFailures uint32            `koanf:"breaker_failures" validate:"gte=1"`
	BreakerTimeout  time.Duration     `koanf:"breaker_timeout" validate:"gt=0"`
	Headers         map[string]string `koanf:"headers"`
}

// CoreConfig drives the aegis-core backend.
type CoreConfig struct {
	Addr              string        `koanf:"addr" validate:"required"`
	DBPath            string        `koanf:"db_path" validate:"required"`
	Profile           string        `koanf:"profile" validate:"oneof=default high_load low_resource"`
	ResetAfter        time.Duration `koanf:"reset_after" validate:"gt=0"`
	TelemetryInterval time.Duration `koanf:"telemetry_interval" validate:"gt=0"`
	SimulateThreats   bool          `koanf:"simulate_threats"`
	EmbedIntel        bool          `koanf:"embed_intel"` // run the detection loop in-process
	CORSOrigins       []string      `koanf:"cors_origins"`
	AlertRatePerMin   int           `koanf:"alert_rate_per_min" validate:"gte=1"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// CacheConfig enables the optional Redis mirror of the threat state.
type CacheConfig struct {
	RedisAddr string        `koanf:"redis_addr"` // empty = disabled
	TTL       time.Duration `koanf:"ttl" validate:"gt=0"`
}

// LoggingConfig selects log level and encoding.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Intel: IntelConfig{
			Interval:        2 * time.Second,
			FaceThreshold:   0.8,
			ThreatThreshold: 0.95,
		},
		Alerting: AlertingConfig{
			Enabled:         false,
			URL:             "http://localhost:8080/alert",
			Level:           "LEVEL_4_CRITICAL",
			Timeout:         2 * time.Second,
			RatePerSecond:   2,
			Burst:           5,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Core: CoreConfig{
			Addr:              ":8080",
			DBPath:            "aegis.db",
			Profile:           "default",
			ResetAfter:        5 * time.Second,
			TelemetryInterval: 800 * time.Millisecond,
			SimulateThreats:   true,
			CORSOrigins:       []string{"*"},
			AlertRatePerMin:   120,
			ShutdownTimeout:   10 * time.Second,
		},
		Cache: CacheConfig{
			TTL: 15 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (or the first
// default path found), and the environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitSliceField(k, "core.cors_origins"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransformFunc maps AEGIS_SECTION_SOME_KEY to section.some_key.
func envTransformFunc(key string) string {
	if key == ConfigPathEnvVar {
		return ""
	}
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	section, rest, ok := strings.Cut(key, "_")
	if !ok || rest == "" {
		return ""
	}
	return section + "." + rest
}

// splitSliceField turns a comma-separated env value into a list.
func splitSliceField(k *koanf.Koanf, key string) error {
	raw, ok := k.Get(key).(string)
	if !ok {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if err := k.Set(key, out); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

var validate = validator.New()

// Validate checks field ranges and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Alerting.Enabled {
		u, err := url.Parse(c.Alerting.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: alerting.url %q must be an absolute http(s) URL", ErrInvalidConfig, c.Alerting.URL)
		}
	}
	return nil
}
