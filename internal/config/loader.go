package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/golobby/cast"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. OVERLAYD_ADDR.
const EnvPrefix = "OVERLAYD"

// Config holds runtime parameters for the host.
// Zero values mean "unspecified" and are replaced by Defaults.
type Config struct {
	Addr        string `json:"addr" yaml:"addr" toml:"addr" env:"ADDR"`
	BaseDir     string `json:"base_dir" yaml:"base_dir" toml:"base_dir" env:"BASE_DIR"`
	PackagesDir string `json:"packages_dir" yaml:"packages_dir" toml:"packages_dir" env:"PACKAGES_DIR"`
	// Application whose wheel options the host serves and dispatches.
	Application string `json:"application" yaml:"application" toml:"application" env:"APPLICATION"`
	LogLevel    string `json:"log_level" yaml:"log_level" toml:"log_level" env:"LOG_LEVEL"`
	LogFormat   string `json:"log_format" yaml:"log_format" toml:"log_format" env:"LOG_FORMAT"`
	// AutoSpin is a cron schedule such as "@every 5m"; empty disables it.
	AutoSpin     string   `json:"auto_spin" yaml:"auto_spin" toml:"auto_spin" env:"AUTO_SPIN"`
	WatchOptions bool     `json:"watch_options" yaml:"watch_options" toml:"watch_options" env:"WATCH_OPTIONS"`
	CORSOrigins  []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins" env:"CORS_ORIGINS"`
	MaxPending   int      `json:"max_pending" yaml:"max_pending" toml:"max_pending" env:"MAX_PENDING"`
	// ShutdownGraceMS is how long a stopped worker gets before SIGTERM.
	ShutdownGraceMS int `json:"shutdown_grace_ms" yaml:"shutdown_grace_ms" toml:"shutdown_grace_ms" env:"SHUTDOWN_GRACE_MS"`
}

// Defaults for unset fields.
const (
	DefaultAddr            = ":7878"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "console"
	DefaultMaxPending      = 64
	DefaultShutdownGraceMS = 3000
)

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// Defaults fills every zero-valued field. BaseDir falls back to the working
// directory.
func (c Config) Defaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.BaseDir == "" {
		if wd, err := os.Getwd(); err == nil {
			c.BaseDir = wd
		}
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.MaxPending <= 0 {
		c.MaxPending = DefaultMaxPending
	}
	if c.ShutdownGraceMS <= 0 {
		c.ShutdownGraceMS = DefaultShutdownGraceMS
	}
	return c
}

// ApplyEnv overlays OVERLAYD_* variables onto c. Unset or empty variables
// leave the field alone. List fields take comma separated values.
func (c *Config) ApplyEnv() error {
	return applyEnv(c, os.LookupEnv)
}

func applyEnv(c *Config, lookup func(string) (string, bool)) error {
	rv := reflect.ValueOf(c).Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		tag, ok := f.Tag.Lookup("env")
		if !ok {
			continue
		}
		name := EnvPrefix + "_" + tag
		raw, ok := lookup(name)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		field := rv.Field(i)
		if field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String {
			field.Set(reflect.ValueOf(splitList(raw)))
			continue
		}
		v, err := cast.FromType(strings.TrimSpace(raw), field.Type())
		if err != nil {
			return fmt.Errorf("%s: cannot convert %q to %v: %w", name, raw, field.Type(), err)
		}
		field.Set(reflect.ValueOf(v))
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
