package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Checkpoint selects where the client stores its last-poll time.
type Checkpoint struct {
	// Backend is one of "sqlite", "redis" or "memory".
	Backend     string `mapstructure:"backend"`
	Path        string `mapstructure:"path"`
	RedisAddr   string `mapstructure:"redis_addr"`
	RedisPrefix string `mapstructure:"redis_prefix"`
}

// Platform selects the desktop notification surface.
type Platform struct {
	// Kind is one of "log", "exec" or "none".
	Kind    string `mapstructure:"kind"`
	Command string `mapstructure:"command"`
	// Permission is "granted", "denied" or "prompt".
	Permission    string  `mapstructure:"permission"`
	RatePerMinute float64 `mapstructure:"rate_per_minute"`
	Burst         int     `mapstructure:"burst"`
}

// Credentials selects where the bearer token comes from.
type Credentials struct {
	// Source is one of "static" or "keyring".
	Source  string `mapstructure:"source"`
	Token   string `mapstructure:"token"`
	Service string `mapstructure:"service"`
	FileDir string `mapstructure:"file_dir"`
}

// Watcher is the configuration of the notification watcher client.
type Watcher struct {
	APIURL       string        `mapstructure:"api_url"`
	UserID       string        `mapstructure:"user_id"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	MetricsAddr  string        `mapstructure:"metrics_addr"`
	Credentials  Credentials   `mapstructure:"credentials"`
	Checkpoint   Checkpoint    `mapstructure:"checkpoint"`
	Platform     Platform      `mapstructure:"platform"`
	Log          Log           `mapstructure:"log"`
	Telemetry    Telemetry     `mapstructure:"telemetry"`
}

// DefaultWatcherPath returns ~/.config/notify-watcher/config.yaml.
func DefaultWatcherPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "notify-watcher", "config.yaml")
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "notify-watcher")
}

func watcherDefaults(v *viper.Viper) {
	stateDir := defaultStateDir()

	v.SetDefault("api_url", "http://localhost:8080")
	v.SetDefault("user_id", "")
	v.SetDefault("poll_interval", "30s")
	v.SetDefault("fetch_timeout", "15s")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("credentials.source", "static")
	v.SetDefault("credentials.token", "")
	v.SetDefault("credentials.service", "notify-watcher")
	v.SetDefault("credentials.file_dir", filepath.Join(stateDir, "credentials"))
	v.SetDefault("checkpoint.backend", "sqlite")
	v.SetDefault("checkpoint.path", filepath.Join(stateDir, "state.db"))
	v.SetDefault("checkpoint.redis_addr", "localhost:6379")
	v.SetDefault("checkpoint.redis_prefix", "")
	v.SetDefault("platform.kind", "log")
	v.SetDefault("platform.command", "notify-send")
	v.SetDefault("platform.permission", "granted")
	v.SetDefault("platform.rate_per_minute", 20.0)
	v.SetDefault("platform.burst", 5)
	v.SetDefault("log.release", false)
	v.SetDefault("log.file", filepath.Join(stateDir, "watcher.log"))
	v.SetDefault("telemetry.service_name", "notify-watcher")
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.insecure", true)
}

// LoadWatcher reads the watcher configuration from the YAML file at path,
// applying NOTIFY_* environment overrides (NOTIFY_CHECKPOINT_BACKEND for
// checkpoint.backend). A missing file yields the defaults.
func LoadWatcher(path string) (*Watcher, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("NOTIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	watcherDefaults(v)

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			var pathErr *os.PathError
			if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	cfg := &Watcher{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (w *Watcher) Validate() error {
	if w.APIURL == "" {
		return errors.New("api_url is required")
	}
	switch w.Checkpoint.Backend {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("unknown checkpoint backend %q", w.Checkpoint.Backend)
	}
	switch w.Platform.Kind {
	case "log", "exec", "none":
	default:
		return fmt.Errorf("unknown platform kind %q", w.Platform.Kind)
	}
	switch w.Platform.Permission {
	case "granted", "denied", "prompt":
	default:
		return fmt.Errorf("unknown platform permission %q", w.Platform.Permission)
	}
	switch w.Credentials.Source {
	case "static", "keyring":
	default:
		return fmt.Errorf("unknown credentials source %q", w.Credentials.Source)
	}
	return nil
}

func WatcherLogSettings(w *Watcher) Log {
	return w.Log
}
