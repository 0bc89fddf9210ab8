package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all tether configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Remote   RemoteConfig   `yaml:"remote"`
	Queue    QueueConfig    `yaml:"queue"`
	Cache    CacheConfig    `yaml:"cache"`
	Usage    UsageConfig    `yaml:"usage"`
	Calendar CalendarConfig `yaml:"calendar"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RemoteConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	UserID  string        `yaml:"user_id"`
	Timeout time.Duration `yaml:"timeout"`
}

type QueueConfig struct {
	MaxRetries    int           `yaml:"max_retries"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	DrainInterval time.Duration `yaml:"drain_interval"`
}

type CacheConfig struct {
	MaxSize       int           `yaml:"max_size"`
	Threshold     float64       `yaml:"similarity_threshold"`
	Retention     time.Duration `yaml:"retention"`
	KeepUses      int           `yaml:"keep_uses"` // entries used more than this survive pruning
	PruneInterval time.Duration `yaml:"prune_interval"`
}

type UsageConfig struct {
	MonthlyLimit int `yaml:"monthly_limit"`
}

type CalendarConfig struct {
	Enabled         bool   `yaml:"enabled"`
	CalendarID      string `yaml:"calendar_id"`
	CredentialsFile string `yaml:"credentials_file"` // service account or authorized-user JSON
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37780,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Remote: RemoteConfig{
			BaseURL: "http://localhost:3000/api",
			Timeout: 10 * time.Second,
		},
		Queue: QueueConfig{
			MaxRetries:    3,
			RetryDelay:    5 * time.Second,
			DrainInterval: time.Minute,
		},
		Cache: CacheConfig{
			MaxSize:       100,
			Threshold:     0.8,
			Retention:     30 * 24 * time.Hour,
			KeepUses:      5,
			PruneInterval: 24 * time.Hour,
		},
		Usage: UsageConfig{
			MonthlyLimit: 50,
		},
		Calendar: CalendarConfig{
			CalendarID: "primary",
		},
	}
}

// DefaultPath returns the default config file path: ~/.tether/config.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".tether", "config.yaml"), nil
}

// Load returns the defaults overlaid with the YAML file at path (if it
// exists) and then with TETHER_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the components cannot run with. A zero interval
// disables its background loop and is allowed.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	check(c.Server.Port > 0 && c.Server.Port <= 65535, "server.port %d out of range", c.Server.Port)
	check(c.Remote.Timeout >= 0, "remote.timeout must not be negative")
	check(c.Queue.MaxRetries >= 1, "queue.max_retries must be at least 1, got %d", c.Queue.MaxRetries)
	check(c.Queue.RetryDelay >= 0, "queue.retry_delay must not be negative")
	check(c.Queue.DrainInterval >= 0, "queue.drain_interval must not be negative")
	check(c.Cache.MaxSize >= 1, "cache.max_size must be at least 1, got %d", c.Cache.MaxSize)
	check(c.Cache.Threshold > 0 && c.Cache.Threshold <= 1, "cache.similarity_threshold must be in (0, 1], got %g", c.Cache.Threshold)
	check(c.Cache.Retention > 0, "cache.retention must be positive")
	check(c.Cache.KeepUses >= 0, "cache.keep_uses must not be negative")
	check(c.Cache.PruneInterval >= 0, "cache.prune_interval must not be negative")
	check(c.Usage.MonthlyLimit >= 1, "usage.monthly_limit must be at least 1, got %d", c.Usage.MonthlyLimit)
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("TETHER_REMOTE_URL"); v != "" {
		c.Remote.BaseURL = v
	}
	if v := os.Getenv("TETHER_TOKEN"); v != "" {
		c.Remote.Token = v
	}
	if v := os.Getenv("TETHER_USER_ID"); v != "" {
		c.Remote.UserID = v
	}
	if v := os.Getenv("TETHER_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("TETHER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse TETHER_PORT: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
