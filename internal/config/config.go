package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file name looked up in the working directory.
const DefaultFile = "compass.yml"

// Store backends
const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Environment overrides
const (
	EnvRedisURL     = "COMPASS_REDIS_URL"
	EnvNamespace    = "COMPASS_NAMESPACE"
	EnvStoreBackend = "COMPASS_STORE_BACKEND"
)

// CompassConfig represents the top-level compass.yml configuration
type CompassConfig struct {
	Version  string          `yaml:"version"`
	Store    StoreConfig     `yaml:"store"`
	AI       AIConfig        `yaml:"ai"`
	Autosave AutosaveConfig  `yaml:"autosave"`
	Log      LogConfig       `yaml:"log"`
	Services *ServicesConfig `yaml:"services,omitempty"`
}

// StoreConfig selects and addresses the project store medium
type StoreConfig struct {
	Backend    string `yaml:"backend"`     // "redis" or "sqlite"
	RedisURL   string `yaml:"redis_url"`   // Used when backend is redis
	SQLitePath string `yaml:"sqlite_path"` // Used when backend is sqlite
	Namespace  string `yaml:"namespace"`   // Key prefix scope, lets several canvases share one medium
}

// AIConfig configures the AI gateway
type AIConfig struct {
	Model             string        `yaml:"model"`
	DraftModel        string        `yaml:"draft_model,omitempty"`
	APIKeyEnv         string        `yaml:"api_key_env"` // Name of the env var holding the key; the key itself never lives in the file
	BaseURL           string        `yaml:"base_url,omitempty"`
	Temperature       float64       `yaml:"temperature"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Timeout           time.Duration `yaml:"timeout"`
}

// AutosaveConfig tunes debounced persistence
type AutosaveConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// LogConfig sets the structured log level
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// ServicesConfig specifies service-level overrides for `compass store up`
type ServicesConfig struct {
	Redis *ServiceOverride `yaml:"redis,omitempty"`
}

// ServiceOverride allows overriding the default Redis image and host port
type ServiceOverride struct {
	Image string `yaml:"image,omitempty"`
	Port  int    `yaml:"port,omitempty"`
}

// Default returns the configuration used when no compass.yml exists.
func Default() *CompassConfig {
	return &CompassConfig{
		Version: "1.0",
		Store: StoreConfig{
			Backend:    BackendSQLite,
			RedisURL:   "redis://localhost:6379/0",
			SQLitePath: ".compass/compass.db",
			Namespace:  "default",
		},
		AI: AIConfig{
			Model:             "gemini-3-flash-preview",
			DraftModel:        "gemini-3-pro-preview",
			APIKeyEnv:         "GEMINI_API_KEY",
			Temperature:       0.1,
			RequestsPerMinute: 30,
			Timeout:           60 * time.Second,
		},
		Autosave: AutosaveConfig{Debounce: 800 * time.Millisecond},
		Log:      LogConfig{Level: "info"},
	}
}

// Validate performs strict validation on the configuration and fills defaults for omitted fields
func (c *CompassConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	def := Default()

	if c.Store.Backend == "" {
		c.Store.Backend = def.Store.Backend
	}
	if c.Store.RedisURL == "" {
		c.Store.RedisURL = def.Store.RedisURL
	}
	switch c.Store.Backend {
	case BackendRedis:
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			c.Store.SQLitePath = def.Store.SQLitePath
		}
	default:
		return fmt.Errorf("invalid store.backend: %s (must be 'redis' or 'sqlite')", c.Store.Backend)
	}
	if c.Store.Namespace == "" {
		c.Store.Namespace = def.Store.Namespace
	}
	if strings.ContainsAny(c.Store.Namespace, ": ") {
		return fmt.Errorf("invalid store.namespace %q: must not contain ':' or spaces", c.Store.Namespace)
	}

	if c.AI.Model == "" {
		c.AI.Model = def.AI.Model
	}
	if c.AI.APIKeyEnv == "" {
		c.AI.APIKeyEnv = def.AI.APIKeyEnv
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("ai.temperature must be between 0 and 2, got %g", c.AI.Temperature)
	}
	if c.AI.RequestsPerMinute < 0 {
		return fmt.Errorf("ai.requests_per_minute must be >= 0 (0 = unlimited), got %d", c.AI.RequestsPerMinute)
	}
	if c.AI.Timeout == 0 {
		c.AI.Timeout = def.AI.Timeout
	}
	if c.AI.Timeout < 0 {
		return fmt.Errorf("ai.timeout must be positive, got %s", c.AI.Timeout)
	}

	if c.Autosave.Debounce == 0 {
		c.Autosave.Debounce = def.Autosave.Debounce
	}
	if c.Autosave.Debounce < 0 {
		return fmt.Errorf("autosave.debounce must be positive, got %s", c.Autosave.Debounce)
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}

	if c.Services != nil && c.Services.Redis != nil {
		if p := c.Services.Redis.Port; p < 0 || p > 65535 {
			return fmt.Errorf("services.redis.port out of range: %d", p)
		}
	}

	return nil
}

// ApplyEnv overrides store settings from the environment.
// getenv is usually os.Getenv; tests pass a map lookup.
func (c *CompassConfig) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvRedisURL); v != "" {
		c.Store.RedisURL = v
	}
	if v := getenv(EnvNamespace); v != "" {
		c.Store.Namespace = v
	}
	if v := getenv(EnvStoreBackend); v != "" {
		c.Store.Backend = v
	}
}

// APIKey returns the AI API key from the configured environment variable.
func (c *CompassConfig) APIKey(getenv func(string) string) string {
	return getenv(c.AI.APIKeyEnv)
}

// ParseLevel converts a level name into a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("invalid log.level: %s (must be debug, info, warn or error)", level)
	}
	return l, nil
}

// Load reads and validates compass.yml from the specified path, then applies env overrides
func Load(path string) (*CompassConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config CompassConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.ApplyEnv(os.Getenv)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadOrDefault loads path, or returns the defaults (with env overrides) when the file does not exist.
func LoadOrDefault(path string) (*CompassConfig, error) {
	config, err := Load(path)
	if err == nil {
		return config, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	config = Default()
	config.ApplyEnv(os.Getenv)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}
