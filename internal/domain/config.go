package domain

import (
	"errors"
	"fmt"
	"time"
)

// Config is everything the service reads at startup. The tier picks the
// backends; env overrides are applied on top in main.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Tier       Tier             `json:"tier"`
	Rules      RulesConfig      `json:"rules"`
	Simulation SimulationConfig `json:"simulation"`

	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	Logging LoggingConfig `json:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	ReadTimeout    int      `json:"readTimeout"`  // seconds
	WriteTimeout   int      `json:"writeTimeout"` // seconds
	AllowedOrigins []string `json:"allowedOrigins"`
}

// RulesConfig points at an optional YAML ruleset.
// An empty Path means the built-in ruleset.
type RulesConfig struct {
	Path string `json:"path"`
}

// SimulationConfig limits simulation calls against a stored assessment.
type SimulationConfig struct {
	MaxPerMinute int `json:"maxPerMinute"` // 0 disables the limit
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// Tier is a deployment profile. Community runs on SQLite, an in-memory
// cache and channels; pro runs on PostgreSQL, Redis and NATS.
type Tier string

const (
	TierCommunity Tier = "community"
	TierPro       Tier = "pro"
)

// DefaultConfig is the single-node community setup.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    30,
			WriteTimeout:   30,
			AllowedOrigins: []string{"*"},
		},
		Tier: TierCommunity,
		Simulation: SimulationConfig{
			MaxPerMinute: 30,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./redflag.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// ProConfig is the multi-node setup. Only connection details differ from
// DefaultConfig.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "redflag",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	return cfg
}

// Validate reports every setting that would fail at startup.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("server port %d out of range", c.Server.Port)
	}
	if c.Simulation.MaxPerMinute < 0 {
		add("simulation limit must not be negative")
	}

	switch c.Repository.Driver {
	case "sqlite":
		if c.Repository.SQLitePath == "" {
			add("sqlite path is required")
		}
	case "postgres":
		if c.Repository.PostgresHost == "" || c.Repository.PostgresDB == "" {
			add("postgres host and database are required")
		}
	default:
		add("unsupported repository driver %q", c.Repository.Driver)
	}

	switch c.Cache.Type {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			add("redis address is required")
		}
	default:
		add("unsupported cache type %q", c.Cache.Type)
	}

	switch c.EventBus.Type {
	case "channel":
	case "nats":
		if c.EventBus.NATSUrl == "" {
			add("nats url is required")
		}
	default:
		add("unsupported event bus type %q", c.EventBus.Type)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		add("unsupported log format %q", c.Logging.Format)
	}

	return errors.Join(errs...)
}
