package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dmmcquay/goban-mcp/internal/ai"
	"github.com/dmmcquay/goban-mcp/internal/board"
)

// EnvPrefix prefixes every environment override, e.g. GOBAN_AI_ITERATIONS.
const EnvPrefix = "GOBAN"

// DefaultVersion is reported when the config does not override it.
const DefaultVersion = "0.1.0"

// DefaultMaxIterations caps a single search request.
const DefaultMaxIterations = 20000

type Config struct {
	// Engine configuration
	Engine EngineConfig `mapstructure:"engine"`

	// AI search configuration
	AI AIConfig `mapstructure:"ai"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `mapstructure:"rateLimit"`

	// Search result cache configuration
	Cache CacheConfig `mapstructure:"cache"`
}

type EngineConfig struct {
	DefaultSize int     `mapstructure:"defaultSize"`
	DefaultKomi float64 `mapstructure:"defaultKomi"`
	MaxSessions int     `mapstructure:"maxSessions"`
}

type AIConfig struct {
	Strategy   string `mapstructure:"strategy"`
	Iterations int    `mapstructure:"iterations"`
	// MaxIterations bounds the iterations a caller may ask for.
	MaxIterations int           `mapstructure:"maxIterations"`
	Exploration   float64       `mapstructure:"exploration"`
	UsePrior      bool          `mapstructure:"usePrior"`
	Timeout       time.Duration `mapstructure:"timeout"`
	StaleRetries  int           `mapstructure:"staleRetries"`
}

type ServerConfig struct {
	Name            string        `mapstructure:"name"`
	Version         string        `mapstructure:"version"`
	Description     string        `mapstructure:"description"`
	HTTPEnabled     bool          `mapstructure:"httpEnabled"`
	HTTPAddress     string        `mapstructure:"httpAddress"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RateLimitConfig limits tool calls. PerToolLimits is keyed by lower-cased
// tool name.
type RateLimitConfig struct {
	Enabled        bool           `mapstructure:"enabled"`
	RequestsPerMin int            `mapstructure:"requestsPerMin"`
	BurstSize      int            `mapstructure:"burstSize"`
	PerToolLimits  map[string]int `mapstructure:"perToolLimits"`
}

type CacheConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxItems     int           `mapstructure:"maxItems"`
	MaxSizeBytes int64         `mapstructure:"maxSizeBytes"`
	TTL          time.Duration `mapstructure:"ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.defaultSize", 19)
	v.SetDefault("engine.defaultKomi", 6.5)
	v.SetDefault("engine.maxSessions", 100)

	v.SetDefault("ai.strategy", string(ai.MCTS))
	v.SetDefault("ai.iterations", ai.DefaultIterations)
	v.SetDefault("ai.maxIterations", DefaultMaxIterations)
	v.SetDefault("ai.exploration", ai.DefaultExploration)
	v.SetDefault("ai.usePrior", true)
	v.SetDefault("ai.timeout", 10*time.Second)
	v.SetDefault("ai.staleRetries", 2)

	v.SetDefault("server.name", "goban-mcp")
	v.SetDefault("server.version", DefaultVersion)
	v.SetDefault("server.description", "Go rules engine and move search for MCP")
	v.SetDefault("server.httpEnabled", true)
	v.SetDefault("server.httpAddress", "127.0.0.1:8080")
	v.SetDefault("server.shutdownTimeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.requestsPerMin", 120)
	v.SetDefault("rateLimit.burstSize", 20)
	v.SetDefault("rateLimit.perToolLimits", map[string]int{"aiMove": 30})

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.maxItems", 1000)
	v.SetDefault("cache.maxSizeBytes", int64(16<<20))
	v.SetDefault("cache.ttl", time.Hour)
}

// Load builds the configuration from defaults, an optional JSON file and
// GOBAN_* environment variables, in increasing order of precedence.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	// viper folds keys to lower case inconsistently across sources.
	limits := make(map[string]int, len(cfg.RateLimit.PerToolLimits))
	for tool, n := range cfg.RateLimit.PerToolLimits {
		limits[strings.ToLower(tool)] = n
	}
	cfg.RateLimit.PerToolLimits = limits

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if !board.ValidSize(c.Engine.DefaultSize) {
		return fmt.Errorf("engine.defaultSize must be 9, 13 or 19, got %d", c.Engine.DefaultSize)
	}
	if _, err := ai.ParseStrategy(c.AI.Strategy); err != nil {
		return err
	}
	if c.Logging.Format != "" && c.Logging.Format != "json" && c.Logging.Format != "text" {
		return errors.New("logging.format must be json or text")
	}

	// Clamp numeric ranges
	if c.Engine.MaxSessions < 1 {
		c.Engine.MaxSessions = 1
	}
	if c.AI.Iterations < 1 {
		c.AI.Iterations = 1
	}
	if c.AI.MaxIterations < 1 {
		c.AI.MaxIterations = DefaultMaxIterations
	}
	if c.AI.Iterations > c.AI.MaxIterations {
		c.AI.Iterations = c.AI.MaxIterations
	}
	if c.AI.Exploration < 0 {
		c.AI.Exploration = 0
	}
	if c.AI.Timeout < 0 {
		c.AI.Timeout = 0
	}
	if c.AI.StaleRetries < 0 {
		c.AI.StaleRetries = 0
	}
	if c.Server.ShutdownTimeout < time.Second {
		c.Server.ShutdownTimeout = time.Second
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerMin < 1 {
			c.RateLimit.RequestsPerMin = 1
		}
		if c.RateLimit.BurstSize < 1 {
			c.RateLimit.BurstSize = 1
		}
	}

	if c.Cache.MaxItems < 0 {
		c.Cache.MaxItems = 0
	}

	return nil
}

func GetConfigPath() string {
	// Check environment variable first
	if path := os.Getenv("GOBAN_MCP_CONFIG"); path != "" {
		return path
	}

	// Check current directory
	if _, err := os.Stat("config.json"); err == nil {
		return "config.json"
	}

	// Check home directory
	if home, err := os.UserHomeDir(); err == nil {
		configPath := filepath.Join(home, ".goban-mcp", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}

	return ""
}
