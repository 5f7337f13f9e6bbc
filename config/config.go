// Package config loads rai-memory configuration from defaults, an optional
// YAML file, an optional .env file and RAI_-prefixed environment variables,
// in that order of increasing precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/acn-rai/rai-memory/logger"
)

// EnvPrefix prefixes every environment override, e.g. RAI_NEO4J_URI.
const EnvPrefix = "RAI"

// Config is the root configuration.
type Config struct {
	Log    logger.Config `mapstructure:"log"`
	Neo4j  Neo4jConfig   `mapstructure:"neo4j"`
	Vector VectorConfig  `mapstructure:"vector"`
	Redis  RedisConfig   `mapstructure:"redis"`
	Agent  AgentConfig   `mapstructure:"agent"`
	Stream StreamConfig  `mapstructure:"stream"`
}

// Neo4jConfig configures the graph persistence connector.
type Neo4jConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URI      string `mapstructure:"uri" validate:"required_if=Enabled true"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// VectorConfig configures the vector store bridge.
type VectorConfig struct {
	Dimensions    int     `mapstructure:"dimensions" validate:"gt=0"`
	MinSimilarity float64 `mapstructure:"min_similarity" validate:"gte=0,lte=1"`
	CacheSize     int64   `mapstructure:"cache_size" validate:"gte=0"`
}

// RedisConfig configures the behavior journal.
type RedisConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Addr       string `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db" validate:"gte=0"`
	Key        string `mapstructure:"key" validate:"required"`
	Channel    string `mapstructure:"channel"`
	MaxEntries int64  `mapstructure:"max_entries" validate:"gt=0"`
}

// AgentConfig configures BasicRAIAgent.
type AgentConfig struct {
	Name         string `mapstructure:"name" validate:"required"`
	APIKey       string `mapstructure:"api_key"`
	Model        string `mapstructure:"model" validate:"required"`
	MaxTokens    int64  `mapstructure:"max_tokens" validate:"gt=0"`
	SystemPrompt string `mapstructure:"system_prompt"`
	RecallLimit  int    `mapstructure:"recall_limit" validate:"gte=0"`
}

// StreamConfig configures the websocket event stream.
type StreamConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

var defaults = map[string]interface{}{
	"log.level":             "info",
	"log.format":            logger.FormatConsole,
	"log.output":            "stderr",
	"log.timestamp":         true,
	"neo4j.enabled":         false,
	"neo4j.uri":             "neo4j://localhost:7687",
	"neo4j.username":        "neo4j",
	"neo4j.password":        "",
	"neo4j.database":        "neo4j",
	"vector.dimensions":     384,
	"vector.min_similarity": 0.0,
	"vector.cache_size":     1 << 20,
	"redis.enabled":         false,
	"redis.addr":            "localhost:6379",
	"redis.password":        "",
	"redis.db":              0,
	"redis.key":             "rai:behavior",
	"redis.channel":         "rai:behavior:events",
	"redis.max_entries":     1000,
	"agent.name":            "BasicRAIAgent",
	"agent.api_key":         "",
	"agent.model":           "claude-sonnet-4-20250514",
	"agent.max_tokens":      1024,
	"agent.system_prompt":   "",
	"agent.recall_limit":    5,
	"stream.addr":           ":8080",
}

type loaderOptions struct {
	configFile string
	envFile    string
}

// Option customizes Load.
type Option func(*loaderOptions)

// WithConfigFile reads a YAML config file. A missing file is an error.
func WithConfigFile(path string) Option {
	return func(o *loaderOptions) { o.configFile = path }
}

// WithEnvFile loads a .env file before reading the environment.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// Load builds and validates the configuration.
func Load(opts ...Option) (*Config, error) {
	var o loaderOptions
	for _, opt := range opts {
		opt(&o)
	}

	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", o.envFile, err)
		}
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if o.configFile != "" {
		v.SetConfigFile(o.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", o.configFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration built from defaults and the environment only.
func Default() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return cfg
}

var validate = validator.New()

// Validate checks struct tags and the logging section.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
