package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Generation GenerationConfig `yaml:"generation"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type ServerConfig struct {
	// TransportMode selects stdio (for MCP clients) or http (streamable).
	TransportMode string   `yaml:"transport_mode"`
	Port          int      `yaml:"port"`
	AuthEnabled   bool     `yaml:"auth_enabled"`
	APIKeys       []string `yaml:"api_keys"`
}

type StoreConfig struct {
	// Driver selects memory, file, sqlite, or redis.
	Driver string `yaml:"driver"`
	// Path is the file store directory or the sqlite database path.
	Path            string `yaml:"path"`
	RedisURL        string `yaml:"redis_url"`
	RedisTTLSeconds int    `yaml:"redis_ttl_seconds"`
}

type GenerationConfig struct {
	// Provider selects stub or openai.
	Provider           string  `yaml:"provider"`
	Model              string  `yaml:"model"`
	BaseURL            string  `yaml:"base_url"`
	APIKey             string  `yaml:"api_key"`
	TimeoutSeconds     int     `yaml:"timeout_seconds"`
	MaxTokens          int     `yaml:"max_tokens"`
	Temperature        float32 `yaml:"temperature"`
	ContextTokenBudget int     `yaml:"context_token_budget"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			TransportMode: "stdio",
			Port:          8080,
		},
		Store: StoreConfig{
			Driver: "file",
			Path:   "./data",
		},
		Generation: GenerationConfig{
			Provider:           "stub",
			Model:              "gpt-4o-mini",
			TimeoutSeconds:     120,
			MaxTokens:          4096,
			Temperature:        0.7,
			ContextTokenBudget: 6000,
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}

	if path := os.Getenv("LOREWEAVE_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if mode := os.Getenv("LOREWEAVE_TRANSPORT"); mode != "" {
		cfg.Server.TransportMode = mode
	}
	if portStr := os.Getenv("LOREWEAVE_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid LOREWEAVE_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if authStr := os.Getenv("LOREWEAVE_AUTH_ENABLED"); authStr != "" {
		auth, err := strconv.ParseBool(authStr)
		if err != nil {
			return fmt.Errorf("invalid LOREWEAVE_AUTH_ENABLED: %w", err)
		}
		cfg.Server.AuthEnabled = auth
	}
	if key := os.Getenv("LOREWEAVE_API_KEY"); key != "" {
		cfg.Server.APIKeys = append(cfg.Server.APIKeys, key)
	}

	if driver := os.Getenv("LOREWEAVE_STORE_DRIVER"); driver != "" {
		cfg.Store.Driver = driver
	}
	if path := os.Getenv("LOREWEAVE_STORE_PATH"); path != "" {
		cfg.Store.Path = path
	}
	if url := os.Getenv("LOREWEAVE_REDIS_URL"); url != "" {
		cfg.Store.RedisURL = url
	}
	if ttlStr := os.Getenv("LOREWEAVE_REDIS_TTL_SECONDS"); ttlStr != "" {
		ttl, err := strconv.Atoi(ttlStr)
		if err != nil {
			return fmt.Errorf("invalid LOREWEAVE_REDIS_TTL_SECONDS: %w", err)
		}
		cfg.Store.RedisTTLSeconds = ttl
	}

	if provider := os.Getenv("LOREWEAVE_GENERATION_PROVIDER"); provider != "" {
		cfg.Generation.Provider = provider
	}
	if model := os.Getenv("LOREWEAVE_GENERATION_MODEL"); model != "" {
		cfg.Generation.Model = model
	}
	if baseURL := os.Getenv("LOREWEAVE_GENERATION_BASE_URL"); baseURL != "" {
		cfg.Generation.BaseURL = baseURL
	}
	if apiKey := os.Getenv("LOREWEAVE_GENERATION_API_KEY"); apiKey != "" {
		cfg.Generation.APIKey = apiKey
	}
	if timeoutStr := os.Getenv("LOREWEAVE_GENERATION_TIMEOUT_SECONDS"); timeoutStr != "" {
		timeout, err := strconv.Atoi(timeoutStr)
		if err != nil {
			return fmt.Errorf("invalid LOREWEAVE_GENERATION_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Generation.TimeoutSeconds = timeout
	}
	if budgetStr := os.Getenv("LOREWEAVE_CONTEXT_TOKEN_BUDGET"); budgetStr != "" {
		budget, err := strconv.Atoi(budgetStr)
		if err != nil {
			return fmt.Errorf("invalid LOREWEAVE_CONTEXT_TOKEN_BUDGET: %w", err)
		}
		cfg.Generation.ContextTokenBudget = budget
	}

	if level := os.Getenv("LOREWEAVE_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if path := os.Getenv("LOREWEAVE_LOG_PATH"); path != "" {
		cfg.Log.Path = path
	}
	if metricsStr := os.Getenv("LOREWEAVE_METRICS_ENABLED"); metricsStr != "" {
		enabled, err := strconv.ParseBool(metricsStr)
		if err != nil {
			return fmt.Errorf("invalid LOREWEAVE_METRICS_ENABLED: %w", err)
		}
		cfg.Metrics.Enabled = enabled
	}
	return nil
}

// Validate rejects unknown enum values and incoherent combinations.
func (c Config) Validate() error {
	switch c.Server.TransportMode {
	case "stdio", "http":
	default:
		return fmt.Errorf("unknown transport mode: %q", c.Server.TransportMode)
	}
	if c.Server.AuthEnabled && len(c.Server.APIKeys) == 0 {
		return fmt.Errorf("auth enabled but no api keys configured")
	}

	switch c.Store.Driver {
	case "memory", "file", "sqlite", "redis":
	default:
		return fmt.Errorf("unknown store driver: %q", c.Store.Driver)
	}
	if c.Store.Driver == "redis" && c.Store.RedisURL == "" {
		return fmt.Errorf("redis store requires redis_url")
	}

	switch c.Generation.Provider {
	case "stub":
	case "openai":
		if c.Generation.APIKey == "" {
			return fmt.Errorf("openai provider requires an api key")
		}
	default:
		return fmt.Errorf("unknown generation provider: %q", c.Generation.Provider)
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %q", c.Log.Level)
	}
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
