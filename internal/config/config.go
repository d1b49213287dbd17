// Package config loads and validates runtime configuration: the
// execution resource limits plus the ambient server/provider/persistence
// settings a deployable binary needs, layered as a YAML file expanded
// with os.ExpandEnv, then hand-validated (no reflection-based validation
// library).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Limits bounds the resources a single execution may consume: total
// context size, the chunk size used for large-context handling, how deep
// llm_query recursion may nest, the wall-clock budget for the whole
// execution, and which model runs when a request doesn't name one.
type Limits struct {
	MaxContextSize    int           `yaml:"max_context_size"`
	DefaultChunkSize  int           `yaml:"default_chunk_size"`
	MaxRecursionDepth int           `yaml:"max_recursion_depth"`
	ExecutionTimeout  time.Duration `yaml:"execution_timeout"`
	DefaultModel      string        `yaml:"default_model"`
}

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// ProvidersConfig holds API credentials/endpoints for the LM clients.
type ProvidersConfig struct {
	AnthropicAPIKey  string `yaml:"anthropic_api_key"`
	AnthropicBaseURL string `yaml:"anthropic_base_url"`
	OpenAIAPIKey     string `yaml:"openai_api_key"`
	OpenAIBaseURL    string `yaml:"openai_base_url"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Driver       string `yaml:"driver"` // "inmemory" or "postgres"
	PostgresDSN  string `yaml:"postgres_dsn"`
}

// Config is the umbrella configuration object returned by Load.
type Config struct {
	Limits    Limits          `yaml:"limits"`
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Storage   StorageConfig   `yaml:"storage"`
}

// Defaults returns conservative resource limits plus sane ambient
// defaults, suitable for local development without an env file.
func Defaults() *Config {
	return &Config{
		Limits: Limits{
			MaxContextSize:    500_000,
			DefaultChunkSize:  50_000,
			MaxRecursionDepth: 10,
			ExecutionTimeout:  300 * time.Second,
			DefaultModel:      "claude-sonnet-4-20250514",
		},
		Server: ServerConfig{Addr: ":8080"},
		Storage: StorageConfig{Driver: "inmemory"},
	}
}

// Load reads path (if non-empty and it exists), expands environment
// variables, unmarshals over Defaults(), then applies env var overrides
// for secrets that should never live in a checked-in YAML file.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: reading %s: %w", path, err)
			}
		} else {
			data = ExpandEnv(data)
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parsing %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := NewValidator(cfg).ValidateAll(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Providers.AnthropicAPIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Providers.OpenAIAPIKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("EXECUTION_TIMEOUT_SECONDS"); v != "" {
		if secs, err := parsePositiveInt(v); err == nil {
			cfg.Limits.ExecutionTimeout = time.Duration(secs) * time.Second
		}
	}
}

func parsePositiveInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive")
	}
	return n, nil
}
