// Package postgres is the durable ExecutionRepository/SessionRepository
// implementation, using github.com/jackc/pgx/v5 directly against
// hand-written SQL — no ent/codegen (see DESIGN.md for why).
package postgres

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds database connection and pool settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN builds a libpq-style connection string for pgxpool.ParseConfig.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LoadConfigFromEnv loads Config from RLM_DB_* environment variables with
// production-ready defaults.
func LoadConfigFromEnv() (Config, error) {
	port, err := strconv.Atoi(getEnvOrDefault("RLM_DB_PORT", "5432"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid RLM_DB_PORT: %w", err)
	}
	maxConns, err := strconv.Atoi(getEnvOrDefault("RLM_DB_MAX_CONNS", "25"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid RLM_DB_MAX_CONNS: %w", err)
	}
	minConns, err := strconv.Atoi(getEnvOrDefault("RLM_DB_MIN_CONNS", "2"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid RLM_DB_MIN_CONNS: %w", err)
	}
	maxLifetime, err := time.ParseDuration(getEnvOrDefault("RLM_DB_CONN_MAX_LIFETIME", "1h"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid RLM_DB_CONN_MAX_LIFETIME: %w", err)
	}
	maxIdleTime, err := time.ParseDuration(getEnvOrDefault("RLM_DB_CONN_MAX_IDLE_TIME", "15m"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid RLM_DB_CONN_MAX_IDLE_TIME: %w", err)
	}

	cfg := Config{
		Host:            getEnvOrDefault("RLM_DB_HOST", "localhost"),
		Port:            port,
		User:            getEnvOrDefault("RLM_DB_USER", "rlmengine"),
		Password:        os.Getenv("RLM_DB_PASSWORD"),
		Database:        getEnvOrDefault("RLM_DB_NAME", "rlmengine"),
		SSLMode:         getEnvOrDefault("RLM_DB_SSLMODE", "disable"),
		MaxConns:        int32(maxConns),
		MinConns:        int32(minConns),
		ConnMaxLifetime: maxLifetime,
		ConnMaxIdleTime: maxIdleTime,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for obviously broken settings.
func (c Config) Validate() error {
	if c.Password == "" {
		return fmt.Errorf("RLM_DB_PASSWORD is required")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("RLM_DB_MIN_CONNS (%d) cannot exceed RLM_DB_MAX_CONNS (%d)", c.MinConns, c.MaxConns)
	}
	if c.MaxConns < 1 {
		return fmt.Errorf("RLM_DB_MAX_CONNS must be at least 1")
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
