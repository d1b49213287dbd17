package config

import "fmt"

// Validator validates a Config comprehensively, failing fast at the first
// problem found.
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for cfg.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll checks limits, server, and storage settings in order.
func (v *Validator) ValidateAll() error {
	if err := v.validateLimits(); err != nil {
		return fmt.Errorf("limits validation failed: %w", err)
	}
	if err := v.validateServer(); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}
	if err := v.validateStorage(); err != nil {
		return fmt.Errorf("storage validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateLimits() error {
	l := v.cfg.Limits
	if l.MaxContextSize < 1 {
		return fmt.Errorf("max_context_size must be at least 1, got %d", l.MaxContextSize)
	}
	if l.DefaultChunkSize < 1 {
		return fmt.Errorf("default_chunk_size must be at least 1, got %d", l.DefaultChunkSize)
	}
	if l.DefaultChunkSize > l.MaxContextSize {
		return fmt.Errorf("default_chunk_size (%d) cannot exceed max_context_size (%d)", l.DefaultChunkSize, l.MaxContextSize)
	}
	if l.MaxRecursionDepth < 1 {
		return fmt.Errorf("max_recursion_depth must be at least 1, got %d", l.MaxRecursionDepth)
	}
	if l.ExecutionTimeout <= 0 {
		return fmt.Errorf("execution_timeout must be positive, got %v", l.ExecutionTimeout)
	}
	if l.DefaultModel == "" {
		return fmt.Errorf("default_model must not be empty")
	}
	return nil
}

func (v *Validator) validateServer() error {
	if v.cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	return nil
}

func (v *Validator) validateStorage() error {
	switch v.cfg.Storage.Driver {
	case "inmemory":
		return nil
	case "postgres":
		if v.cfg.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required when storage.driver is 'postgres'")
		}
		return nil
	default:
		return fmt.Errorf("storage.driver must be 'inmemory' or 'postgres', got %q", v.cfg.Storage.Driver)
	}
}
