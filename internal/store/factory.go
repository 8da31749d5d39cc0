package store

import (
	"context"
	"fmt"
	"path/filepath"

	"fintrack/internal/log"
)

// Config selects and configures a Backend.
type Config struct {
	Type Type

	// File backend
	DataDir string

	// SQLite backend
	SQLiteDBPath string

	// Redis backend
	RedisURL       string
	RedisKeyPrefix string
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case FileBackend:
		if c.DataDir == "" {
			return fmt.Errorf("data directory is required for file backend")
		}
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case RedisBackend:
		if c.RedisURL == "" {
			return fmt.Errorf("Redis URL is required for redis backend")
		}
	case MemoryBackend:
		// nothing to check
	}
	return nil
}

// Open creates the backend described by cfg.
func Open(ctx context.Context, cfg Config, logger *log.Logger) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default().WithComponent(log.ComponentStorage)
	}

	var (
		b   Backend
		err error
	)
	switch cfg.Type {
	case MemoryBackend:
		b = NewMemoryStore()
	case FileBackend:
		b, err = NewFileStore(filepath.Clean(cfg.DataDir))
	case SQLiteBackend:
		b, err = NewSQLiteStore(cfg.SQLiteDBPath)
	case RedisBackend:
		b, err = NewRedisStore(ctx, cfg.RedisURL, cfg.RedisKeyPrefix)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Type, err)
	}

	logger.InfoContext(ctx, "Store backend ready", log.FieldBackend, cfg.Type.String())
	return b, nil
}
