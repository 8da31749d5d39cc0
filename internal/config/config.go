package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

type Config struct {
	// Storage
	StoreBackend   string
	DataDir        string
	SQLiteDBPath   string
	RedisURL       string
	RedisKeyPrefix string

	// AMQP (optional; empty URL disables change notifications)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Ledger
	UpdatePolicy string

	// Summary projection
	PageSize         int
	SummaryCacheSize int
	SummaryCacheTTL  time.Duration
	CacheCleanup     time.Duration

	// Logging
	LogLevel string

	// Google Sheets export (optional)
	GoogleSpreadsheetID      string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
}

func Load() *Config {
	dataDir := getEnv("DATA_DIR", "./data")
	cfg := &Config{
		StoreBackend:   getEnv("STORE_BACKEND", "file"),
		DataDir:        dataDir,
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", filepath.Join(dataDir, "fintrack.db")),
		RedisURL:       getEnv("REDIS_URL", ""),
		RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", "fintrack:"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "snapshot_saved"),

		UpdatePolicy: getEnv("UPDATE_POLICY", string(core.UpdateRestamp)),

		PageSize:         getEnvInt("PAGE_SIZE", 10),
		SummaryCacheSize: getEnvInt("SUMMARY_CACHE_SIZE", 32),
		SummaryCacheTTL:  getEnvDuration("SUMMARY_CACHE_TTL", 5*time.Minute),
		CacheCleanup:     getEnvDuration("CACHE_CLEANUP_INTERVAL", time.Minute),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate store backend
	backend := store.Type(c.StoreBackend)
	if !backend.IsValid() {
		errors = append(errors, fmt.Sprintf("invalid store backend '%s': must be one of %v", c.StoreBackend, store.Types()))
	} else if err := c.Store().Validate(); err != nil {
		errors = append(errors, err.Error())
	}

	if backend == store.RedisBackend && c.RedisURL != "" {
		if parsedURL, err := url.Parse(c.RedisURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid Redis URL '%s': %v", c.RedisURL, err))
		} else if parsedURL.Scheme != "redis" && parsedURL.Scheme != "rediss" {
			errors = append(errors, fmt.Sprintf("invalid Redis URL scheme '%s': must be 'redis' or 'rediss'", parsedURL.Scheme))
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if !core.UpdatePolicy(c.UpdatePolicy).IsValid() {
		errors = append(errors, fmt.Sprintf("invalid update policy '%s': must be '%s' or '%s'", c.UpdatePolicy, core.UpdateRestamp, core.UpdatePreserve))
	}

	if c.PageSize < 1 || c.PageSize > 100 {
		errors = append(errors, fmt.Sprintf("invalid page size %d: must be between 1 and 100", c.PageSize))
	}
	if c.SummaryCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid summary cache size %d: must be at least 1", c.SummaryCacheSize))
	}
	if c.SummaryCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid summary cache TTL %v: must not be negative", c.SummaryCacheTTL))
	}
	if c.CacheCleanup < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache cleanup interval %v: must be at least 1 second", c.CacheCleanup))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	// Service account file must exist when export is configured through it
	if c.GoogleSpreadsheetID != "" && c.GoogleServiceAccountJSON == "" {
		if c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided when GOOGLE_SPREADSHEET_ID is set")
		} else if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Store returns the backend configuration for the store package.
func (c *Config) Store() store.Config {
	return store.Config{
		Type:           store.Type(c.StoreBackend),
		DataDir:        c.DataDir,
		SQLiteDBPath:   c.SQLiteDBPath,
		RedisURL:       c.RedisURL,
		RedisKeyPrefix: c.RedisKeyPrefix,
	}
}

// ReceiptsDir is where uploaded receipts are kept.
func (c *Config) ReceiptsDir() string {
	return filepath.Join(c.DataDir, "receipts")
}

// ExportEnabled reports whether a Google spreadsheet is configured.
func (c *Config) ExportEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
