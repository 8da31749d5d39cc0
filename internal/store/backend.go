// Package store persists JSON snapshots of each service's state under stable keys.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Snapshot keys, one JSON document per logical table.
const (
	KeyFiscalYears = "fiscalYears"
	KeyExpenses    = "expenses"
	KeyBudgets     = "budgets"
	KeyCategories  = "categories"
	// KeyLegacyBudget holds a single budget document written before budgets were
	// scoped by fiscal year.
	KeyLegacyBudget = "budget"
)

// ErrKeyNotFound is returned by a Backend when nothing is stored under a key.
var ErrKeyNotFound = errors.New("key not found")

// Backend is a byte-oriented key/value store. Implementations are safe for
// concurrent use.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Type names a Backend implementation.
type Type string

const (
	MemoryBackend Type = "memory"
	FileBackend   Type = "file"
	SQLiteBackend Type = "sqlite"
	RedisBackend  Type = "redis"
)

func (t Type) IsValid() bool {
	switch t {
	case MemoryBackend, FileBackend, SQLiteBackend, RedisBackend:
		return true
	default:
		return false
	}
}

func (t Type) String() string {
	return string(t)
}

// Types returns all valid backend types
func Types() []Type {
	return []Type{MemoryBackend, FileBackend, SQLiteBackend, RedisBackend}
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty store key")
	}
	return nil
}
