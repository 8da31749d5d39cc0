package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// Publisher is told about every snapshot that reached the backend.
type Publisher interface {
	PublishSnapshotSaved(ctx context.Context, key string, revision int64) error
}

// Adapter serializes service state to JSON and hands it to a Backend.
//
// Read failures and corrupt documents degrade to empty state. Write failures
// are reported by Save and only logged by Commit; in-memory state is never
// rolled back because of the store.
type Adapter struct {
	backend   Backend
	logger    *log.Logger
	publisher Publisher

	mu        sync.Mutex
	revisions map[string]int64
}

type Option func(*Adapter)

// WithPublisher sends a notification after each successful save.
func WithPublisher(p Publisher) Option {
	return func(a *Adapter) { a.publisher = p }
}

func WithLogger(l *log.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

func NewAdapter(backend Backend, opts ...Option) *Adapter {
	a := &Adapter{
		backend:   backend,
		logger:    log.Default().WithComponent(log.ComponentStorage),
		revisions: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Load decodes the document under key into dst and reports whether it did.
// A missing key, an unreadable backend and corrupt JSON all report false;
// callers must then start from empty state and ignore dst.
func (a *Adapter) Load(ctx context.Context, key string, dst any) bool {
	raw, err := a.backend.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return false
	}
	if err != nil {
		perr := &core.PersistenceError{Op: log.OpLoad, Key: key, Err: err}
		a.logger.ErrorContext(ctx, "Failed to read snapshot, starting empty",
			log.NewFields().WithStoreKey(key).WithError(perr).WithErrorType(log.ErrorTypeDatabase).ToSlice()...)
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		a.logger.WarnContext(ctx, "Corrupt snapshot, starting empty",
			log.NewFields().WithStoreKey(key).WithError(err).WithErrorType(log.ErrorTypeCorruptData).ToSlice()...)
		return false
	}
	return true
}

// Save writes v under key. Errors are *core.PersistenceError.
func (a *Adapter) Save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return &core.PersistenceError{Op: log.OpSave, Key: key, Err: err}
	}
	if err := a.backend.Put(ctx, key, raw); err != nil {
		return &core.PersistenceError{Op: log.OpSave, Key: key, Err: err}
	}

	a.mu.Lock()
	a.revisions[key]++
	rev := a.revisions[key]
	a.mu.Unlock()

	if a.publisher != nil {
		if err := a.publisher.PublishSnapshotSaved(ctx, key, rev); err != nil {
			a.logger.WarnContext(ctx, "Failed to publish snapshot notification",
				log.NewFields().WithStoreKey(key).WithError(err).WithErrorType(log.ErrorTypeNetwork).ToSlice()...)
		}
	}
	return nil
}

// Commit is Save for callers that must not fail on persistence: the error
// is logged and dropped.
func (a *Adapter) Commit(ctx context.Context, key string, v any) {
	if err := a.Save(ctx, key, v); err != nil {
		log.NewStructuredLogger(a.logger).LogPersistenceFailure(ctx, log.OpSave, key, err)
	}
}

// Remove deletes the document under key.
func (a *Adapter) Remove(ctx context.Context, key string) error {
	if err := a.backend.Delete(ctx, key); err != nil {
		return &core.PersistenceError{Op: log.OpDelete, Key: key, Err: err}
	}
	return nil
}

// Revision returns how many successful saves key has seen in this process.
func (a *Adapter) Revision(key string) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.revisions[key]
}

func (a *Adapter) Close() error {
	return a.backend.Close()
}
