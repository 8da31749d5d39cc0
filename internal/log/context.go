package log

import (
	"context"
	"log/slog"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// WithContext returns a copy of ctx carrying logger.
func WithContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from the context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// StructuredLogger provides structured logging methods for domain events
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogExpenseCommitted logs a successful ledger mutation
func (sl *StructuredLogger) LogExpenseCommitted(ctx context.Context, op, id, desc, amount, category, fiscalYearID string) {
	fields := NewFields().
		WithExpense(id, desc, amount, category).
		WithFiscalYear(fiscalYearID).
		WithOperation(op).
		WithComponent(ComponentExpense)

	sl.logger.Logger.InfoContext(ctx, "Expense committed", fields.ToSlice()...)
}

// LogPersistenceFailure logs a store failure that is deliberately not propagated
func (sl *StructuredLogger) LogPersistenceFailure(ctx context.Context, op, key string, err error) {
	fields := NewFields().
		WithStoreKey(key).
		WithOperation(op).
		WithError(err).
		WithErrorType(ErrorTypeDatabase).
		WithComponent(ComponentStorage)

	sl.logger.Logger.ErrorContext(ctx, "Persistence failure, keeping in-memory state", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	allFields := fields.
		WithError(err).
		WithOperation(operation).
		WithComponent(component)

	sl.logger.Logger.ErrorContext(ctx, msg, allFields.ToSlice()...)
}
