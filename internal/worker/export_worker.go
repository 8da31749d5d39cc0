package worker

import (
	"context"
	"fmt"
	"slices"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/sheets"
	"fintrack/internal/store"
)

// Snapshots is the read side of the store the worker rebuilds state from.
type Snapshots interface {
	Load(ctx context.Context, key string, dst any) bool
}

// ExportWorker keeps the spreadsheet copy of the active fiscal year current
// by re-exporting whenever another process saves expenses or fiscal years.
// It reads snapshots straight from the store, so it never sees the writer's
// in-memory state.
type ExportWorker struct {
	snapshots Snapshots
	exporter  sheets.Exporter
	logger    *log.Logger
}

func NewExportWorker(snapshots Snapshots, exporter sheets.Exporter, logger *log.Logger) *ExportWorker {
	if logger == nil {
		logger = log.Default()
	}
	return &ExportWorker{
		snapshots: snapshots,
		exporter:  exporter,
		logger:    logger.WithComponent(log.ComponentSheets),
	}
}

// HandleSnapshotSaved re-exports when msg concerns data that appears in the sheet.
func (w *ExportWorker) HandleSnapshotSaved(ctx context.Context, msg *amqp.SnapshotSavedMessage) error {
	switch msg.Key {
	case store.KeyExpenses, store.KeyFiscalYears:
	default:
		w.logger.DebugContext(ctx, "Ignoring snapshot notification", log.FieldStoreKey, msg.Key)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing snapshot notification",
		log.FieldStoreKey, msg.Key, log.FieldRevision, msg.Revision)
	return w.Sync(ctx)
}

// Sync exports the active fiscal year as currently persisted. It is a no-op
// when no year is active.
func (w *ExportWorker) Sync(ctx context.Context) error {
	var years []core.FiscalYear
	w.snapshots.Load(ctx, store.KeyFiscalYears, &years)
	i := slices.IndexFunc(years, func(fy core.FiscalYear) bool { return fy.IsActive })
	if i < 0 {
		w.logger.InfoContext(ctx, "No active fiscal year, nothing to export")
		return nil
	}
	fy := years[i]

	var all []core.Expense
	w.snapshots.Load(ctx, store.KeyExpenses, &all)
	expenses := make([]core.Expense, 0, len(all))
	for _, e := range all {
		if e.FiscalYearID == fy.ID {
			expenses = append(expenses, e)
		}
	}
	slices.SortStableFunc(expenses, func(a, b core.Expense) int { return b.Date.Compare(a.Date) })

	if err := w.exporter.ExportExpenses(ctx, fy, expenses); err != nil {
		w.logger.ErrorContext(ctx, "Failed to export fiscal year",
			log.NewFields().WithFiscalYear(fy.ID).WithOperation(log.OpExport).WithError(err).WithErrorType(log.ErrorTypeNetwork).ToSlice()...)
		return fmt.Errorf("export fiscal year %s: %w", fy.ID, err)
	}

	w.logger.InfoContext(ctx, "Fiscal year exported",
		log.FieldFiscalYearID, fy.ID, log.FieldCount, len(expenses))
	return nil
}
