// Package app wires configuration, storage and the domain services into one
// ready-to-use tracker.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/receipt"
	"fintrack/internal/services"
	"fintrack/internal/sheets"
	"fintrack/internal/sheets/google"
	"fintrack/internal/store"
	"fintrack/internal/worker"
)

// ErrExportDisabled is returned by Export when no spreadsheet is configured.
var ErrExportDisabled = errors.New("export is not configured (set GOOGLE_SPREADSHEET_ID)")

// App owns every long-lived component. All mutations must come from a single
// goroutine; the services do not lock.
type App struct {
	Config      *config.Config
	Logger      *log.Logger
	FiscalYears *services.FiscalYearService
	Expenses    *services.ExpenseService
	Budgets     *services.BudgetService
	Categories  *services.CategoryService
	Summary     *services.SummaryService
	Receipts    receipt.Uploader

	store    *store.Adapter
	exporter sheets.Exporter
	broker   *amqp.Client
	caches   *cache.Manager
	stop     context.CancelFunc
}

type options struct {
	backend  store.Backend
	exporter sheets.Exporter
	uploader receipt.Uploader
}

type Option func(*options)

// WithBackend uses b instead of opening the configured backend.
func WithBackend(b store.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithExporter replaces the Google Sheets exporter.
func WithExporter(e sheets.Exporter) Option {
	return func(o *options) { o.exporter = e }
}

// WithUploader replaces the local receipt directory.
func WithUploader(u receipt.Uploader) Option {
	return func(o *options) { o.uploader = u }
}

// New opens storage, builds the services and hydrates them. The returned App
// must be closed.
func New(ctx context.Context, cfg *config.Config, logger *log.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = log.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Logger: logger.WithComponent(log.ComponentApp)}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	backend := o.backend
	if backend == nil {
		var err error
		backend, err = store.Open(ctx, cfg.Store(), logger.WithComponent(log.ComponentStorage))
		if err != nil {
			return nil, err
		}
	}

	adapterOpts := []store.Option{store.WithLogger(logger.WithComponent(log.ComponentStorage))}
	if cfg.AMQPURL != "" {
		broker, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			// Notifications are optional; the tracker works without a broker.
			a.Logger.WarnContext(ctx, "AMQP unavailable, snapshot notifications disabled",
				log.NewFields().WithError(err).WithErrorType(log.ErrorTypeNetwork).ToSlice()...)
		} else {
			a.broker = broker
			adapterOpts = append(adapterOpts, store.WithPublisher(broker))
		}
	}
	a.store = store.NewAdapter(backend, adapterOpts...)

	// Construction order fixes the order subscribers see a fiscal year deletion.
	a.FiscalYears = services.NewFiscalYearService(a.store, logger)
	a.Expenses = services.NewExpenseService(a.store, a.FiscalYears, core.UpdatePolicy(cfg.UpdatePolicy), logger)
	a.Budgets = services.NewBudgetService(a.store, a.FiscalYears, a.Expenses, logger)
	a.Categories = services.NewCategoryService(a.store, logger)

	summaries := cache.NewLRUCache[core.ExpenseSummary](cfg.SummaryCacheSize, cfg.SummaryCacheTTL)
	a.Summary = services.NewSummaryService(a.FiscalYears, a.Expenses, a.Categories, summaries, cfg.PageSize, logger)

	if err := a.hydrate(ctx); err != nil {
		return nil, err
	}

	a.Receipts = o.uploader
	if a.Receipts == nil {
		u, err := receipt.NewLocalUploader(cfg.ReceiptsDir(), logger)
		if err != nil {
			return nil, err
		}
		a.Receipts = u
	}

	a.exporter = o.exporter
	if a.exporter == nil && cfg.ExportEnabled() {
		exp, err := google.NewExporter(ctx, cfg.GoogleSpreadsheetID, google.Credentials{
			JSON: cfg.GoogleServiceAccountJSON,
			File: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("google sheets exporter: %w", err)
		}
		a.exporter = exp
	}

	runCtx, stop := context.WithCancel(context.Background())
	a.stop = stop
	a.caches = cache.NewManager(logger)
	a.caches.Register(summaries)
	a.caches.Start(runCtx, cfg.CacheCleanup)

	ok = true
	return a, nil
}

// hydrate loads every snapshot in parallel, then derives budgets and the
// summary projection. Loads do not notify subscribers, so they cannot race.
func (a *App) hydrate(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, load := range []func(context.Context) error{
		a.FiscalYears.Load,
		a.Expenses.Load,
		a.Budgets.Load,
		a.Categories.Load,
	} {
		load := load
		g.Go(func() error { return load(gctx) })
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("hydrate: %w", err)
	}

	a.Budgets.RecomputeAll(ctx)
	a.Summary.Refresh(ctx)

	active := ""
	if fy, ok := a.FiscalYears.Current(); ok {
		active = fy.ID
	}
	a.Logger.InfoContext(ctx, "Tracker hydrated",
		log.FieldCount, len(a.FiscalYears.List()),
		log.FieldFiscalYearID, active,
		log.FieldBackend, a.Config.StoreBackend)
	return nil
}

// AttachReceipt uploads a receipt and stamps it on the expense.
func (a *App) AttachReceipt(ctx context.Context, expenseID, fileName, contentType string, size int64, r io.Reader) (core.Receipt, error) {
	if _, err := a.Expenses.Get(expenseID); err != nil {
		return core.Receipt{}, err
	}
	rec, err := receipt.Attach(ctx, a.Receipts, fileName, contentType, size, r)
	if err != nil {
		return core.Receipt{}, err
	}
	if err := a.Expenses.AttachReceipt(ctx, expenseID, rec); err != nil {
		return core.Receipt{}, err
	}
	return rec, nil
}

// Export writes a fiscal year's expenses to the configured spreadsheet.
// An empty fiscalYearID exports the active year.
func (a *App) Export(ctx context.Context, fiscalYearID string) error {
	if a.exporter == nil {
		return ErrExportDisabled
	}
	var fy core.FiscalYear
	if fiscalYearID == "" {
		cur, ok := a.FiscalYears.Current()
		if !ok {
			return fmt.Errorf("export: %w", core.ErrNoActiveFiscalYear)
		}
		fy = cur
	} else {
		got, err := a.FiscalYears.Get(fiscalYearID)
		if err != nil {
			return err
		}
		fy = got
	}
	return a.exporter.ExportExpenses(ctx, fy, a.Expenses.List(fy.ID))
}

// ExportWorker returns a worker that re-exports the active year from the
// persisted snapshots.
func (a *App) ExportWorker() (*worker.ExportWorker, error) {
	if a.exporter == nil {
		return nil, ErrExportDisabled
	}
	return worker.NewExportWorker(a.store, a.exporter, a.Logger), nil
}

// Broker returns the AMQP client, or nil when notifications are disabled.
func (a *App) Broker() *amqp.Client {
	return a.broker
}

// Close stops background work and releases the broker and the backend.
func (a *App) Close() error {
	if a.stop != nil {
		a.stop()
		a.caches.Wait()
	}
	var errs []error
	if a.broker != nil {
		errs = append(errs, a.broker.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
