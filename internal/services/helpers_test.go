package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/store"
)

type fixture struct {
	ctx        context.Context
	backend    store.Backend
	adapter    *store.Adapter
	registry   *FiscalYearService
	ledger     *ExpenseService
	budgets    *BudgetService
	categories *CategoryService
	summary    *SummaryService
}

func newFixture(t *testing.T, policy core.UpdatePolicy) *fixture {
	t.Helper()
	return newFixtureWithBackend(t, store.NewMemoryStore(), policy)
}

// newFixtureWithBackend wires the services the same way the application
// does and hydrates them from backend.
func newFixtureWithBackend(t *testing.T, backend store.Backend, policy core.UpdatePolicy) *fixture {
	t.Helper()
	logger := log.Discard()
	adapter := store.NewAdapter(backend, store.WithLogger(logger))

	f := &fixture{ctx: context.Background(), backend: backend, adapter: adapter}
	f.registry = NewFiscalYearService(adapter, logger)
	f.ledger = NewExpenseService(adapter, f.registry, policy, logger)
	f.budgets = NewBudgetService(adapter, f.registry, f.ledger, logger)
	f.categories = NewCategoryService(adapter, logger)
	f.summary = NewSummaryService(f.registry, f.ledger, f.categories,
		cache.NewLRUCache[core.ExpenseSummary](16, time.Minute), 2, logger)

	for _, load := range []func(context.Context) error{
		f.registry.Load, f.ledger.Load, f.budgets.Load, f.categories.Load,
	} {
		if err := load(f.ctx); err != nil {
			t.Fatalf("load: %v", err)
		}
	}
	f.budgets.RecomputeAll(f.ctx)
	f.summary.Refresh(f.ctx)
	return f
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) createYear(t *testing.T, name string, year int) core.FiscalYear {
	t.Helper()
	fy, err := f.registry.Create(f.ctx, name, date(year, time.January, 1), date(year, time.December, 31))
	if err != nil {
		t.Fatalf("create fiscal year %s: %v", name, err)
	}
	return fy
}

func (f *fixture) add(t *testing.T, desc, amount string, c core.Category, on time.Time) core.Expense {
	t.Helper()
	e, err := f.ledger.Add(f.ctx, core.ExpenseInput{
		Description: desc,
		Amount:      dec(amount),
		Category:    c,
		Date:        on,
	})
	if err != nil {
		t.Fatalf("add expense %s: %v", desc, err)
	}
	return e
}

func sumOf(expenses []core.Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

func activeCount(years []core.FiscalYear) int {
	n := 0
	for _, fy := range years {
		if fy.IsActive {
			n++
		}
	}
	return n
}

type failingBackend struct {
	*store.MemoryStore
	err error
}

func (b *failingBackend) Put(context.Context, string, []byte) error {
	return b.err
}
