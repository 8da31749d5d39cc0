package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"fintrack/internal/broadcast"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/store"
)

// LedgerChange describes one committed ledger mutation.
type LedgerChange struct {
	// FiscalYearIDs lists every fiscal year whose expenses changed. An update
	// that moves an expense names both the old and the new year.
	FiscalYearIDs []string
	// Revision increases by one with every committed mutation.
	Revision int64
}

// ExpenseService owns the expense ledger. Expenses are kept in insertion order.
type ExpenseService struct {
	store    *store.Adapter
	registry *FiscalYearService
	policy   core.UpdatePolicy
	logger   *log.Logger
	events   *log.StructuredLogger

	expenses []core.Expense
	revision int64
	changes  *broadcast.Subject[LedgerChange]
}

// NewExpenseService wires the ledger to the registry; expenses of a deleted
// fiscal year are purged.
func NewExpenseService(st *store.Adapter, registry *FiscalYearService, policy core.UpdatePolicy, logger *log.Logger) *ExpenseService {
	if logger == nil {
		logger = log.Default()
	}
	if !policy.IsValid() {
		policy = core.UpdateRestamp
	}
	logger = logger.WithComponent(log.ComponentExpense)
	s := &ExpenseService{
		store:    st,
		registry: registry,
		policy:   policy,
		logger:   logger,
		events:   log.NewStructuredLogger(logger),
		changes:  broadcast.New(LedgerChange{}),
	}
	registry.SubscribeDeleted(s.purgeFiscalYear)
	return s
}

// Load restores the persisted ledger without notifying subscribers.
func (s *ExpenseService) Load(ctx context.Context) error {
	var expenses []core.Expense
	if !s.store.Load(ctx, store.KeyExpenses, &expenses) {
		expenses = nil
	}
	s.expenses = expenses
	s.logger.InfoContext(ctx, "Expenses loaded", log.FieldCount, len(s.expenses))
	return nil
}

// Policy reports how Update assigns fiscal years.
func (s *ExpenseService) Policy() core.UpdatePolicy {
	return s.policy
}

// Add records a new expense in the active fiscal year.
func (s *ExpenseService) Add(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	fy, ok := s.registry.Current()
	if !ok {
		return core.Expense{}, fmt.Errorf("add expense: %w", core.ErrNoActiveFiscalYear)
	}
	if err := in.Validate(); err != nil {
		return core.Expense{}, err
	}

	e := in.Apply(core.Expense{ID: uuid.NewString(), FiscalYearID: fy.ID})
	s.expenses = append(s.expenses, e)
	s.commit(ctx, log.OpCreate, e, fy.ID)
	return e.Clone(), nil
}

// Update replaces the mutable fields of the expense. Under the restamp policy
// the expense moves to the active fiscal year; under preserve it stays put.
func (s *ExpenseService) Update(ctx context.Context, id string, in core.ExpenseInput) error {
	i := s.index(id)
	if i < 0 {
		return core.NewNotFoundError("expense", id)
	}
	if err := in.Validate(); err != nil {
		return err
	}

	old := s.expenses[i]
	updated := in.Apply(old)
	if s.policy == core.UpdateRestamp {
		fy, ok := s.registry.Current()
		if !ok {
			return fmt.Errorf("update expense: %w", core.ErrNoActiveFiscalYear)
		}
		updated.FiscalYearID = fy.ID
	}

	s.expenses[i] = updated
	affected := []string{old.FiscalYearID}
	if updated.FiscalYearID != old.FiscalYearID {
		affected = append(affected, updated.FiscalYearID)
	}
	s.commit(ctx, log.OpUpdate, updated, affected...)
	return nil
}

// AttachReceipt stamps the receipt returned by an uploader onto the expense.
func (s *ExpenseService) AttachReceipt(ctx context.Context, id string, r core.Receipt) error {
	i := s.index(id)
	if i < 0 {
		return core.NewNotFoundError("expense", id)
	}
	s.expenses[i].Receipt = &r
	s.commit(ctx, log.OpUpload, s.expenses[i], s.expenses[i].FiscalYearID)
	return nil
}

// Delete removes the expense; unknown ids are ignored.
func (s *ExpenseService) Delete(ctx context.Context, id string) error {
	i := s.index(id)
	if i < 0 {
		return nil
	}
	e := s.expenses[i]
	s.expenses = append(s.expenses[:i:i], s.expenses[i+1:]...)
	s.commit(ctx, log.OpDelete, e, e.FiscalYearID)
	return nil
}

func (s *ExpenseService) purgeFiscalYear(ctx context.Context, fiscalYearID string) {
	kept := s.expenses[:0:0]
	for _, e := range s.expenses {
		if e.FiscalYearID != fiscalYearID {
			kept = append(kept, e)
		}
	}
	removed := len(s.expenses) - len(kept)
	if removed == 0 {
		return
	}
	s.expenses = kept
	s.store.Commit(ctx, store.KeyExpenses, s.expenses)
	s.logger.InfoContext(ctx, "Purged expenses of deleted fiscal year",
		log.FieldFiscalYearID, fiscalYearID, log.FieldCount, removed)
	s.publish(ctx, fiscalYearID)
}

func (s *ExpenseService) commit(ctx context.Context, op string, e core.Expense, fiscalYearIDs ...string) {
	s.store.Commit(ctx, store.KeyExpenses, s.expenses)
	s.events.LogExpenseCommitted(ctx, op, e.ID, e.Description, core.FormatAmount(e.Amount), e.Category.String(), e.FiscalYearID)
	s.publish(ctx, fiscalYearIDs...)
}

func (s *ExpenseService) publish(ctx context.Context, fiscalYearIDs ...string) {
	s.revision++
	s.changes.Publish(ctx, LedgerChange{FiscalYearIDs: fiscalYearIDs, Revision: s.revision})
}

// Get returns a copy of the expense.
func (s *ExpenseService) Get(id string) (core.Expense, error) {
	i := s.index(id)
	if i < 0 {
		return core.Expense{}, core.NewNotFoundError("expense", id)
	}
	return s.expenses[i].Clone(), nil
}

// List returns the expenses of a fiscal year, newest first. Expenses on the
// same date keep insertion order.
func (s *ExpenseService) List(fiscalYearID string) []core.Expense {
	return s.filter(fiscalYearID, func(core.Expense) bool { return true })
}

// ListActive is List scoped to the active fiscal year; empty when none is active.
func (s *ExpenseService) ListActive() []core.Expense {
	fy, ok := s.registry.Current()
	if !ok {
		return []core.Expense{}
	}
	return s.List(fy.ID)
}

// Search matches term case-insensitively against description and category.
func (s *ExpenseService) Search(fiscalYearID, term string) []core.Expense {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return s.List(fiscalYearID)
	}
	return s.filter(fiscalYearID, func(e core.Expense) bool {
		return strings.Contains(strings.ToLower(e.Description), term) ||
			strings.Contains(strings.ToLower(e.Category.String()), term)
	})
}

func (s *ExpenseService) ByCategory(fiscalYearID string, c core.Category) []core.Expense {
	return s.filter(fiscalYearID, func(e core.Expense) bool { return e.Category == c })
}

func (s *ExpenseService) filter(fiscalYearID string, keep func(core.Expense) bool) []core.Expense {
	out := []core.Expense{}
	for _, e := range s.expenses {
		if e.FiscalYearID == fiscalYearID && keep(e) {
			out = append(out, e.Clone())
		}
	}
	slices.SortStableFunc(out, func(a, b core.Expense) int {
		return b.Date.Compare(a.Date)
	})
	return out
}

// Revision is the number of mutations committed since start.
func (s *ExpenseService) Revision() int64 {
	return s.revision
}

// Subscribe is notified after every committed mutation.
func (s *ExpenseService) Subscribe(fn func(context.Context, LedgerChange)) func() {
	return s.changes.Subscribe(fn)
}

func (s *ExpenseService) index(id string) int {
	for i, e := range s.expenses {
		if e.ID == id {
			return i
		}
	}
	return -1
}
