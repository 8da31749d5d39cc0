package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fintrack/internal/broadcast"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/store"
)

// legacyBudget is the single, unscoped budget document older versions stored
// under store.KeyLegacyBudget.
type legacyBudget struct {
	ID          string          `json:"id"`
	TotalBudget decimal.Decimal `json:"totalBudget"`
	TotalSpent  decimal.Decimal `json:"totalSpent"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

// BudgetService owns one budget per fiscal year. Spent amounts are derived
// from the ledger by full recomputation and never set by callers.
type BudgetService struct {
	store    *store.Adapter
	registry *FiscalYearService
	ledger   *ExpenseService
	logger   *log.Logger
	now      func() time.Time

	budgets []core.Budget
	legacy  *legacyBudget
	active  *broadcast.Subject[core.Budget]
}

// NewBudgetService subscribes to ledger changes and fiscal year lifecycle events.
func NewBudgetService(st *store.Adapter, registry *FiscalYearService, ledger *ExpenseService, logger *log.Logger) *BudgetService {
	if logger == nil {
		logger = log.Default()
	}
	s := &BudgetService{
		store:    st,
		registry: registry,
		ledger:   ledger,
		logger:   logger.WithComponent(log.ComponentBudget),
		now:      time.Now,
		active:   broadcast.New(core.Budget{}),
	}
	ledger.Subscribe(s.onLedgerChange)
	registry.SubscribeDeleted(s.onFiscalYearDeleted)
	registry.SubscribeCurrent(func(ctx context.Context, _ *core.FiscalYear) { s.publishActive(ctx) })
	return s
}

// Load restores persisted budgets without notifying subscribers. A legacy
// single budget is kept aside until RecomputeAll can place it.
func (s *BudgetService) Load(ctx context.Context) error {
	var budgets []core.Budget
	if !s.store.Load(ctx, store.KeyBudgets, &budgets) {
		budgets = nil
	}
	s.budgets = budgets

	var legacy legacyBudget
	if s.store.Load(ctx, store.KeyLegacyBudget, &legacy) {
		s.legacy = &legacy
	}
	s.logger.InfoContext(ctx, "Budgets loaded", log.FieldCount, len(s.budgets), "legacy", s.legacy != nil)
	return nil
}

// RecomputeAll runs after every service has loaded: it migrates a legacy
// budget onto the active year, drops budgets of unknown years and recomputes
// every remaining budget from the ledger.
func (s *BudgetService) RecomputeAll(ctx context.Context) {
	s.adoptLegacy(ctx)

	kept := s.budgets[:0:0]
	for _, b := range s.budgets {
		if s.registry.Exists(b.FiscalYearID) {
			kept = append(kept, b)
		} else {
			s.logger.WarnContext(ctx, "Dropping budget of unknown fiscal year", log.FieldFiscalYearID, b.FiscalYearID)
		}
	}
	s.budgets = kept
	for i := range s.budgets {
		s.recompute(&s.budgets[i])
	}
	s.store.Commit(ctx, store.KeyBudgets, s.budgets)
	s.publishActive(ctx)
}

func (s *BudgetService) adoptLegacy(ctx context.Context) {
	if s.legacy == nil {
		return
	}
	fy, ok := s.registry.Current()
	if !ok {
		return
	}
	if s.index(fy.ID) < 0 {
		b := s.newBudget(fy.ID)
		if s.legacy.ID != "" {
			b.ID = s.legacy.ID
		}
		// The legacy document had no category rows; its ceiling lands on Other.
		if s.legacy.TotalBudget.IsPositive() {
			b.CategoryBudgets = append(b.CategoryBudgets, core.CategoryBudget{
				Category:     core.Other,
				BudgetAmount: s.legacy.TotalBudget,
				LastUpdated:  s.now(),
			})
		}
		s.budgets = append(s.budgets, b)
		s.logger.InfoContext(ctx, "Migrated legacy budget", log.FieldFiscalYearID, fy.ID,
			log.FieldAmount, core.FormatAmount(s.legacy.TotalBudget))
	}
	s.legacy = nil
	if err := s.store.Remove(ctx, store.KeyLegacyBudget); err != nil {
		s.logger.WarnContext(ctx, "Failed to remove legacy budget", log.FieldError, err)
	}
}

func (s *BudgetService) newBudget(fiscalYearID string) core.Budget {
	return core.Budget{
		ID:              uuid.NewString(),
		FiscalYearID:    fiscalYearID,
		TotalBudget:     decimal.Zero,
		TotalSpent:      decimal.Zero,
		LastUpdated:     s.now(),
		CategoryBudgets: []core.CategoryBudget{},
	}
}

// EnsureBudget returns the budget of the fiscal year, creating it if needed.
func (s *BudgetService) EnsureBudget(ctx context.Context, fiscalYearID string) (core.Budget, error) {
	if !s.registry.Exists(fiscalYearID) {
		return core.Budget{}, core.NewNotFoundError("fiscal year", fiscalYearID)
	}
	i, created := s.ensure(fiscalYearID)
	if created {
		s.store.Commit(ctx, store.KeyBudgets, s.budgets)
		s.logger.InfoContext(ctx, "Budget created", log.FieldFiscalYearID, fiscalYearID)
	}
	return s.budgets[i].Clone(), nil
}

func (s *BudgetService) ensure(fiscalYearID string) (int, bool) {
	if i := s.index(fiscalYearID); i >= 0 {
		return i, false
	}
	b := s.newBudget(fiscalYearID)
	s.recompute(&b)
	s.budgets = append(s.budgets, b)
	return len(s.budgets) - 1, true
}

// SetCategoryBudget sets the ceiling for a category in the active fiscal year.
// The spent amount of an existing row is kept.
func (s *BudgetService) SetCategoryBudget(ctx context.Context, c core.Category, amount decimal.Decimal) error {
	if !c.IsValid() {
		return core.NewValidationError("category", "unknown category "+c.String())
	}
	if !amount.IsPositive() {
		return core.NewValidationError("amount", "budget amount must be greater than zero")
	}
	fy, ok := s.registry.Current()
	if !ok {
		return fmt.Errorf("set category budget: %w", core.ErrNoActiveFiscalYear)
	}

	i, _ := s.ensure(fy.ID)
	b := &s.budgets[i]
	now := s.now()
	found := false
	for j := range b.CategoryBudgets {
		if b.CategoryBudgets[j].Category == c {
			b.CategoryBudgets[j].BudgetAmount = amount
			b.CategoryBudgets[j].LastUpdated = now
			found = true
			break
		}
	}
	if !found {
		b.CategoryBudgets = append(b.CategoryBudgets, core.CategoryBudget{
			Category:     c,
			BudgetAmount: amount,
			SpentAmount:  s.spentIn(fy.ID, c),
			LastUpdated:  now,
		})
	}
	s.totals(b)
	b.LastUpdated = now

	s.store.Commit(ctx, store.KeyBudgets, s.budgets)
	s.logger.InfoContext(ctx, "Category budget set",
		log.FieldFiscalYearID, fy.ID, log.FieldCategory, c.String(), log.FieldAmount, core.FormatAmount(amount))
	s.publishActive(ctx)
	return nil
}

// RemoveCategoryBudget clears the ceiling of a category in the active fiscal
// year. Its spent amount stays tracked while expenses exist.
func (s *BudgetService) RemoveCategoryBudget(ctx context.Context, c core.Category) error {
	fy, ok := s.registry.Current()
	if !ok {
		return fmt.Errorf("remove category budget: %w", core.ErrNoActiveFiscalYear)
	}
	i := s.index(fy.ID)
	if i < 0 {
		return core.NewNotFoundError("category budget", c.String())
	}
	b := &s.budgets[i]
	j := -1
	for k, cb := range b.CategoryBudgets {
		if cb.Category == c && cb.BudgetAmount.IsPositive() {
			j = k
			break
		}
	}
	if j < 0 {
		return core.NewNotFoundError("category budget", c.String())
	}
	b.CategoryBudgets[j].BudgetAmount = decimal.Zero
	b.CategoryBudgets[j].LastUpdated = s.now()
	s.recompute(b)

	s.store.Commit(ctx, store.KeyBudgets, s.budgets)
	s.logger.InfoContext(ctx, "Category budget removed", log.FieldFiscalYearID, fy.ID, log.FieldCategory, c.String())
	s.publishActive(ctx)
	return nil
}

// RecomputeSpent rebuilds every spent amount of the fiscal year's budget from
// the ledger. Unknown fiscal years are ignored.
func (s *BudgetService) RecomputeSpent(ctx context.Context, fiscalYearID string) {
	if !s.registry.Exists(fiscalYearID) {
		s.logger.DebugContext(ctx, "Skipping recompute for unknown fiscal year", log.FieldFiscalYearID, fiscalYearID)
		return
	}
	i, _ := s.ensure(fiscalYearID)
	s.recompute(&s.budgets[i])
	s.store.Commit(ctx, store.KeyBudgets, s.budgets)
	s.logger.DebugContext(ctx, "Budget recomputed", log.FieldFiscalYearID, fiscalYearID,
		"total_spent", core.FormatAmount(s.budgets[i].TotalSpent))
}

// recompute sets every row's spent amount from the ledger. Categories with
// expenses but no ceiling get a row with a zero ceiling so that the total
// spent stays the sum of the rows; such rows disappear again once empty.
func (s *BudgetService) recompute(b *core.Budget) {
	spent := make(map[core.Category]decimal.Decimal)
	var order []core.Category
	for _, e := range s.ledger.List(b.FiscalYearID) {
		if _, ok := spent[e.Category]; !ok {
			order = append(order, e.Category)
		}
		spent[e.Category] = spent[e.Category].Add(e.Amount)
	}

	now := s.now()
	rows := make([]core.CategoryBudget, 0, len(b.CategoryBudgets)+len(order))
	seen := make(map[core.Category]bool, len(b.CategoryBudgets))
	for _, cb := range b.CategoryBudgets {
		seen[cb.Category] = true
		amount := spent[cb.Category]
		if !cb.BudgetAmount.IsPositive() && amount.IsZero() {
			continue
		}
		if !cb.SpentAmount.Equal(amount) {
			cb.SpentAmount = amount
			cb.LastUpdated = now
		}
		rows = append(rows, cb)
	}
	for _, c := range order {
		if seen[c] || spent[c].IsZero() {
			continue
		}
		rows = append(rows, core.CategoryBudget{
			Category:     c,
			BudgetAmount: decimal.Zero,
			SpentAmount:  spent[c],
			LastUpdated:  now,
		})
	}
	b.CategoryBudgets = rows
	s.totals(b)
	b.LastUpdated = now
}

func (s *BudgetService) totals(b *core.Budget) {
	b.TotalBudget = decimal.Zero
	b.TotalSpent = decimal.Zero
	for _, cb := range b.CategoryBudgets {
		b.TotalBudget = b.TotalBudget.Add(cb.BudgetAmount)
		b.TotalSpent = b.TotalSpent.Add(cb.SpentAmount)
	}
}

func (s *BudgetService) spentIn(fiscalYearID string, c core.Category) decimal.Decimal {
	total := decimal.Zero
	for _, e := range s.ledger.ByCategory(fiscalYearID, c) {
		total = total.Add(e.Amount)
	}
	return total
}

func (s *BudgetService) onLedgerChange(ctx context.Context, change LedgerChange) {
	for _, id := range change.FiscalYearIDs {
		s.RecomputeSpent(ctx, id)
	}
	s.publishActive(ctx)
}

func (s *BudgetService) onFiscalYearDeleted(ctx context.Context, fiscalYearID string) {
	i := s.index(fiscalYearID)
	if i < 0 {
		return
	}
	s.budgets = append(s.budgets[:i:i], s.budgets[i+1:]...)
	s.store.Commit(ctx, store.KeyBudgets, s.budgets)
	s.logger.InfoContext(ctx, "Budget deleted with its fiscal year", log.FieldFiscalYearID, fiscalYearID)
}

// Budget returns the fiscal year's budget, or a zero budget when it has none.
func (s *BudgetService) Budget(fiscalYearID string) core.Budget {
	if i := s.index(fiscalYearID); i >= 0 {
		return s.budgets[i].Clone()
	}
	return core.Budget{
		FiscalYearID:    fiscalYearID,
		TotalBudget:     decimal.Zero,
		TotalSpent:      decimal.Zero,
		CategoryBudgets: []core.CategoryBudget{},
	}
}

// ActiveBudget is Budget for the active fiscal year.
func (s *BudgetService) ActiveBudget() core.Budget {
	fy, ok := s.registry.Current()
	if !ok {
		return s.Budget("")
	}
	return s.Budget(fy.ID)
}

// Remaining is TotalBudget minus TotalSpent; negative when overspent.
func (s *BudgetService) Remaining(fiscalYearID string) decimal.Decimal {
	return s.Budget(fiscalYearID).Remaining()
}

// UsagePercentage is TotalSpent as a percentage of TotalBudget, 0 without a budget.
func (s *BudgetService) UsagePercentage(fiscalYearID string) float64 {
	return s.Budget(fiscalYearID).UsagePercentage()
}

func (s *BudgetService) CategoryRemaining(fiscalYearID string, c core.Category) decimal.Decimal {
	cb, _ := s.Budget(fiscalYearID).CategoryBudget(c)
	return cb.Remaining()
}

func (s *BudgetService) CategoryUsagePercentage(fiscalYearID string, c core.Category) float64 {
	cb, _ := s.Budget(fiscalYearID).CategoryBudget(c)
	return cb.UsagePercentage()
}

// Subscribe is notified with the active fiscal year's budget whenever it may
// have changed.
func (s *BudgetService) Subscribe(fn func(context.Context, core.Budget)) func() {
	return s.active.Subscribe(fn)
}

func (s *BudgetService) publishActive(ctx context.Context) {
	s.active.Publish(ctx, s.ActiveBudget())
}

func (s *BudgetService) index(fiscalYearID string) int {
	for i, b := range s.budgets {
		if b.FiscalYearID == fiscalYearID {
			return i
		}
	}
	return -1
}
