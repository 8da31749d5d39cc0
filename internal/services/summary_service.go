package services

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/shopspring/decimal"

	"fintrack/internal/broadcast"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

// Projection is the read model of the active fiscal year handed to presentation.
type Projection struct {
	FiscalYearID string
	Summary      core.ExpenseSummary
	Shares       []core.CategoryShare
}

func sameProjection(a, b Projection) bool {
	return a.FiscalYearID == b.FiscalYearID &&
		slices.EqualFunc(a.Summary.RecentExpenses, b.Summary.RecentExpenses, core.Expense.Equal)
}

// SummaryService projects the ledger into summaries and paged views. It
// re-emits the active projection only when its expense list actually changed.
type SummaryService struct {
	registry   *FiscalYearService
	ledger     *ExpenseService
	categories *CategoryService
	cache      *cache.LRUCache[core.ExpenseSummary]
	logger     *log.Logger

	projection *broadcast.Subject[Projection]
	recent     *Pager[core.Expense]
	breakdown  *Pager[core.CategoryShare]
}

// NewSummaryService subscribes to the ledger and the registry. Summaries are
// cached per fiscal year and ledger revision.
func NewSummaryService(registry *FiscalYearService, ledger *ExpenseService, categories *CategoryService,
	summaries *cache.LRUCache[core.ExpenseSummary], pageSize int, logger *log.Logger,
) *SummaryService {
	if logger == nil {
		logger = log.Default()
	}
	s := &SummaryService{
		registry:   registry,
		ledger:     ledger,
		categories: categories,
		cache:      summaries,
		logger:     logger.WithComponent(log.ComponentSummary),
		projection: broadcast.NewDistinct(Projection{}, sameProjection),
		recent:     NewPager[core.Expense](pageSize),
		breakdown:  NewPager[core.CategoryShare](pageSize),
	}
	ledger.Subscribe(func(ctx context.Context, _ LedgerChange) { s.Refresh(ctx) })
	registry.SubscribeCurrent(func(ctx context.Context, _ *core.FiscalYear) { s.Refresh(ctx) })
	registry.SubscribeDeleted(func(_ context.Context, id string) { s.cache.DeletePrefix(id + ":") })
	return s
}

// Summary totals the fiscal year's expenses. Only categories with at least
// one expense appear in the breakdown.
func (s *SummaryService) Summary(fiscalYearID string) core.ExpenseSummary {
	key := fmt.Sprintf("%s:%d", fiscalYearID, s.ledger.Revision())
	if cached, ok := s.cache.Get(key); ok {
		return cloneSummary(cached)
	}

	expenses := s.ledger.List(fiscalYearID)
	sum := core.ExpenseSummary{
		FiscalYearID:      fiscalYearID,
		TotalAmount:       decimal.Zero,
		CategoryBreakdown: make(map[core.Category]decimal.Decimal),
		RecentExpenses:    expenses,
	}
	for _, e := range expenses {
		sum.TotalAmount = sum.TotalAmount.Add(e.Amount)
		sum.CategoryBreakdown[e.Category] = sum.CategoryBreakdown[e.Category].Add(e.Amount)
	}

	s.cache.Set(key, sum)
	return cloneSummary(sum)
}

func cloneSummary(sum core.ExpenseSummary) core.ExpenseSummary {
	out := sum
	out.CategoryBreakdown = maps.Clone(sum.CategoryBreakdown)
	out.RecentExpenses = make([]core.Expense, len(sum.RecentExpenses))
	for i, e := range sum.RecentExpenses {
		out.RecentExpenses[i] = e.Clone()
	}
	return out
}

// CategoryPercentages is the package level CategoryPercentages with colours
// from the category catalog.
func (s *SummaryService) CategoryPercentages(sum core.ExpenseSummary) []core.CategoryShare {
	return CategoryPercentages(sum, s.categories.Color)
}

// CategoryPercentages lists the breakdown by amount, largest first, with each
// category's share of the total. A zero total gives zero percentages.
func CategoryPercentages(sum core.ExpenseSummary, color func(core.Category) string) []core.CategoryShare {
	shares := make([]core.CategoryShare, 0, len(sum.CategoryBreakdown))
	for c, amount := range sum.CategoryBreakdown {
		share := core.CategoryShare{
			Name:       c,
			Amount:     amount,
			Percentage: core.UsagePercentage(amount, sum.TotalAmount),
		}
		if color != nil {
			share.Color = color(c)
		}
		shares = append(shares, share)
	}
	slices.SortFunc(shares, func(a, b core.CategoryShare) int {
		if c := b.Amount.Cmp(a.Amount); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return shares
}

// Refresh recomputes the active projection and, if its expenses changed,
// publishes it and feeds the pagers.
func (s *SummaryService) Refresh(ctx context.Context) {
	next := Projection{
		Summary: core.ExpenseSummary{
			TotalAmount:       decimal.Zero,
			CategoryBreakdown: map[core.Category]decimal.Decimal{},
			RecentExpenses:    []core.Expense{},
		},
		Shares: []core.CategoryShare{},
	}
	if fy, ok := s.registry.Current(); ok {
		next.FiscalYearID = fy.ID
		next.Summary = s.Summary(fy.ID)
		next.Shares = s.CategoryPercentages(next.Summary)
	}

	if !s.projection.Publish(ctx, next) {
		return
	}
	s.recent.SetItems(next.Summary.RecentExpenses)
	s.breakdown.SetItems(next.Shares)
	s.logger.DebugContext(ctx, "Projection updated",
		log.FieldFiscalYearID, next.FiscalYearID, log.FieldCount, len(next.Summary.RecentExpenses))
}

// Projection returns the last published projection.
func (s *SummaryService) Projection() Projection {
	return s.projection.Value()
}

// Subscribe is notified with every projection that differs from the last one.
func (s *SummaryService) Subscribe(fn func(context.Context, Projection)) func() {
	return s.projection.Subscribe(fn)
}

// RecentPager pages through the active year's expenses, newest first.
func (s *SummaryService) RecentPager() *Pager[core.Expense] {
	return s.recent
}

// BreakdownPager pages through the active year's category shares.
func (s *SummaryService) BreakdownPager() *Pager[core.CategoryShare] {
	return s.breakdown
}
