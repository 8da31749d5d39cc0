package core

import "github.com/shopspring/decimal"

// ExpenseSummary aggregates the expenses of one fiscal year.
type ExpenseSummary struct {
	FiscalYearID      string
	TotalAmount       decimal.Decimal
	CategoryBreakdown map[Category]decimal.Decimal
	RecentExpenses    []Expense
}

// CategoryShare is one row of the category breakdown with its share of the total.
type CategoryShare struct {
	Name       Category
	Amount     decimal.Decimal
	Percentage float64
	Color      string
}
