package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income         Category = "Income"
	Food           Category = "Food"
	Transportation Category = "Transportation"
	Housing        Category = "Housing"
	Utilities      Category = "Utilities"
	Entertainment  Category = "Entertainment"
	Shopping       Category = "Shopping"
	Healthcare     Category = "Healthcare"
	Other          Category = "Other"
)

const (
	// UpdateRestamp binds an updated expense to whichever fiscal year is active at update time.
	UpdateRestamp UpdatePolicy = "restamp"
	// UpdatePreserve keeps the fiscal year the expense was originally recorded in.
	UpdatePreserve UpdatePolicy = "preserve"
)

type (
	Category string

	UpdatePolicy string

	FiscalYear struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		StartDate time.Time `json:"startDate"`
		EndDate   time.Time `json:"endDate"`
		IsActive  bool      `json:"isActive"`
	}

	Receipt struct {
		FileName   string    `json:"fileName"`
		FileURL    string    `json:"fileUrl"`
		UploadDate time.Time `json:"uploadDate"`
	}

	Expense struct {
		ID           string          `json:"id"`
		Description  string          `json:"description"`
		Amount       decimal.Decimal `json:"amount"`
		Category     Category        `json:"category"`
		Date         time.Time       `json:"date"`
		FiscalYearID string          `json:"fiscalYearId"`
		Notes        string          `json:"notes,omitempty"`
		Receipt      *Receipt        `json:"receipt,omitempty"`
	}

	// ExpenseInput carries the user-editable fields of an expense.
	ExpenseInput struct {
		Description string
		Amount      decimal.Decimal
		Category    Category
		Date        time.Time
		Notes       string
		Receipt     *Receipt
	}

	CategoryBudget struct {
		Category     Category        `json:"category"`
		BudgetAmount decimal.Decimal `json:"budgetAmount"`
		SpentAmount  decimal.Decimal `json:"spentAmount"`
		LastUpdated  time.Time       `json:"lastUpdated"`
	}

	Budget struct {
		ID              string           `json:"id"`
		FiscalYearID    string           `json:"fiscalYearId"`
		TotalBudget     decimal.Decimal  `json:"totalBudget"`
		TotalSpent      decimal.Decimal  `json:"totalSpent"`
		LastUpdated     time.Time        `json:"lastUpdated"`
		CategoryBudgets []CategoryBudget `json:"categoryBudgets"`
	}

	// CategoryInfo is the display metadata stored for a category label.
	CategoryInfo struct {
		ID          string    `json:"id"`
		Name        string    `json:"name"`
		Description string    `json:"description,omitempty"`
		Color       string    `json:"color,omitempty"`
		Icon        string    `json:"icon,omitempty"`
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}
)

// Categories returns the fixed category enumeration in display order.
func Categories() []Category {
	return []Category{Income, Food, Transportation, Housing, Utilities, Entertainment, Shopping, Healthcare, Other}
}

func (c Category) IsValid() bool {
	switch c {
	case Income, Food, Transportation, Housing, Utilities, Entertainment, Shopping, Healthcare, Other:
		return true
	default:
		return false
	}
}

func (c Category) String() string {
	return string(c)
}

// ParseCategory matches a category label case-insensitively.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range Categories() {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", NewValidationError("category", "unknown category "+strings.TrimSpace(s))
}

func (p UpdatePolicy) IsValid() bool {
	return p == UpdateRestamp || p == UpdatePreserve
}

func (fy FiscalYear) Validate() error {
	if strings.TrimSpace(fy.Name) == "" {
		return NewValidationError("name", "fiscal year name cannot be empty")
	}
	return ValidateDateRange(fy.StartDate, fy.EndDate)
}

// ValidateDateRange requires both dates and a strictly increasing range.
func ValidateDateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return NewValidationError("date", "start and end dates are required")
	}
	if !end.After(start) {
		return NewValidationError("endDate", "end date must be after start date")
	}
	return nil
}

// Contains reports whether t falls inside the fiscal year, bounds included.
func (fy FiscalYear) Contains(t time.Time) bool {
	return !t.Before(fy.StartDate) && !t.After(fy.EndDate)
}

func (in ExpenseInput) Validate() error {
	if len(strings.TrimSpace(in.Description)) == 0 {
		return NewValidationError("description", "description cannot be empty")
	}
	if len(in.Description) > 200 {
		return NewValidationError("description", "description too long (max 200 characters)")
	}
	if in.Amount.IsNegative() {
		return NewValidationError("amount", "amount cannot be negative")
	}
	if !in.Category.IsValid() {
		return NewValidationError("category", "unknown category "+string(in.Category))
	}
	if in.Date.IsZero() {
		return NewValidationError("date", "date cannot be zero")
	}
	return nil
}

// Apply overwrites the mutable fields of e with the input. An input without
// a receipt keeps the receipt already attached to the expense.
func (in ExpenseInput) Apply(e Expense) Expense {
	e.Description = strings.TrimSpace(in.Description)
	e.Amount = in.Amount
	e.Category = in.Category
	e.Date = in.Date
	e.Notes = in.Notes
	if in.Receipt != nil {
		r := *in.Receipt
		e.Receipt = &r
	}
	return e
}

// Equal compares expenses structurally; decimal and time values are compared by value.
func (e Expense) Equal(o Expense) bool {
	if e.ID != o.ID || e.Description != o.Description || e.Category != o.Category ||
		e.FiscalYearID != o.FiscalYearID || e.Notes != o.Notes {
		return false
	}
	if !e.Amount.Equal(o.Amount) || !e.Date.Equal(o.Date) {
		return false
	}
	switch {
	case e.Receipt == nil && o.Receipt == nil:
		return true
	case e.Receipt == nil || o.Receipt == nil:
		return false
	}
	return e.Receipt.FileName == o.Receipt.FileName &&
		e.Receipt.FileURL == o.Receipt.FileURL &&
		e.Receipt.UploadDate.Equal(o.Receipt.UploadDate)
}

// CategoryBudget returns the row for c, if any.
func (b Budget) CategoryBudget(c Category) (CategoryBudget, bool) {
	for _, cb := range b.CategoryBudgets {
		if cb.Category == c {
			return cb, true
		}
	}
	return CategoryBudget{}, false
}

func (b Budget) Remaining() decimal.Decimal {
	return b.TotalBudget.Sub(b.TotalSpent)
}

func (b Budget) UsagePercentage() float64 {
	return UsagePercentage(b.TotalSpent, b.TotalBudget)
}

func (cb CategoryBudget) Remaining() decimal.Decimal {
	return cb.BudgetAmount.Sub(cb.SpentAmount)
}

func (cb CategoryBudget) UsagePercentage() float64 {
	return UsagePercentage(cb.SpentAmount, cb.BudgetAmount)
}

// UsagePercentage returns spent/budget*100, or 0 when budget is not positive.
func UsagePercentage(spent, budget decimal.Decimal) float64 {
	if !budget.IsPositive() {
		return 0
	}
	pct, _ := spent.Mul(hundred).Div(budget).Float64()
	return pct
}

// Clone returns a deep copy so callers cannot mutate the owner's rows.
func (b Budget) Clone() Budget {
	out := b
	out.CategoryBudgets = append([]CategoryBudget(nil), b.CategoryBudgets...)
	return out
}

func (e Expense) Clone() Expense {
	out := e
	if e.Receipt != nil {
		r := *e.Receipt
		out.Receipt = &r
	}
	return out
}
