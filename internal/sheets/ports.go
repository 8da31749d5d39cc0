package sheets

import (
	"context"

	"fintrack/internal/core"
)

// Exporter writes the expenses of one fiscal year to an external spreadsheet.
type Exporter interface {
	ExportExpenses(ctx context.Context, fy core.FiscalYear, expenses []core.Expense) error
}

// Header is the first row of every exported expenses sheet.
var Header = []string{"Date", "Description", "Category", "Amount", "Notes", "Receipt"}

// Row renders one expense as spreadsheet cells matching Header.
func Row(e core.Expense) []string {
	receipt := ""
	if e.Receipt != nil {
		receipt = e.Receipt.FileURL
	}
	return []string{
		e.Date.Format("2006-01-02"),
		e.Description,
		e.Category.String(),
		core.FormatAmount(e.Amount),
		e.Notes,
		receipt,
	}
}

// SheetName returns the tab an export of fy is written to.
func SheetName(fy core.FiscalYear) string {
	return fy.Name + " Expenses"
}
