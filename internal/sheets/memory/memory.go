package memory

import (
	"context"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

// Exporter keeps exported sheets in memory, keyed by sheet name.
type Exporter struct {
	mu     sync.Mutex
	sheets map[string][][]string
}

var _ sheets.Exporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{sheets: make(map[string][][]string)}
}

// ExportExpenses replaces the sheet for fy with a header and one row per expense.
func (e *Exporter) ExportExpenses(ctx context.Context, fy core.FiscalYear, expenses []core.Expense) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rows := make([][]string, 0, len(expenses)+1)
	rows = append(rows, append([]string(nil), sheets.Header...))
	for _, exp := range expenses {
		rows = append(rows, sheets.Row(exp))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.sheets[sheets.SheetName(fy)] = rows
	return nil
}

// Sheet returns a copy of the named sheet's rows.
func (e *Exporter) Sheet(name string) ([][]string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rows, ok := e.sheets[name]
	if !ok {
		return nil, false
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out, true
}
