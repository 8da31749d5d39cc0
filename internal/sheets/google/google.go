package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/sheets"
)

// Exporter writes fiscal-year expense sheets into a Google spreadsheet.
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	logger        *log.Logger
}

var _ sheets.Exporter = (*Exporter)(nil)

// Credentials selects the service account used to reach the Sheets API.
// JSON wins over File when both are set.
type Credentials struct {
	JSON string
	File string
}

// Load returns the raw service-account key.
func (c Credentials) Load() ([]byte, error) {
	switch {
	case strings.TrimSpace(c.JSON) != "":
		return []byte(c.JSON), nil
	case strings.TrimSpace(c.File) != "":
		b, err := os.ReadFile(c.File)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// NewExporter builds a Sheets client authenticated as a service account.
func NewExporter(ctx context.Context, spreadsheetID string, creds Credentials, logger *log.Logger) (*Exporter, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	credentialsJSON, err := creds.Load()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", spreadsheetID)

	return &Exporter{svc: svc, spreadsheetID: spreadsheetID, logger: logger}, nil
}

// ExportExpenses overwrites the fiscal year's sheet, creating the tab first
// when the spreadsheet does not have it yet.
func (e *Exporter) ExportExpenses(ctx context.Context, fy core.FiscalYear, expenses []core.Expense) error {
	if e.svc == nil {
		return errors.New("sheets service not initialized")
	}
	name := sheets.SheetName(fy)

	if err := e.ensureSheet(ctx, name); err != nil {
		return err
	}

	rng := quoteSheet(name)
	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}

	vr := &gsheet.ValueRange{Values: BuildValues(expenses)}
	if _, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, rng+"!A1", vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", rng, err)
	}

	e.logger.InfoContext(ctx, "Expenses exported",
		log.FieldOperation, log.OpExport,
		log.FieldFiscalYearID, fy.ID,
		"sheet", name,
		log.FieldCount, len(expenses))
	return nil
}

func (e *Exporter) ensureSheet(ctx context.Context, name string) error {
	ss, err := e.svc.Spreadsheets.Get(e.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == name {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: name}},
		}},
	}
	if _, err := e.svc.Spreadsheets.BatchUpdate(e.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %q: %w", name, err)
	}
	e.logger.InfoContext(ctx, "Sheet created", "sheet", name)
	return nil
}

// BuildValues converts expenses into the cell matrix sent to the API.
// Amounts are numbers so the spreadsheet can sum them.
func BuildValues(expenses []core.Expense) [][]any {
	out := make([][]any, 0, len(expenses)+1)
	header := make([]any, len(sheets.Header))
	for i, h := range sheets.Header {
		header[i] = h
	}
	out = append(out, header)
	for _, exp := range expenses {
		row := sheets.Row(exp)
		cells := make([]any, len(row))
		for i, c := range row {
			cells[i] = c
		}
		cells[3] = exp.Amount.InexactFloat64()
		out = append(out, cells)
	}
	return out
}

// quoteSheet wraps a sheet title for use in A1 notation.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
