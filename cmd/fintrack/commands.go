package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/amqp"
	"fintrack/internal/app"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/worker"
)

const dateLayout = "2006-01-02"

type commands struct {
	app    *app.App
	out    io.Writer
	logger *log.Logger
}

func (c *commands) dispatch(ctx context.Context, args []string) error {
	switch args[0] {
	case "fy":
		return c.fiscalYear(ctx, args[1:])
	case "expense":
		return c.expense(ctx, args[1:])
	case "budget":
		return c.budget(ctx, args[1:])
	case "summary":
		return c.summary(args[1:])
	case "categories":
		return c.categories()
	case "export":
		return c.export(ctx, args[1:])
	case "watch":
		return c.watch(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q: %w", args[0], errUsage)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, core.NewValidationError("date", fmt.Sprintf("%q is not a YYYY-MM-DD date", s))
	}
	return t, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := core.ParseAmount(s)
	if err != nil {
		return decimal.Zero, core.NewValidationError("amount", fmt.Sprintf("%q is not a valid amount", s))
	}
	return d, nil
}

// idAndFlags splits "ID -flag value ..." so the id may precede the flags.
func idAndFlags(args []string) (string, []string, error) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "", nil, errUsage
	}
	return args[0], args[1:], nil
}

func (c *commands) fiscalYear(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	fys := c.app.FiscalYears
	switch args[0] {
	case "create":
		fs := newFlagSet("fy create")
		name := fs.String("name", "", "fiscal year name")
		start := fs.String("start", "", "first day")
		end := fs.String("end", "", "last day (default: one year after start)")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		startDate, err := parseDate(*start)
		if err != nil {
			return err
		}
		endDate := services.DefaultEndDate(startDate)
		if *end != "" {
			if endDate, err = parseDate(*end); err != nil {
				return err
			}
		}
		fy, err := fys.Create(ctx, *name, startDate, endDate)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, fy.ID)
		return nil

	case "list":
		w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ACTIVE\tID\tNAME\tSTART\tEND")
		for _, fy := range fys.List() {
			mark := ""
			if fy.IsActive {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", mark, fy.ID, fy.Name,
				fy.StartDate.Format(dateLayout), fy.EndDate.Format(dateLayout))
		}
		return w.Flush()

	case "activate":
		if len(args) != 2 {
			return errUsage
		}
		return fys.SetActive(ctx, args[1])

	case "update":
		id, rest, err := idAndFlags(args[1:])
		if err != nil {
			return err
		}
		fs := newFlagSet("fy update")
		name := fs.String("name", "", "new name")
		start := fs.String("start", "", "new first day")
		end := fs.String("end", "", "new last day")
		active := fs.Bool("active", false, "make this the active fiscal year")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		var patch services.FiscalYearPatch
		var perr error
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "name":
				patch.Name = name
			case "start":
				t, err := parseDate(*start)
				perr = errors.Join(perr, err)
				patch.StartDate = &t
			case "end":
				t, err := parseDate(*end)
				perr = errors.Join(perr, err)
				patch.EndDate = &t
			case "active":
				patch.IsActive = active
			}
		})
		if perr != nil {
			return perr
		}
		return fys.Update(ctx, id, patch)

	case "delete":
		if len(args) != 2 {
			return errUsage
		}
		return fys.Delete(ctx, args[1])

	default:
		return errUsage
	}
}

func (c *commands) expense(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	ledger := c.app.Expenses
	switch args[0] {
	case "add":
		in, err := c.expenseInput("expense add", args[1:], core.Expense{Date: time.Now().UTC().Truncate(24 * time.Hour)})
		if err != nil {
			return err
		}
		e, err := ledger.Add(ctx, in)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, e.ID)
		return nil

	case "update":
		id, rest, err := idAndFlags(args[1:])
		if err != nil {
			return err
		}
		cur, err := ledger.Get(id)
		if err != nil {
			return err
		}
		in, err := c.expenseInput("expense update", rest, cur)
		if err != nil {
			return err
		}
		return ledger.Update(ctx, id, in)

	case "delete":
		if len(args) != 2 {
			return errUsage
		}
		return ledger.Delete(ctx, args[1])

	case "list":
		fs := newFlagSet("expense list")
		fyID := fs.String("fy", "", "fiscal year id (default: active)")
		category := fs.String("category", "", "only this category")
		search := fs.String("search", "", "match description or notes")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		id := *fyID
		if id == "" {
			fy, ok := c.app.FiscalYears.Current()
			if !ok {
				return core.ErrNoActiveFiscalYear
			}
			id = fy.ID
		}
		var list []core.Expense
		switch {
		case *category != "":
			cat, err := core.ParseCategory(*category)
			if err != nil {
				return err
			}
			list = ledger.ByCategory(id, cat)
		case *search != "":
			list = ledger.Search(id, *search)
		default:
			list = ledger.List(id)
		}
		return c.printExpenses(list)

	case "attach":
		if len(args) != 3 {
			return errUsage
		}
		return c.attach(ctx, args[1], args[2])

	default:
		return errUsage
	}
}

// expenseInput parses expense flags on top of the values in base.
func (c *commands) expenseInput(name string, args []string, base core.Expense) (core.ExpenseInput, error) {
	fs := newFlagSet(name)
	desc := fs.String("desc", base.Description, "description")
	amount := fs.String("amount", "", "amount")
	category := fs.String("category", base.Category.String(), "category")
	date := fs.String("date", base.Date.Format(dateLayout), "date")
	notes := fs.String("notes", base.Notes, "notes")
	if err := fs.Parse(args); err != nil {
		return core.ExpenseInput{}, err
	}

	in := core.ExpenseInput{
		Description: *desc,
		Amount:      base.Amount,
		Category:    core.Category(*category),
		Notes:       *notes,
	}
	if *amount != "" {
		d, err := parseAmount(*amount)
		if err != nil {
			return core.ExpenseInput{}, err
		}
		in.Amount = d
	}
	d, err := parseDate(*date)
	if err != nil {
		return core.ExpenseInput{}, err
	}
	in.Date = d
	return in, nil
}

func (c *commands) printExpenses(list []core.Expense) error {
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tCATEGORY\tAMOUNT\tDESCRIPTION\tRECEIPT")
	for _, e := range list {
		receipt := ""
		if e.Receipt != nil {
			receipt = e.Receipt.FileName
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", e.ID, e.Date.Format(dateLayout), e.Category,
			core.FormatAmount(e.Amount), e.Description, receipt)
	}
	return w.Flush()
}

func (c *commands) attach(ctx context.Context, expenseID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	contentType, _, _ := strings.Cut(mime.TypeByExtension(strings.ToLower(filepath.Ext(path))), ";")
	rec, err := c.app.AttachReceipt(ctx, expenseID, filepath.Base(path), contentType, info.Size(), f)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, rec.FileURL)
	return nil
}

func (c *commands) budget(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	budgets := c.app.Budgets
	switch args[0] {
	case "set":
		if len(args) != 3 {
			return errUsage
		}
		amount, err := parseAmount(args[2])
		if err != nil {
			return err
		}
		return budgets.SetCategoryBudget(ctx, core.Category(args[1]), amount)

	case "remove":
		if len(args) != 2 {
			return errUsage
		}
		return budgets.RemoveCategoryBudget(ctx, core.Category(args[1]))

	case "show":
		fs := newFlagSet("budget show")
		fyID := fs.String("fy", "", "fiscal year id (default: active)")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		b := budgets.ActiveBudget()
		if *fyID != "" {
			if _, err := c.app.FiscalYears.Get(*fyID); err != nil {
				return err
			}
			b = budgets.Budget(*fyID)
		}
		w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CATEGORY\tBUDGET\tSPENT\tREMAINING\tUSED")
		for _, cb := range b.CategoryBudgets {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1f%%\n", cb.Category,
				core.FormatAmount(cb.BudgetAmount), core.FormatAmount(cb.SpentAmount),
				core.FormatAmount(cb.Remaining()), cb.UsagePercentage())
		}
		fmt.Fprintf(w, "TOTAL\t%s\t%s\t%s\t%.1f%%\n",
			core.FormatAmount(b.TotalBudget), core.FormatAmount(b.TotalSpent),
			core.FormatAmount(b.Remaining()), b.UsagePercentage())
		return w.Flush()

	default:
		return errUsage
	}
}

func (c *commands) summary(args []string) error {
	fs := newFlagSet("summary")
	page := fs.Int("page", 1, "page of recent expenses, starting at 1")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p := c.app.Summary.Projection()
	if p.FiscalYearID == "" {
		return core.ErrNoActiveFiscalYear
	}
	fy, err := c.app.FiscalYears.Get(p.FiscalYearID)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s: total %s\n\n", fy.Name, core.FormatAmount(p.Summary.TotalAmount))

	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tAMOUNT\tSHARE\tCOLOR")
	for _, s := range p.Shares {
		fmt.Fprintf(w, "%s\t%s\t%.1f%%\t%s\n", s.Name, core.FormatAmount(s.Amount), s.Percentage, s.Color)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	pager := c.app.Summary.RecentPager()
	pager.SetPage(*page - 1)
	fmt.Fprintf(c.out, "\nrecent expenses (page %d of %d)\n", pager.PageIndex()+1, max(pager.PageCount(), 1))
	return c.printExpenses(pager.Page())
}

func (c *commands) categories() error {
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCOLOR\tDESCRIPTION")
	for _, info := range c.app.Categories.List() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", info.Name, info.Color, info.Description)
	}
	return w.Flush()
}

func (c *commands) export(ctx context.Context, args []string) error {
	fs := newFlagSet("export")
	fyID := fs.String("fy", "", "fiscal year id (default: active)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return c.app.Export(ctx, *fyID)
}

// watch prints every snapshot notification until interrupted. With -export
// it also keeps the spreadsheet in step with the persisted ledger.
func (c *commands) watch(ctx context.Context, args []string) error {
	fs := newFlagSet("watch")
	export := fs.Bool("export", false, "re-export the active year on every change")
	if err := fs.Parse(args); err != nil {
		return err
	}
	broker := c.app.Broker()
	if broker == nil {
		return errors.New("watch needs AMQP_URL")
	}

	var w *worker.ExportWorker
	if *export {
		var err error
		if w, err = c.app.ExportWorker(); err != nil {
			return err
		}
		if err := w.Sync(ctx); err != nil {
			c.logger.ErrorContext(ctx, "Startup export failed", log.FieldError, err)
		}
	}

	c.logger.InfoContext(ctx, "Watching snapshot notifications", "export", *export)
	return broker.ConsumeSnapshotSaved(ctx, func(m *amqp.SnapshotSavedMessage) error {
		fmt.Fprintf(c.out, "%s\t%s\trev=%d\n", m.Timestamp.Format(time.RFC3339), m.Key, m.Revision)
		if w != nil {
			return w.HandleSnapshotSaved(ctx, m)
		}
		return nil
	})
}
