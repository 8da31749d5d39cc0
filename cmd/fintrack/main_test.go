package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("STORE_BACKEND", "file")
	t.Setenv("DATA_DIR", dir)
	t.Setenv("AMQP_URL", "")
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")
	t.Setenv("UPDATE_POLICY", "")
	t.Setenv("PAGE_SIZE", "")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func runCmd(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, errOut, code := runCmd(t, args...)
	if code != 0 {
		t.Fatalf("%v exited %d: %s", args, code, errOut)
	}
	return out
}

func TestUsage(t *testing.T) {
	_, errOut, code := runCmd(t)
	if code != 2 || !strings.Contains(errOut, "usage: fintrack") {
		t.Fatalf("code=%d stderr=%s", code, errOut)
	}
}

func TestUnknownCommand(t *testing.T) {
	setupEnv(t)
	_, errOut, code := runCmd(t, "frobnicate")
	if code != 2 || !strings.Contains(errOut, "usage: fintrack") {
		t.Fatalf("code=%d stderr=%s", code, errOut)
	}
}

func TestTrackerWorkflow(t *testing.T) {
	setupEnv(t)

	fyID := strings.TrimSpace(mustRun(t, "fy", "create", "-name", "FY 2024", "-start", "2024-01-01"))
	if fyID == "" {
		t.Fatal("fy create printed no id")
	}

	list := mustRun(t, "fy", "list")
	if !strings.Contains(list, "FY 2024") || !strings.Contains(list, "2024-12-31") {
		t.Fatalf("unexpected fy list:\n%s", list)
	}

	expID := strings.TrimSpace(mustRun(t, "expense", "add", "-desc", "Groceries", "-amount", "50", "-category", "Food", "-date", "2024-03-01"))
	mustRun(t, "expense", "add", "-desc", "Bus pass", "-amount", "30,5", "-category", "Transportation", "-date", "2024-03-02")
	mustRun(t, "budget", "set", "Food", "200")

	budget := mustRun(t, "budget", "show")
	if !strings.Contains(budget, "Food") || !strings.Contains(budget, "150.00") || !strings.Contains(budget, "25.0%") {
		t.Fatalf("unexpected budget:\n%s", budget)
	}

	mustRun(t, "expense", "update", expID, "-amount", "80")
	expenses := mustRun(t, "expense", "list", "-category", "Food")
	if !strings.Contains(expenses, "80.00") || strings.Contains(expenses, "Bus pass") {
		t.Fatalf("unexpected expenses:\n%s", expenses)
	}

	summary := mustRun(t, "summary")
	if !strings.Contains(summary, "FY 2024: total 110.50") {
		t.Fatalf("unexpected summary:\n%s", summary)
	}
	if !strings.Contains(summary, "#10B981") {
		t.Fatalf("summary should carry category colours:\n%s", summary)
	}

	mustRun(t, "expense", "delete", expID)
	summary = mustRun(t, "summary")
	if !strings.Contains(summary, "total 30.50") {
		t.Fatalf("unexpected summary after delete:\n%s", summary)
	}
}

func TestValidationErrorsExitNonZero(t *testing.T) {
	setupEnv(t)

	_, errOut, code := runCmd(t, "expense", "add", "-desc", "x", "-amount", "5", "-category", "Food")
	if code != 1 || !strings.Contains(errOut, "no active fiscal year") {
		t.Fatalf("code=%d stderr=%s", code, errOut)
	}

	mustRun(t, "fy", "create", "-name", "FY", "-start", "2024-01-01")
	_, errOut, code = runCmd(t, "budget", "set", "Food", "-5")
	if code != 1 || !strings.Contains(errOut, "error:") {
		t.Fatalf("code=%d stderr=%s", code, errOut)
	}
	_, errOut, code = runCmd(t, "fy", "create", "-name", "Bad", "-start", "yesterday")
	if code != 1 || !strings.Contains(errOut, "YYYY-MM-DD") {
		t.Fatalf("code=%d stderr=%s", code, errOut)
	}
}

func TestAttachReceipt(t *testing.T) {
	dir := setupEnv(t)
	mustRun(t, "fy", "create", "-name", "FY", "-start", "2024-01-01")
	expID := strings.TrimSpace(mustRun(t, "expense", "add", "-desc", "Dinner", "-amount", "20", "-category", "Food", "-date", "2024-05-05"))

	scan := filepath.Join(t.TempDir(), "dinner.png")
	if err := os.WriteFile(scan, []byte("png bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	url := strings.TrimSpace(mustRun(t, "expense", "attach", expID, scan))
	if !strings.HasPrefix(url, "file://") {
		t.Fatalf("unexpected receipt url %q", url)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "receipts"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one stored receipt, got %v (%v)", entries, err)
	}

	list := mustRun(t, "expense", "list")
	if !strings.Contains(list, "dinner.png") {
		t.Fatalf("receipt missing from listing:\n%s", list)
	}
}

func TestExportWithoutSpreadsheet(t *testing.T) {
	setupEnv(t)
	_, errOut, code := runCmd(t, "export")
	if code != 1 || !strings.Contains(errOut, "export is not configured") {
		t.Fatalf("code=%d stderr=%s", code, errOut)
	}
}

func TestWatchNeedsBroker(t *testing.T) {
	setupEnv(t)
	_, errOut, code := runCmd(t, "watch")
	if code != 1 || !strings.Contains(errOut, "AMQP_URL") {
		t.Fatalf("code=%d stderr=%s", code, errOut)
	}
}
