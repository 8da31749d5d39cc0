package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

func TestFiscalYearService_CreateActivatesFirstOnly(t *testing.T) {
	f := newFixture(t, core.UpdateRestamp)

	first := f.createYear(t, "FY2024", 2024)
	second := f.createYear(t, "FY2025", 2025)

	if !first.IsActive {
		t.Fatalf("first fiscal year should be active")
	}
	if second.IsActive {
		t.Fatalf("later fiscal years should start inactive")
	}
	cur, ok := f.registry.Current()
	if !ok || cur.ID != first.ID {
		t.Fatalf("expected %s to be current, got %+v", first.ID, cur)
	}
	if first.ID == second.ID {
		t.Fatalf("ids must be unique")
	}
}

func TestFiscalYearService_CreateValidation(t *testing.T) {
	start := date(2024, time.January, 1)
	tests := []struct {
		name  string
		fy    string
		start time.Time
		end   time.Time
	}{
		{"end before start", "FY", start, start.AddDate(0, 0, -1)},
		{"end equals start", "FY", start, start},
		{"blank name", "  ", start, start.AddDate(1, 0, 0)},
		{"missing dates", "FY", time.Time{}, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, core.UpdateRestamp)
			_, err := f.registry.Create(f.ctx, tt.fy, tt.start, tt.end)
			var verr *core.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if len(f.registry.List()) != 0 {
				t.Fatalf("failed create must not register a year")
			}
		})
	}
}

func TestFiscalYearService_SetActive(t *testing.T) {
	f := newFixture(t, core.UpdateRestamp)
	a := f.createYear(t, "A", 2023)
	b := f.createYear(t, "B", 2024)

	if err := f.registry.SetActive(f.ctx, b.ID); err != nil {
		t.Fatalf("set active: %v", err)
	}
	years := f.registry.List()
	if activeCount(years) != 1 {
		t.Fatalf("expected exactly one active year, got %d", activeCount(years))
	}
	if cur, _ := f.registry.Current(); cur.ID != b.ID {
		t.Fatalf("expected %s active, got %s", b.ID, cur.ID)
	}
	if got, _ := f.registry.Get(a.ID); got.IsActive {
		t.Fatalf("previous year should be deactivated")
	}

	err := f.registry.SetActive(f.ctx, "missing")
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFiscalYearService_Update(t *testing.T) {
	f := newFixture(t, core.UpdateRestamp)
	a := f.createYear(t, "A", 2023)
	b := f.createYear(t, "B", 2024)

	name := "Renamed"
	if err := f.registry.Update(f.ctx, b.ID, FiscalYearPatch{Name: &name}); err != nil {
		t.Fatalf("update name: %v", err)
	}
	if got, _ := f.registry.Get(b.ID); got.Name != "Renamed" {
		t.Fatalf("expected renamed year, got %q", got.Name)
	}

	bad := date(2020, time.January, 1)
	err := f.registry.Update(f.ctx, b.ID, FiscalYearPatch{EndDate: &bad})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if got, _ := f.registry.Get(b.ID); !got.EndDate.Equal(b.EndDate) {
		t.Fatalf("invalid patch must leave the year untouched")
	}

	yes, no := true, false
	if err := f.registry.Update(f.ctx, b.ID, FiscalYearPatch{IsActive: &yes}); err != nil {
		t.Fatalf("activate via patch: %v", err)
	}
	if err := f.registry.Update(f.ctx, b.ID, FiscalYearPatch{IsActive: &no}); err != nil {
		t.Fatalf("deactivate via patch: %v", err)
	}
	if cur, _ := f.registry.Current(); cur.ID != b.ID {
		t.Fatalf("deactivating the active year must be ignored")
	}
	if got, _ := f.registry.Get(a.ID); got.IsActive {
		t.Fatalf("only one year may be active")
	}

	if err := f.registry.Update(f.ctx, "missing", FiscalYearPatch{}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFiscalYearService_DeleteActivatesFirstRemaining(t *testing.T) {
	f := newFixture(t, core.UpdateRestamp)
	a := f.createYear(t, "A", 2022)
	b := f.createYear(t, "B", 2023)
	c := f.createYear(t, "C", 2024)
	if err := f.registry.SetActive(f.ctx, c.ID); err != nil {
		t.Fatalf("set active: %v", err)
	}

	if err := f.registry.Delete(f.ctx, c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	cur, ok := f.registry.Current()
	if !ok || cur.ID != a.ID {
		t.Fatalf("expected first remaining year %s to be active, got %+v", a.ID, cur)
	}
	if activeCount(f.registry.List()) != 1 {
		t.Fatalf("expected exactly one active year")
	}

	// Deleting an inactive year leaves the active one alone.
	if err := f.registry.Delete(f.ctx, b.ID); err != nil {
		t.Fatalf("delete inactive: %v", err)
	}
	if cur, _ := f.registry.Current(); cur.ID != a.ID {
		t.Fatalf("active year changed after deleting an inactive one")
	}

	if err := f.registry.Delete(f.ctx, a.ID); err != nil {
		t.Fatalf("delete last: %v", err)
	}
	if _, ok := f.registry.Current(); ok {
		t.Fatalf("expected no active year once the registry is empty")
	}
	if err := f.registry.Delete(f.ctx, a.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFiscalYearService_ExactlyOneActive(t *testing.T) {
	f := newFixture(t, core.UpdateRestamp)
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, f.createYear(t, "FY", 2020+i).ID)
	}

	steps := []func() error{
		func() error { return f.registry.SetActive(f.ctx, ids[3]) },
		func() error { return f.registry.Delete(f.ctx, ids[3]) },
		func() error { return f.registry.SetActive(f.ctx, ids[4]) },
		func() error { return f.registry.Delete(f.ctx, ids[0]) },
		func() error { return f.registry.Delete(f.ctx, ids[4]) },
		func() error { return f.registry.Delete(f.ctx, ids[1]) },
		func() error { return f.registry.Delete(f.ctx, ids[2]) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		years := f.registry.List()
		want := 1
		if len(years) == 0 {
			want = 0
		}
		if got := activeCount(years); got != want {
			t.Fatalf("step %d: %d active years among %d", i, got, len(years))
		}
	}
}

func TestFiscalYearService_SubscribeCurrent(t *testing.T) {
	f := newFixture(t, core.UpdateRestamp)
	var seen []string
	f.registry.SubscribeCurrent(func(_ context.Context, fy *core.FiscalYear) {
		if fy == nil {
			seen = append(seen, "<none>")
			return
		}
		seen = append(seen, fy.Name)
	})

	a := f.createYear(t, "A", 2023)
	f.createYear(t, "B", 2024) // inactive, no change to the current year
	if err := f.registry.Delete(f.ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	want := []string{"A", "B"}
	if len(seen) != len(want) || seen[0] != want[0] || seen[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, seen)
	}
}

func TestFiscalYearService_PersistsAndReloads(t *testing.T) {
	backend := store.NewMemoryStore()
	f := newFixtureWithBackend(t, backend, core.UpdateRestamp)
	a := f.createYear(t, "A", 2023)
	b := f.createYear(t, "B", 2024)
	if err := f.registry.SetActive(f.ctx, b.ID); err != nil {
		t.Fatalf("set active: %v", err)
	}

	reloaded := newFixtureWithBackend(t, backend, core.UpdateRestamp)
	years := reloaded.registry.List()
	if len(years) != 2 || years[0].ID != a.ID || years[1].ID != b.ID {
		t.Fatalf("unexpected reloaded years: %+v", years)
	}
	if cur, _ := reloaded.registry.Current(); cur.ID != b.ID {
		t.Fatalf("expected %s active after reload, got %s", b.ID, cur.ID)
	}
	if !years[0].StartDate.Equal(a.StartDate) {
		t.Fatalf("dates must survive the round trip")
	}
}

func TestFiscalYearService_LoadRepairsActiveFlags(t *testing.T) {
	backend := store.NewMemoryStore()
	years := []core.FiscalYear{
		{ID: "a", Name: "A", StartDate: date(2023, 1, 1), EndDate: date(2023, 12, 31), IsActive: true},
		{ID: "b", Name: "B", StartDate: date(2024, 1, 1), EndDate: date(2024, 12, 31), IsActive: true},
	}
	raw, _ := json.Marshal(years)
	backend.Put(context.Background(), store.KeyFiscalYears, raw)

	f := newFixtureWithBackend(t, backend, core.UpdateRestamp)
	if activeCount(f.registry.List()) != 1 {
		t.Fatalf("expected load to leave exactly one active year")
	}
	if cur, _ := f.registry.Current(); cur.ID != "a" {
		t.Fatalf("expected the first active year to win, got %s", cur.ID)
	}
}

func TestFiscalYearService_PersistenceFailureKeepsState(t *testing.T) {
	backend := &failingBackend{MemoryStore: store.NewMemoryStore(), err: errors.New("disk full")}
	f := newFixtureWithBackend(t, backend, core.UpdateRestamp)

	fy, err := f.registry.Create(f.ctx, "FY", date(2024, 1, 1), date(2024, 12, 31))
	if err != nil {
		t.Fatalf("persistence failures must not surface: %v", err)
	}
	if cur, ok := f.registry.Current(); !ok || cur.ID != fy.ID {
		t.Fatalf("in-memory state must survive a failed save")
	}
}

func TestDefaultEndDate(t *testing.T) {
	tests := []struct {
		start, want time.Time
	}{
		{date(2024, time.January, 1), date(2024, time.December, 31)},
		{date(2024, time.April, 6), date(2025, time.April, 5)},
		{date(2023, time.March, 1), date(2024, time.February, 29)},
	}
	for _, tt := range tests {
		if got := DefaultEndDate(tt.start); !got.Equal(tt.want) {
			t.Errorf("DefaultEndDate(%s) = %s, want %s", tt.start.Format(time.DateOnly), got.Format(time.DateOnly), tt.want.Format(time.DateOnly))
		}
	}
}
