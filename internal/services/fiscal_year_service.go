package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/broadcast"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/store"
)

// FiscalYearPatch carries the fields to change on a fiscal year; nil fields are kept.
type FiscalYearPatch struct {
	Name      *string
	StartDate *time.Time
	EndDate   *time.Time
	IsActive  *bool
}

// FiscalYearService owns the fiscal years and decides which one is active.
// At most one year is active, and exactly one whenever any exist.
type FiscalYearService struct {
	store  *store.Adapter
	logger *log.Logger

	years   []core.FiscalYear
	current *broadcast.Subject[*core.FiscalYear]
	deleted *broadcast.Subject[string]
}

func NewFiscalYearService(st *store.Adapter, logger *log.Logger) *FiscalYearService {
	if logger == nil {
		logger = log.Default()
	}
	return &FiscalYearService{
		store:   st,
		logger:  logger.WithComponent(log.ComponentFiscalYear),
		current: broadcast.NewDistinct[*core.FiscalYear](nil, sameFiscalYear),
		deleted: broadcast.New(""),
	}
}

func sameFiscalYear(a, b *core.FiscalYear) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID && a.Name == b.Name && a.IsActive == b.IsActive &&
		a.StartDate.Equal(b.StartDate) && a.EndDate.Equal(b.EndDate)
}

// DefaultEndDate returns the last day of a one-year period starting at start.
func DefaultEndDate(start time.Time) time.Time {
	return start.AddDate(1, 0, -1)
}

// Load restores the persisted fiscal years without notifying subscribers.
func (s *FiscalYearService) Load(ctx context.Context) error {
	var years []core.FiscalYear
	if !s.store.Load(ctx, store.KeyFiscalYears, &years) {
		years = nil
	}
	s.years = years
	if s.normalizeActive() {
		s.store.Commit(ctx, store.KeyFiscalYears, s.years)
	}
	s.current.Set(s.activePtr())
	s.logger.InfoContext(ctx, "Fiscal years loaded", log.FieldCount, len(s.years))
	return nil
}

// normalizeActive repairs documents with zero or several active years. It
// reports whether anything changed.
func (s *FiscalYearService) normalizeActive() bool {
	if len(s.years) == 0 {
		return false
	}
	changed := false
	seen := false
	for i := range s.years {
		if s.years[i].IsActive {
			if seen {
				s.years[i].IsActive = false
				changed = true
			}
			seen = true
		}
	}
	if !seen {
		s.years[0].IsActive = true
		changed = true
	}
	return changed
}

// Create registers a new fiscal year. The first one ever created becomes active.
func (s *FiscalYearService) Create(ctx context.Context, name string, start, end time.Time) (core.FiscalYear, error) {
	fy := core.FiscalYear{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		StartDate: start,
		EndDate:   end,
		IsActive:  len(s.years) == 0,
	}
	if err := fy.Validate(); err != nil {
		return core.FiscalYear{}, err
	}

	s.years = append(s.years, fy)
	s.store.Commit(ctx, store.KeyFiscalYears, s.years)

	s.logger.InfoContext(ctx, "Fiscal year created",
		log.FieldFiscalYearID, fy.ID, "name", fy.Name, "active", fy.IsActive)
	s.publishCurrent(ctx)
	return fy, nil
}

// SetActive makes id the only active fiscal year.
func (s *FiscalYearService) SetActive(ctx context.Context, id string) error {
	if s.index(id) < 0 {
		return core.NewNotFoundError("fiscal year", id)
	}
	s.activate(id)
	s.store.Commit(ctx, store.KeyFiscalYears, s.years)

	s.logger.InfoContext(ctx, "Fiscal year activated", log.FieldFiscalYearID, id)
	s.publishCurrent(ctx)
	return nil
}

func (s *FiscalYearService) activate(id string) {
	for i := range s.years {
		s.years[i].IsActive = s.years[i].ID == id
	}
}

// Update applies patch to the fiscal year. Activation goes through the same
// path as SetActive; deactivating the active year is ignored since another
// year would have to take its place.
func (s *FiscalYearService) Update(ctx context.Context, id string, patch FiscalYearPatch) error {
	i := s.index(id)
	if i < 0 {
		return core.NewNotFoundError("fiscal year", id)
	}

	fy := s.years[i]
	if patch.Name != nil {
		fy.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.StartDate != nil {
		fy.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		fy.EndDate = *patch.EndDate
	}
	if err := fy.Validate(); err != nil {
		return err
	}

	s.years[i] = fy
	if patch.IsActive != nil && *patch.IsActive {
		s.activate(id)
	}
	s.store.Commit(ctx, store.KeyFiscalYears, s.years)

	s.logger.InfoContext(ctx, "Fiscal year updated", log.FieldFiscalYearID, id)
	s.publishCurrent(ctx)
	return nil
}

// Delete removes the fiscal year and announces it so that its budget and
// expenses are dropped. When the active year goes, the first remaining year
// in stored order takes over.
func (s *FiscalYearService) Delete(ctx context.Context, id string) error {
	i := s.index(id)
	if i < 0 {
		return core.NewNotFoundError("fiscal year", id)
	}
	wasActive := s.years[i].IsActive

	s.years = append(s.years[:i:i], s.years[i+1:]...)
	if wasActive && len(s.years) > 0 {
		s.activate(s.years[0].ID)
	}
	s.store.Commit(ctx, store.KeyFiscalYears, s.years)

	s.logger.InfoContext(ctx, "Fiscal year deleted",
		log.FieldFiscalYearID, id, "was_active", wasActive, log.FieldCount, len(s.years))
	s.deleted.Publish(ctx, id)
	s.publishCurrent(ctx)
	return nil
}

// Current returns the active fiscal year, if any.
func (s *FiscalYearService) Current() (core.FiscalYear, bool) {
	for _, fy := range s.years {
		if fy.IsActive {
			return fy, true
		}
	}
	return core.FiscalYear{}, false
}

func (s *FiscalYearService) Get(id string) (core.FiscalYear, error) {
	i := s.index(id)
	if i < 0 {
		return core.FiscalYear{}, core.NewNotFoundError("fiscal year", id)
	}
	return s.years[i], nil
}

func (s *FiscalYearService) Exists(id string) bool {
	return s.index(id) >= 0
}

// List returns the fiscal years in stored order.
func (s *FiscalYearService) List() []core.FiscalYear {
	return append([]core.FiscalYear(nil), s.years...)
}

// SubscribeCurrent is notified whenever the active year, or its fields, change.
// A nil value means no year is active.
func (s *FiscalYearService) SubscribeCurrent(fn func(context.Context, *core.FiscalYear)) func() {
	return s.current.Subscribe(fn)
}

// SubscribeDeleted is notified with the id of each deleted fiscal year, after
// it has left the registry.
func (s *FiscalYearService) SubscribeDeleted(fn func(context.Context, string)) func() {
	return s.deleted.Subscribe(fn)
}

func (s *FiscalYearService) publishCurrent(ctx context.Context) {
	s.current.Publish(ctx, s.activePtr())
}

func (s *FiscalYearService) activePtr() *core.FiscalYear {
	fy, ok := s.Current()
	if !ok {
		return nil
	}
	return &fy
}

func (s *FiscalYearService) index(id string) int {
	for i, fy := range s.years {
		if fy.ID == id {
			return i
		}
	}
	return -1
}
