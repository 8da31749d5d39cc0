package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/store"
)

const fallbackColor = "#6B7280"

var defaultColors = map[core.Category]string{
	core.Income:         "#22C55E",
	core.Food:           "#10B981",
	core.Transportation: "#3B82F6",
	core.Housing:        "#8B5CF6",
	core.Utilities:      "#F59E0B",
	core.Entertainment:  "#EC4899",
	core.Shopping:       "#6366F1",
	core.Healthcare:     "#EF4444",
	core.Other:          fallbackColor,
}

// seeded lists the categories created on first start, in display order.
var seeded = []core.Category{
	core.Food, core.Transportation, core.Housing, core.Utilities,
	core.Entertainment, core.Shopping, core.Healthcare, core.Other,
}

// CategoryService keeps display metadata (colour, icon, description) for the
// category labels. It never changes which labels expenses may use.
type CategoryService struct {
	store  *store.Adapter
	logger *log.Logger
	now    func() time.Time

	categories []core.CategoryInfo
}

func NewCategoryService(st *store.Adapter, logger *log.Logger) *CategoryService {
	if logger == nil {
		logger = log.Default()
	}
	return &CategoryService{
		store:  st,
		logger: logger.WithComponent(log.ComponentCategory),
		now:    time.Now,
	}
}

// Load restores the catalog, seeding the defaults when nothing is stored.
func (s *CategoryService) Load(ctx context.Context) error {
	var categories []core.CategoryInfo
	if s.store.Load(ctx, store.KeyCategories, &categories) {
		s.categories = categories
		return nil
	}

	now := s.now()
	s.categories = make([]core.CategoryInfo, 0, len(seeded))
	for _, c := range seeded {
		s.categories = append(s.categories, core.CategoryInfo{
			ID:        uuid.NewString(),
			Name:      c.String(),
			Color:     defaultColors[c],
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	s.store.Commit(ctx, store.KeyCategories, s.categories)
	s.logger.InfoContext(ctx, "Seeded default categories", log.FieldCount, len(s.categories))
	return nil
}

func (s *CategoryService) List() []core.CategoryInfo {
	return append([]core.CategoryInfo(nil), s.categories...)
}

func (s *CategoryService) Get(id string) (core.CategoryInfo, error) {
	i := s.index(id)
	if i < 0 {
		return core.CategoryInfo{}, core.NewNotFoundError("category", id)
	}
	return s.categories[i], nil
}

// Add stores metadata for a category label. The name must be one of the
// fixed categories and not yet described.
func (s *CategoryService) Add(ctx context.Context, info core.CategoryInfo) (core.CategoryInfo, error) {
	c, err := core.ParseCategory(info.Name)
	if err != nil {
		return core.CategoryInfo{}, err
	}
	if s.byName(c) >= 0 {
		return core.CategoryInfo{}, core.NewValidationError("name", "category "+c.String()+" already exists")
	}

	now := s.now()
	info.ID = uuid.NewString()
	info.Name = c.String()
	info.Description = strings.TrimSpace(info.Description)
	info.CreatedAt = now
	info.UpdatedAt = now
	s.categories = append(s.categories, info)
	s.store.Commit(ctx, store.KeyCategories, s.categories)

	s.logger.InfoContext(ctx, "Category added", log.FieldCategory, info.Name)
	return info, nil
}

// Update replaces the description, colour and icon of a category.
func (s *CategoryService) Update(ctx context.Context, id string, info core.CategoryInfo) error {
	i := s.index(id)
	if i < 0 {
		return core.NewNotFoundError("category", id)
	}
	cur := &s.categories[i]
	cur.Description = strings.TrimSpace(info.Description)
	cur.Color = info.Color
	cur.Icon = info.Icon
	cur.UpdatedAt = s.now()
	s.store.Commit(ctx, store.KeyCategories, s.categories)

	s.logger.InfoContext(ctx, "Category updated", log.FieldCategory, cur.Name)
	return nil
}

func (s *CategoryService) Delete(ctx context.Context, id string) error {
	i := s.index(id)
	if i < 0 {
		return core.NewNotFoundError("category", id)
	}
	name := s.categories[i].Name
	s.categories = append(s.categories[:i:i], s.categories[i+1:]...)
	s.store.Commit(ctx, store.KeyCategories, s.categories)

	s.logger.InfoContext(ctx, "Category deleted", log.FieldCategory, name)
	return nil
}

// Color returns the configured colour of c, falling back to the built-in
// palette and then to the colour of Other.
func (s *CategoryService) Color(c core.Category) string {
	if i := s.byName(c); i >= 0 && s.categories[i].Color != "" {
		return s.categories[i].Color
	}
	if color, ok := defaultColors[c]; ok {
		return color
	}
	return fallbackColor
}

func (s *CategoryService) index(id string) int {
	for i, c := range s.categories {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *CategoryService) byName(c core.Category) int {
	for i, info := range s.categories {
		if strings.EqualFold(info.Name, c.String()) {
			return i
		}
	}
	return -1
}
