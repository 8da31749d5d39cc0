package services

// Paginate returns items[pageIndex*pageSize : pageIndex*pageSize+pageSize],
// truncated at the end of items. Out of range pages and non-positive page
// sizes yield an empty slice.
func Paginate[T any](items []T, pageIndex, pageSize int) []T {
	if pageIndex < 0 || pageSize <= 0 {
		return []T{}
	}
	start := pageIndex * pageSize
	if start >= len(items) {
		return []T{}
	}
	end := min(start+pageSize, len(items))
	return items[start:end:end]
}

// PageCount returns how many pages of pageSize are needed for n items.
func PageCount(n, pageSize int) int {
	if n <= 0 || pageSize <= 0 {
		return 0
	}
	return (n + pageSize - 1) / pageSize
}

// Pager keeps a page cursor over a list that is replaced as it changes. The
// cursor returns to the first page whenever the number of items changes;
// replacing items with the same count keeps the current page.
type Pager[T any] struct {
	items []T
	page  int
	size  int
}

func NewPager[T any](pageSize int) *Pager[T] {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Pager[T]{size: pageSize}
}

// SetItems replaces the underlying list.
func (p *Pager[T]) SetItems(items []T) {
	if len(items) != len(p.items) {
		p.page = 0
	}
	p.items = items
}

// SetPage moves the cursor. Pages past the end render empty.
func (p *Pager[T]) SetPage(pageIndex int) {
	p.page = max(pageIndex, 0)
}

// Next advances one page if there is one.
func (p *Pager[T]) Next() bool {
	if p.page+1 >= p.PageCount() {
		return false
	}
	p.page++
	return true
}

// Prev goes back one page if there is one.
func (p *Pager[T]) Prev() bool {
	if p.page == 0 {
		return false
	}
	p.page--
	return true
}

func (p *Pager[T]) Page() []T {
	return Paginate(p.items, p.page, p.size)
}

func (p *Pager[T]) PageIndex() int {
	return p.page
}

func (p *Pager[T]) PageSize() int {
	return p.size
}

func (p *Pager[T]) PageCount() int {
	return PageCount(len(p.items), p.size)
}

func (p *Pager[T]) Len() int {
	return len(p.items)
}
