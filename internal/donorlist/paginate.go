package donorlist

import "math"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is one slice of a filtered result.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NormalizePage clamps a requested page and size: page < 1 becomes 1,
// size < 1 becomes DefaultPageSize and size is capped at MaxPageSize.
func NormalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// NewPage wraps items already cut by the caller (for example by a ranged
// backend query) with the page metadata for total matches.
func NewPage[T any](items []T, page, size, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:      items,
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: (total + size - 1) / size,
	}
}

// Offset returns the index of the first item on a normalized page.  ok is
// false when the page end does not fit in an int, so nothing can be on it.
func Offset(page, size int) (start int, ok bool) {
	if page-1 > (math.MaxInt-size)/size {
		return 0, false
	}
	return (page - 1) * size, true
}

// Paginate cuts items into pages of size and returns page (1-based).  A
// page past the end comes back empty with the totals still filled in.
func Paginate[T any](items []T, page, size int) Page[T] {
	page, size = NormalizePage(page, size)
	total := len(items)
	start, ok := Offset(page, size)
	if !ok || start >= total {
		return NewPage([]T{}, page, size, total)
	}
	end := min(start+size, total)
	return NewPage(items[start:end], page, size, total)
}
