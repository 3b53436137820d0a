// Package listing holds the table mechanics shared by the list pages: pagination,
// filtering, snapshots of fetched collections and request tokens.
package listing

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// NewPagination computes pagination metadata with Page clamped to [1, max(TotalPages,1)].
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 10
	}
	if total < 0 {
		total = 0
	}
	totalPages := (total + perPage - 1) / perPage
	return FromServer(page, perPage, total, totalPages)
}

// FromServer builds Pagination from counts reported by the backend.
func FromServer(page, perPage, total, totalPages int) Pagination {
	if totalPages < 0 {
		totalPages = 0
	}
	upper := totalPages
	if upper < 1 {
		upper = 1
	}
	if page < 1 {
		page = 1
	}
	if page > upper {
		page = upper
	}
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Offset is the index of the first item of the current page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// HasPrev reports whether a previous page exists.
func (p Pagination) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a following page exists.
func (p Pagination) HasNext() bool { return p.Page < p.TotalPages }

// Prev returns the previous page number, floored at 1.
func (p Pagination) Prev() int {
	if p.Page > 1 {
		return p.Page - 1
	}
	return 1
}

// Next returns the following page number, capped at the last page.
func (p Pagination) Next() int {
	if p.Page < p.TotalPages {
		return p.Page + 1
	}
	return p.Page
}

// Slice cuts items down to the current page.
func Slice[T any](items []T, p Pagination) []T {
	start := p.Offset()
	if start >= len(items) {
		return nil
	}
	end := start + p.PerPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// Window is the set of numbered page controls.
type Window struct {
	Pages            []int
	Current          int
	LeadingEllipsis  bool
	TrailingEllipsis bool
	// JumpBack and JumpForward are the targets of the ellipsis controls.
	JumpBack    int
	JumpForward int
	Last        int
}

// Window returns at most max consecutive page numbers containing Page, centred when
// possible and shifted at the ends.
func (p Pagination) Window(max int) Window {
	w := Window{Current: p.Page, Last: p.TotalPages}
	if p.TotalPages < 1 || max < 1 {
		return w
	}
	start := p.Page - max/2
	if start < 1 {
		start = 1
	}
	end := start + max - 1
	if end > p.TotalPages {
		end = p.TotalPages
		start = end - max + 1
		if start < 1 {
			start = 1
		}
	}
	for n := start; n <= end; n++ {
		w.Pages = append(w.Pages, n)
	}
	if start > 1 {
		w.LeadingEllipsis = true
		w.JumpBack = start - max/2 - 1
		if w.JumpBack < 1 {
			w.JumpBack = 1
		}
	}
	if end < p.TotalPages {
		w.TrailingEllipsis = true
		w.JumpForward = end + max/2 + 1
		if w.JumpForward > p.TotalPages {
			w.JumpForward = p.TotalPages
		}
	}
	return w
}
