package listing

import (
	"strings"

	"golang.org/x/text/cases"
)

// Filter is the free-text and date predicate of a client-paginated table.
type Filter struct {
	Query string
	Date  string
}

// Normalize trims both parts.
func (f Filter) Normalize() Filter {
	return Filter{Query: strings.TrimSpace(f.Query), Date: strings.TrimSpace(f.Date)}
}

// Empty reports whether the filter matches everything.
func (f Filter) Empty() bool {
	return f.Query == "" && f.Date == ""
}

// Matches reports whether any field contains the query (case-folded) and the stamp
// starts with the date.
func (f Filter) Matches(fields []string, stamp string) bool {
	if f.Date != "" && !strings.HasPrefix(stamp, f.Date) {
		return false
	}
	if f.Query == "" {
		return true
	}
	folder := cases.Fold()
	needle := folder.String(f.Query)
	for _, field := range fields {
		if strings.Contains(folder.String(field), needle) {
			return true
		}
	}
	return false
}

// Track returns the page to show after the filter moved from prev to next: page 1
// whenever the predicate changed.
func Track(prev, next Filter, page int) int {
	if prev.Normalize() != next.Normalize() {
		return 1
	}
	if page < 1 {
		return 1
	}
	return page
}

// Apply keeps the items matching f.
func Apply[T any](items []T, f Filter, fields func(T) []string, stamp func(T) string) []T {
	if f.Empty() {
		return items
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if f.Matches(fields(item), stamp(item)) {
			out = append(out, item)
		}
	}
	return out
}
