package listing

import "testing"

func TestNewPaginationClampsAndCounts(t *testing.T) {
	for perPage := 1; perPage <= 12; perPage++ {
		for total := 0; total <= 60; total++ {
			for _, page := range []int{-3, 0, 1, 2, 5, 99} {
				p := NewPagination(page, perPage, total)
				want := (total + perPage - 1) / perPage
				if p.TotalPages != want {
					t.Fatalf("total=%d perPage=%d: total pages %d, want %d", total, perPage, p.TotalPages, want)
				}
				upper := want
				if upper < 1 {
					upper = 1
				}
				if p.Page < 1 || p.Page > upper {
					t.Fatalf("page %d out of [1,%d] for total=%d perPage=%d", p.Page, upper, total, perPage)
				}
			}
		}
	}
}

func TestWindowBounds(t *testing.T) {
	for totalPages := 1; totalPages <= 20; totalPages++ {
		for page := 1; page <= totalPages; page++ {
			p := NewPagination(page, 1, totalPages)
			w := p.Window(5)
			if len(w.Pages) > 5 {
				t.Fatalf("window too wide: %v", w.Pages)
			}
			found := false
			for i, n := range w.Pages {
				if n == page {
					found = true
				}
				if i > 0 && n != w.Pages[i-1]+1 {
					t.Fatalf("window not consecutive: %v", w.Pages)
				}
			}
			if !found {
				t.Fatalf("window %v misses current page %d", w.Pages, page)
			}
			if totalPages >= 5 && len(w.Pages) != 5 {
				t.Fatalf("expected full window for %d pages, got %v", totalPages, w.Pages)
			}
		}
	}
}

func TestWindowShiftsAtEnds(t *testing.T) {
	w := NewPagination(1, 10, 200).Window(5)
	if w.Pages[0] != 1 || w.Pages[4] != 5 || w.LeadingEllipsis || !w.TrailingEllipsis {
		t.Fatalf("unexpected start window %+v", w)
	}
	w = NewPagination(20, 10, 200).Window(5)
	if w.Pages[0] != 16 || w.Pages[4] != 20 || !w.LeadingEllipsis || w.TrailingEllipsis {
		t.Fatalf("unexpected end window %+v", w)
	}
	w = NewPagination(10, 10, 200).Window(5)
	if w.Pages[0] != 8 || w.Pages[4] != 12 {
		t.Fatalf("expected centred window, got %v", w.Pages)
	}
	if w.JumpBack != 5 || w.JumpForward != 15 {
		t.Fatalf("unexpected jumps %d %d", w.JumpBack, w.JumpForward)
	}
}

func TestWindowEmpty(t *testing.T) {
	w := NewPagination(1, 10, 0).Window(5)
	if len(w.Pages) != 0 {
		t.Fatalf("expected no page controls, got %v", w.Pages)
	}
}

func TestSlice(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}
	got := Slice(items, NewPagination(3, 3, len(items)))
	if len(got) != 1 || got[0] != 7 {
		t.Fatalf("unexpected last page %v", got)
	}
	if got := Slice(items, Pagination{Page: 5, PerPage: 3}); got != nil {
		t.Fatalf("expected nil past the end, got %v", got)
	}
}

func TestFromServerTrustsCounts(t *testing.T) {
	p := FromServer(4, 25, 80, 4)
	if p.Page != 4 || p.TotalPages != 4 || !p.HasPrev() || p.HasNext() {
		t.Fatalf("unexpected pagination %+v", p)
	}
}
