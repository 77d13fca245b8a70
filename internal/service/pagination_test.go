package service

import "testing"

func TestClampPage(t *testing.T) {
	cases := []struct {
		name              string
		page, perPage     int
		wantPage, wantPer int
	}{
		{"defaults applied", 0, 0, 1, 10},
		{"negative page", -3, 25, 1, 25},
		{"per_page capped", 2, 500, 2, 100},
		{"in range untouched", 3, 50, 3, 50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page, perPage := clampPage(tc.page, tc.perPage)
			if page != tc.wantPage || perPage != tc.wantPer {
				t.Errorf("clampPage(%d, %d) = (%d, %d), want (%d, %d)",
					tc.page, tc.perPage, page, perPage, tc.wantPage, tc.wantPer)
			}
		})
	}
}

func TestPaginationFor(t *testing.T) {
	cases := []struct {
		name                 string
		page, perPage, total int
		wantPages            int
	}{
		{"empty", 1, 10, 0, 0},
		{"exact fit", 1, 10, 20, 2},
		{"partial last page", 1, 10, 21, 3},
		{"single item", 1, 10, 1, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := paginationFor(tc.page, tc.perPage, tc.total)
			if p.TotalPages != tc.wantPages {
				t.Errorf("TotalPages = %d, want %d", p.TotalPages, tc.wantPages)
			}
			if p.TotalItems != tc.total || p.Page != tc.page || p.PerPage != tc.perPage {
				t.Errorf("pagination = %+v", p)
			}
		})
	}
}
