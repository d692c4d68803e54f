package datalayer

import "testing"

func TestPaginationWindow(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		p         Pagination
		wantSkip  int
		wantLimit int
	}{
		{"defaults", Pagination{}, 0, 20},
		{"page size", Pagination{Page: 3, Size: 10}, 20, 10},
		{"offset first", Pagination{Offset: 40, First: 15}, 40, 15},
		{"bare limit", Pagination{Limit: 50}, 0, 50},
		{"page size wins over offset", Pagination{Page: 2, Size: 5, Offset: 99, First: 99}, 5, 5},
		{"limit wins over first", Pagination{First: 10, Limit: 30}, 0, 30},
		{"limit wins over page size", Pagination{Page: 2, Size: 5, Limit: 50}, 5, 50},
		{"cap", Pagination{Limit: 5000}, 0, 200},
		{"cap applies to size", Pagination{Page: 1, Size: 999}, 0, 200},
		{"negative values ignored", Pagination{Offset: -5, Limit: -1}, 0, 20},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			skip, limit := tc.p.Window()
			if skip != tc.wantSkip || limit != tc.wantLimit {
				t.Fatalf("Window()=(%d,%d), want (%d,%d)", skip, limit, tc.wantSkip, tc.wantLimit)
			}
		})
	}
}

func TestPageNumber(t *testing.T) {
	t.Parallel()

	cases := []struct {
		skip, limit, want int
	}{
		{0, 20, 1},
		{20, 20, 2},
		{45, 20, 3},
		{0, 0, 1},
	}
	for _, tc := range cases {
		if got := PageNumber(tc.skip, tc.limit); got != tc.want {
			t.Fatalf("PageNumber(%d,%d)=%d, want %d", tc.skip, tc.limit, got, tc.want)
		}
	}
}
