package datalayer

const (
	defaultPageLimit = 20
	maxPageLimit     = 200
)

// Pagination carries the window parameters the host's callers supply. The
// callers do not agree on a convention: some send page/size, some
// offset/first, some a bare limit. Zero values mean "not provided".
type Pagination struct {
	Page   int
	Size   int
	Offset int
	First  int
	Limit  int
}

// Window resolves the pagination parameters into a skip/limit pair.
// offset and first apply first, then page/size, and an explicit limit is
// applied last so it overrides whatever the other variants resolved.
// Defaults are skip=0 limit=20; limit is capped at 200.
func (p Pagination) Window() (skip int, limit int) {
	skip = 0
	limit = defaultPageLimit

	if p.Offset > 0 {
		skip = p.Offset
	}
	if p.First > 0 {
		limit = p.First
	}
	if p.Page > 0 && p.Size > 0 {
		skip = (p.Page - 1) * p.Size
		limit = p.Size
	}
	if p.Limit > 0 {
		limit = p.Limit
	}

	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return skip, limit
}

// PageNumber converts a resolved window back into a 1-based page number for
// the response envelope.
func PageNumber(skip int, limit int) int {
	if limit <= 0 {
		return 1
	}
	return skip/limit + 1
}
