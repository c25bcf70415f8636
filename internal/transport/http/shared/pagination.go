package shared

import (
	"net/http"
	"strconv"
)

type Pagination struct {
	Limit  int
	Offset int
}

// ParsePagination reads limit and offset. Malformed values fall back to the
// defaults and the limit is clamped to maxLimit.
func ParsePagination(r *http.Request, defaultLimit, maxLimit int) Pagination {
	q := r.URL.Query()
	p := Pagination{
		Limit:  intParam(q.Get("limit"), defaultLimit, 1),
		Offset: intParam(q.Get("offset"), 0, 0),
	}
	if maxLimit > 0 && p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

func intParam(raw string, fallback, minimum int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < minimum {
		return fallback
	}
	return v
}

// Window returns the page of an already loaded, ordered slice.
func Window[T any](items []T, p Pagination) []T {
	if p.Offset >= len(items) {
		return items[:0]
	}
	end := len(items)
	if p.Limit > 0 && p.Offset+p.Limit < end {
		end = p.Offset + p.Limit
	}
	return items[p.Offset:end]
}
