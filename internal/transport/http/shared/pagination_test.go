package shared

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePagination(t *testing.T) {
	cases := []struct {
		query string
		want  Pagination
	}{
		{"", Pagination{Limit: 50, Offset: 0}},
		{"?limit=10&offset=20", Pagination{Limit: 10, Offset: 20}},
		{"?limit=0&offset=-1", Pagination{Limit: 50, Offset: 0}},
		{"?limit=abc", Pagination{Limit: 50, Offset: 0}},
		{"?limit=9999", Pagination{Limit: 500, Offset: 0}},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/records"+tc.query, nil)
		assert.Equal(t, tc.want, ParsePagination(r, 50, 500), tc.query)
	}
}

func TestWindow(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	assert.Equal(t, []int{3, 4}, Window(items, Pagination{Limit: 2, Offset: 2}))
	assert.Equal(t, []int{5}, Window(items, Pagination{Limit: 10, Offset: 4}))
	assert.Empty(t, Window(items, Pagination{Limit: 2, Offset: 5}))
}
