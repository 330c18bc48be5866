package api

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginate(t *testing.T) {
	tests := []struct {
		name    string
		page    string
		perPage int
		total   int
		want    Pagination
	}{
		{
			name: "first page", page: "1", perPage: 10, total: 25,
			want: Pagination{CurrentPage: 1, TotalPages: 3, TotalItems: 25, ItemsPerPage: 10, HasNext: true},
		},
		{
			name: "middle page", page: "2", perPage: 10, total: 25,
			want: Pagination{CurrentPage: 2, TotalPages: 3, TotalItems: 25, ItemsPerPage: 10, HasNext: true, HasPrevious: true},
		},
		{
			name: "past the end", page: "7", perPage: 10, total: 25,
			want: Pagination{CurrentPage: 3, TotalPages: 3, TotalItems: 25, ItemsPerPage: 10, HasPrevious: true},
		},
		{
			name: "exact multiple", page: "2", perPage: 10, total: 20,
			want: Pagination{CurrentPage: 2, TotalPages: 2, TotalItems: 20, ItemsPerPage: 10, HasPrevious: true},
		},
		{
			name: "missing page", page: "", perPage: 50, total: 3,
			want: Pagination{CurrentPage: 1, TotalPages: 1, TotalItems: 3, ItemsPerPage: 50},
		},
		{
			name: "negative page", page: "-3", perPage: 10, total: 25,
			want: Pagination{CurrentPage: 1, TotalPages: 3, TotalItems: 25, ItemsPerPage: 10, HasNext: true},
		},
		{
			name: "huge page size", page: "2", perPage: math.MaxInt, total: 25,
			want: Pagination{CurrentPage: 1, TotalPages: 1, TotalItems: 25, ItemsPerPage: math.MaxInt},
		},
		{
			name: "empty result", page: "4", perPage: 10, total: 0,
			want: Pagination{CurrentPage: 1, TotalPages: 1, TotalItems: 0, ItemsPerPage: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := paginate(tt.page, tt.perPage, tt.total)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, (tt.want.CurrentPage-1)*tt.perPage, got.Offset())
		})
	}
}

func TestParsePerPage(t *testing.T) {
	tests := []struct {
		raw    string
		want   int
		wantOK bool
	}{
		{"", 100, true},
		{"25", 25, true},
		{" 5 ", 5, true},
		{"0", 0, false},
		{"-1", 0, false},
		{"ten", 0, false},
	}
	for _, tt := range tests {
		got, ok := parsePerPage(tt.raw, 100)
		assert.Equal(t, tt.wantOK, ok, "raw %q", tt.raw)
		assert.Equal(t, tt.want, got, "raw %q", tt.raw)
	}
}
