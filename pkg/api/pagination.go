package api

import (
	"strconv"
	"strings"
)

// Pagination is the page metadata attached to list responses.
type Pagination struct {
	CurrentPage  int  `json:"current_page"`
	TotalPages   int  `json:"total_pages"`
	TotalItems   int  `json:"total_items"`
	ItemsPerPage int  `json:"items_per_page"`
	HasNext      bool `json:"has_next"`
	HasPrevious  bool `json:"has_previous"`
}

// Offset is the index of the first item on the current page.
func (p Pagination) Offset() int {
	return (p.CurrentPage - 1) * p.ItemsPerPage
}

// parsePerPage reads a page size, falling back to def when raw is empty.
func parsePerPage(raw string, def int) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// paginate resolves the requested page against total items. Unparsable or
// low pages become the first page and pages past the end become the last.
// An empty result still has one page.
func paginate(rawPage string, perPage, total int) Pagination {
	pages := 1
	if total > 0 {
		pages = (total-1)/perPage + 1
	}

	page, err := strconv.Atoi(strings.TrimSpace(rawPage))
	switch {
	case err != nil, page < 1:
		page = 1
	case page > pages:
		page = pages
	}

	return Pagination{
		CurrentPage:  page,
		TotalPages:   pages,
		TotalItems:   total,
		ItemsPerPage: perPage,
		HasNext:      page < pages,
		HasPrevious:  page > 1,
	}
}
