package common

import "net/http"

// Pagination holds pagination metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
}

// ParsePagination extracts page and per-page parameters from query values.
func ParsePagination(r *http.Request, defaultPerPage int) (page, perPage int) {
	q := r.URL.Query()
	return PositiveIntDefault(q.Get("page"), 1), PositiveIntDefault(q.Get("limit"), defaultPerPage)
}

// Paginate returns the slice window for the requested page.
func Paginate[T any](items []T, page, perPage int) []T {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		return items
	}
	start := (page - 1) * perPage
	if start >= len(items) {
		return []T{}
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
