// Package pagination pages list responses of the admin API.
package pagination

import (
	"net/http"
	"strconv"

	"scheduler-webhook/internal/common/errors"
)

// DefaultPerPage is used when the request names no page size
const DefaultPerPage = 50

// MaxPerPage caps the page size a client can ask for
const MaxPerPage = 500

// Params are the requested page and page size, both 1-based and positive
type Params struct {
	Page    int
	PerPage int
}

// Offset returns the index of the first item on the page
func (p Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Response is one page of results
type Response[T any] struct {
	Page         int `json:"page"`
	PerPage      int `json:"per_page"`
	TotalPages   int `json:"total_pages"`
	TotalResults int `json:"total_results"`
	Results      []T `json:"results"`
}

// ParseParams reads page and per_page from the query. A value that is not a
// positive integer is a validation error; per_page above MaxPerPage is capped.
func ParseParams(r *http.Request) (Params, error) {
	p := Params{Page: 1, PerPage: DefaultPerPage}
	query := r.URL.Query()

	if raw := query.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return p, errors.ValidationError("page must be a positive integer")
		}
		p.Page = page
	}
	if raw := query.Get("per_page"); raw != "" {
		perPage, err := strconv.Atoi(raw)
		if err != nil || perPage < 1 {
			return p, errors.ValidationError("per_page must be a positive integer")
		}
		p.PerPage = min(perPage, MaxPerPage)
	}
	return p, nil
}

// Paginate returns the page of items selected by p. A page past the end has
// no results but still reports the totals.
func Paginate[T any](items []T, p Params) Response[T] {
	start := min(p.Offset(), len(items))
	end := min(start+p.PerPage, len(items))

	results := make([]T, end-start)
	copy(results, items[start:end])

	return Response[T]{
		Page:         p.Page,
		PerPage:      p.PerPage,
		TotalPages:   TotalPages(len(items), p.PerPage),
		TotalResults: len(items),
		Results:      results,
	}
}

// TotalPages returns the number of pages, at least 1
func TotalPages(totalResults, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	pages := (totalResults + perPage - 1) / perPage
	if pages < 1 {
		return 1
	}
	return pages
}
