package v1

import (
	"net/http"
	"strconv"

	"github.com/smartsense/smartsense/domain/property"
	"github.com/smartsense/smartsense/infrastructure/api/v1/dto"
)

// PaginationParams holds pagination parameters parsed from query strings.
type PaginationParams struct {
	page     int
	pageSize int
}

// DefaultPageSize is the default number of items per page.
const DefaultPageSize = 20

// MaxPageSize is the maximum allowed page size.
const MaxPageSize = 100

// NewPaginationParams creates pagination params with defaults.
func NewPaginationParams() PaginationParams {
	return PaginationParams{
		page:     1,
		pageSize: DefaultPageSize,
	}
}

// ParsePagination parses page and page_size from the query string.
// Invalid values fall back to the defaults; page_size is capped.
func ParsePagination(r *http.Request) PaginationParams {
	params := NewPaginationParams()

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil && page >= 1 {
			params.page = page
		}
	}

	if sizeStr := r.URL.Query().Get("page_size"); sizeStr != "" {
		if size, err := strconv.Atoi(sizeStr); err == nil && size >= 1 {
			params.pageSize = min(size, MaxPageSize)
		}
	}

	return params
}

// Page returns the page number (1-indexed).
func (p PaginationParams) Page() int { return p.page }

// PageSize returns the page size.
func (p PaginationParams) PageSize() int { return p.pageSize }

// Offset returns the number of records to skip.
func (p PaginationParams) Offset() int {
	return (p.page - 1) * p.pageSize
}

// Limit returns the number of records to return.
func (p PaginationParams) Limit() int {
	return p.pageSize
}

// Options returns list options for the page.
func (p PaginationParams) Options() []property.ListOption {
	return []property.ListOption{property.WithLimit(p.Limit()), property.WithOffset(p.Offset())}
}

// Meta describes the page given the number of items it holds.
func (p PaginationParams) Meta(count int) dto.PageMeta {
	return dto.PageMeta{Page: p.page, PageSize: p.pageSize, Count: count}
}
