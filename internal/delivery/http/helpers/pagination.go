package helpers

import (
	"net/http"
	"strconv"
	"strings"

	"guestpass/internal/domain"
)

// Pagination query parameter defaults and limits.
const (
	DefaultPage     = 1
	DefaultPageSize = 50
	MaxPageSize     = 200
	maxSearchLength = 100
)

func positiveInt(r *http.Request, key string, def int) int {
	if s := r.URL.Query().Get(key); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 1 {
			return v
		}
	}
	return def
}

// ParsePagination reads page and page_size from the query string. Invalid or missing
// values fall back to defaults and page_size is capped at MaxPageSize.
func ParsePagination(r *http.Request) domain.PaginationParams {
	return domain.PaginationParams{
		Page:     positiveInt(r, "page", DefaultPage),
		PageSize: min(positiveInt(r, "page_size", DefaultPageSize), MaxPageSize),
	}
}

// ParseAttendeeFilter reads the status and search query parameters. Unknown statuses mean "all".
func ParseAttendeeFilter(r *http.Request) domain.AttendeeFilter {
	q := r.URL.Query()
	search := strings.TrimSpace(q.Get("search"))
	if len(search) > maxSearchLength {
		search = search[:maxSearchLength]
	}
	return domain.AttendeeFilter{
		Status: domain.ParseAttendeeStatus(strings.TrimSpace(q.Get("status"))),
		Search: search,
	}
}

// PaginationMeta is the pagination metadata included in paginated list responses.
// swagger:model PaginationMeta
type PaginationMeta struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPaginationMeta describes page p of a list with total matching rows.
func NewPaginationMeta(p domain.PaginationParams, total int) PaginationMeta {
	return PaginationMeta{
		Page:       p.Page,
		PageSize:   p.PageSize,
		Total:      total,
		TotalPages: p.TotalPages(total),
	}
}
