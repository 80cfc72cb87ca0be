package api

import (
	"net/http"
	"strconv"
)

// PageRequest is the window requested by ?page=&limit= or ?offset=&limit=.
// An explicit offset wins over page.
type PageRequest struct {
	Page   int
	Limit  int
	Offset int
}

// Page is one window of a listing with its position in the whole.
type Page[T any] struct {
	Data       []T      `json:"data"`
	Pagination PageMeta `json:"pagination"`
}

type PageMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasMore    bool  `json:"has_more"`
}

// ParsePageRequest reads the window from the query, clamping limit to
// [1, maxLimit]. Unparseable values fall back to the defaults.
func ParsePageRequest(r *http.Request, defaultLimit, maxLimit int) PageRequest {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)

	if raw := q.Get("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil && offset >= 0 {
			return PageRequest{Page: offset/limit + 1, Limit: limit, Offset: offset}
		}
	}

	page, _ := strconv.Atoi(q.Get("page"))
	page = max(page, 1)
	return PageRequest{Page: page, Limit: limit, Offset: (page - 1) * limit}
}

// NewPage wraps data; a nil slice encodes as [].
func NewPage[T any](data []T, req PageRequest, total int64) Page[T] {
	if data == nil {
		data = []T{}
	}
	pages := int((total + int64(req.Limit) - 1) / int64(req.Limit))
	return Page[T]{
		Data: data,
		Pagination: PageMeta{
			Page:       req.Page,
			Limit:      req.Limit,
			Offset:     req.Offset,
			Total:      total,
			TotalPages: max(pages, 1),
			HasMore:    int64(req.Offset+len(data)) < total,
		},
	}
}
