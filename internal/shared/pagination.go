package shared

import "math"

const (
	defaultPerPage = 20
	maxPerPage     = 200
)

// PageRequest carries the page a listing should return.
type PageRequest struct {
	Page    int
	PerPage int
}

// Normalize clamps the request to sane bounds.
func (p PageRequest) Normalize() PageRequest {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PerPage <= 0 {
		p.PerPage = defaultPerPage
	}
	if p.PerPage > maxPerPage {
		p.PerPage = maxPerPage
	}
	return p
}

// Offset returns the row offset for the normalized page.
func (p PageRequest) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PerPage
}

// Limit returns the row limit for the normalized page.
func (p PageRequest) Limit() int {
	return p.Normalize().PerPage
}

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(req PageRequest, total int) Pagination {
	req = req.Normalize()
	totalPages := int(math.Ceil(float64(total) / float64(req.PerPage)))
	return Pagination{Page: req.Page, PerPage: req.PerPage, Total: total, TotalPages: totalPages}
}
