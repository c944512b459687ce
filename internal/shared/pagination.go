package shared

import "math"

const (
	// DefaultPerPage is the page size used when a listing request names none.
	DefaultPerPage = 100
	// MaxPerPage caps the page size.
	MaxPerPage = 1000
	// MaxPage caps the page number; with MaxPerPage the offset fits in an int64.
	MaxPage = math.MaxInt32
)

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPagination computes pagination metadata. Non-positive page or perPage
// fall back to the first page and DefaultPerPage; larger values are clamped
// to MaxPage and MaxPerPage.
func NewPagination(page, perPage, total int) Pagination {
	switch {
	case perPage <= 0:
		perPage = DefaultPerPage
	case perPage > MaxPerPage:
		perPage = MaxPerPage
	}
	switch {
	case page <= 0:
		page = 1
	case page > MaxPage:
		page = MaxPage
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Offset is the number of records preceding the page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}
