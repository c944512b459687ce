package shared

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPagination(t *testing.T) {
	p := NewPagination(0, 0, 250)
	assert.Equal(t, Pagination{Page: 1, PerPage: DefaultPerPage, Total: 250, TotalPages: 3}, p)
	assert.Zero(t, p.Offset())

	p = NewPagination(3, 20, 41)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 40, p.Offset())

	assert.Zero(t, NewPagination(1, 10, 0).TotalPages)
}

func TestNewPaginationClampsHugeInput(t *testing.T) {
	p := NewPagination(math.MaxInt64/50, math.MaxInt64, 3)
	assert.Equal(t, MaxPage, p.Page)
	assert.Equal(t, MaxPerPage, p.PerPage)
	assert.Equal(t, int64(MaxPage-1)*MaxPerPage, int64(p.Offset()))
	assert.Positive(t, p.Offset())
}
