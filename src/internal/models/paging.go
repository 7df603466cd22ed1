package models

import (
	"fmt"
	"math"
)

// MaxPage is the highest page number list endpoints accept.
const MaxPage = 1_000_000

var ErrPageOutOfRange = fmt.Errorf("page out of range: %w", ErrValidation)

// PageSkip returns the number of records to skip for a 1-based page.
// Pages above MaxPage, or whose offset does not fit in an int64, are rejected.
func PageSkip(page, limit int) (int64, error) {
	if page < 1 || page > MaxPage || limit < 0 {
		return 0, ErrPageOutOfRange
	}
	if limit > 0 && int64(page-1) > math.MaxInt64/int64(limit) {
		return 0, ErrPageOutOfRange
	}
	return int64(page-1) * int64(limit), nil
}
