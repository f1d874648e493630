package utils

import (
	"net/url"
	"strconv"

	apperrors "safety-inspection/pkg/errors"
	"safety-inspection/pkg/types"
)

// ParsePagination reads page and page_size. Missing values take the defaults,
// out-of-range values are rejected rather than clamped.
func ParsePagination(values url.Values, defaultSize, maxSize int) (types.Pagination, error) {
	p := types.Pagination{Page: 1, PageSize: defaultSize}

	if pageStr := values.Get("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			return p, apperrors.NewInvalidInputError("page must be an integer >= 1")
		}
		p.Page = page
	}

	if sizeStr := values.Get("page_size"); sizeStr != "" {
		size, err := strconv.Atoi(sizeStr)
		if err != nil || size < 1 || size > maxSize {
			return p, apperrors.NewInvalidInputError("page_size must be between 1 and %d", maxSize)
		}
		p.PageSize = size
	}

	return p, nil
}
