package types

// Pagination is a validated page request.
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

func (p Pagination) Offset() uint64 {
	if p.Page < 1 {
		return 0
	}
	return uint64((p.Page - 1) * p.PageSize)
}

func (p Pagination) Limit() uint64 {
	return uint64(p.PageSize)
}
