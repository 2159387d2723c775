package catalog

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type PageMeta struct {
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
}

func Calculate(page, size int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}
	offset = (page - 1) * size
	return offset, size
}

// Paginate slices an already filtered list. A page past the end is empty.
func Paginate[T any](items []T, page, size int) ([]T, PageMeta) {
	if page < 1 {
		page = 1
	}
	offset, limit := Calculate(page, size)
	total := int64(len(items))

	meta := PageMeta{
		Page:       page,
		Size:       limit,
		Total:      total,
		TotalPages: (total + int64(limit) - 1) / int64(limit),
		HasPrev:    page > 1,
		HasNext:    int64(offset+limit) < total,
	}

	if offset >= len(items) {
		return []T{}, meta
	}
	end := min(offset+limit, len(items))
	return items[offset:end], meta
}
