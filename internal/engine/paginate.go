package engine

// DefaultPageSize is the engine default; callers may pick any of PageSizes.
const DefaultPageSize = 50

var PageSizes = []int{10, 25, 50, 100}

// PageInfo describes the pagination state after clamping.
type PageInfo struct {
	Page          int `json:"page"`
	PageSize      int `json:"page_size"`
	TotalPages    int `json:"total_pages"`
	TotalFiltered int `json:"total_filtered"`
}

// Paginate maps a filtered collection length onto the bounds of the visible
// slice. Pages are 1-based; totalPages = ceil(n/size). A page that fell out
// of range after a filter or size change resets to 1 — the guard against an
// out-of-range slice.
func Paginate(n, page, size int) (start, end int, info PageInfo) {
	if size <= 0 {
		size = DefaultPageSize
	}
	totalPages := (n + size - 1) / size
	maxPage := totalPages
	if maxPage < 1 {
		maxPage = 1
	}
	if page < 1 || page > maxPage {
		page = 1
	}
	start = (page - 1) * size
	end = start + size
	if start > n {
		start = n
	}
	if end > n {
		end = n
	}
	return start, end, PageInfo{Page: page, PageSize: size, TotalPages: totalPages, TotalFiltered: n}
}

// AllowedPageSize reports whether size is one of the fixed page sizes.
func AllowedPageSize(size int) bool {
	for _, s := range PageSizes {
		if s == size {
			return true
		}
	}
	return false
}
