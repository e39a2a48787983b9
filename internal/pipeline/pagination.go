package pipeline

import "vidshare/internal/domain"

// Paginate derives the page metadata of a result with total rows. limit is
// always positive here; Build rejects anything else.
func Paginate(total int64, page, limit int) domain.PageMeta {
	var totalPages int64
	if total > 0 {
		totalPages = (total + int64(limit) - 1) / int64(limit)
	}
	return domain.PageMeta{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalCount:  total,
		HasPrevPage: page > 1,
		HasNextPage: int64(page) < totalPages,
	}
}
