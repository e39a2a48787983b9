package domain

// PageMeta is the pagination envelope of a list response.
type PageMeta struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int64 `json:"totalPages"`
	TotalCount  int64 `json:"totalCount"`
	HasPrevPage bool  `json:"hasPrevPage"`
	HasNextPage bool  `json:"hasNextPage"`
}

// Page is one page of projected documents.
type Page struct {
	Items      []Document `json:"items"`
	Pagination PageMeta   `json:"pagination"`
}
