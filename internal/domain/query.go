package domain

// Default list parameters served when the caller omits them.
const (
	DefaultPage     = 1
	DefaultLimit    = 10
	MaxLimit        = 100
	DefaultSortBy   = SortDesc
	DefaultSortType = "date"
)

// SortDirection is the order of a Sort stage.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// QueryRequest holds the list parameters of a read endpoint. The validate
// tags are the bounds every profile shares; zero values are rejected, not
// defaulted. SortType is a key of the resource profile's sort map, never a
// raw field.
type QueryRequest struct {
	Page     int           `json:"page" validate:"gte=1"`
	Limit    int           `json:"limit" validate:"gte=1,lte=100"`
	SortBy   SortDirection `json:"sortBy" validate:"oneof=asc desc"`
	SortType string        `json:"sortType" validate:"required"`
	Query    string        `json:"query"`
	UserID   string        `json:"userId" validate:"omitempty,uuid"`
	// ScopeID is the path-bound parent (video of a comment list, channel of
	// a channel video list, ...).
	ScopeID string `json:"id" validate:"omitempty,uuid"`
}

// DefaultQuery returns the request a list endpoint serves when no query
// parameter is given. Callers override only the parameters present.
func DefaultQuery() QueryRequest {
	return QueryRequest{
		Page:     DefaultPage,
		Limit:    DefaultLimit,
		SortBy:   DefaultSortBy,
		SortType: DefaultSortType,
	}
}

// Skip returns the number of rows before the requested page.
func (q QueryRequest) Skip() int64 {
	return int64(q.Page-1) * int64(q.Limit)
}
