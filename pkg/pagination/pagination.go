package pagination

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 25
	// MaxLimit caps how many rows any list query can request.
	MaxLimit = 100
)

// Params holds offset pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Offset int
}

// Page carries one slice of results plus what a client needs to fetch the next.
type Page[T any] struct {
	Items   []T  `json:"items"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// NormalizeLimit enforces the package default and maximum limits.
func NormalizeLimit(limit int) int {
	return NormalizeLimitWith(limit, DefaultLimit, MaxLimit)
}

// NormalizeLimitWith enforces caller supplied default and maximum limits.
func NormalizeLimitWith(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// Normalize returns params with a bounded limit and a non-negative offset.
func (p Params) Normalize(def, max int) Params {
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	return Params{Limit: NormalizeLimitWith(p.Limit, def, max), Offset: offset}
}

// LimitWithBuffer returns the limit plus one so the next page can be detected.
func (p Params) LimitWithBuffer() int {
	return p.Limit + 1
}

// BuildPage trims the buffered row, if any, and reports whether more rows exist.
func BuildPage[T any](rows []T, params Params) Page[T] {
	hasMore := len(rows) > params.Limit
	if hasMore {
		rows = rows[:params.Limit]
	}
	if rows == nil {
		rows = []T{}
	}
	return Page[T]{Items: rows, Limit: params.Limit, Offset: params.Offset, HasMore: hasMore}
}
