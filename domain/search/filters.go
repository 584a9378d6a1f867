package search

import "github.com/smartsense/smartsense/domain/property"

// Filters narrows a vector search.
type Filters struct {
	limit      int
	propertyID string
	kind       property.ChunkKind
	minScore   float64
}

// FiltersOption is a functional option for Filters.
type FiltersOption func(*Filters)

// DefaultLimit is used when no limit is given.
const DefaultLimit = 5

// NewFilters builds Filters from options.
func NewFilters(opts ...FiltersOption) Filters {
	f := Filters{limit: DefaultLimit}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// WithLimit sets the maximum number of hits.
func WithLimit(n int) FiltersOption {
	return func(f *Filters) {
		if n > 0 {
			f.limit = n
		}
	}
}

// WithPropertyID restricts hits to one property.
func WithPropertyID(id string) FiltersOption {
	return func(f *Filters) { f.propertyID = id }
}

// WithChunkKind restricts hits to one chunk kind.
func WithChunkKind(kind property.ChunkKind) FiltersOption {
	return func(f *Filters) { f.kind = kind }
}

// WithMinScore drops hits scoring below s.
func WithMinScore(s float64) FiltersOption {
	return func(f *Filters) { f.minScore = s }
}

// Limit returns the maximum number of hits.
func (f Filters) Limit() int { return f.limit }

// PropertyID returns the property restriction, if any.
func (f Filters) PropertyID() string { return f.propertyID }

// ChunkKind returns the chunk kind restriction, if any.
func (f Filters) ChunkKind() property.ChunkKind { return f.kind }

// MinScore returns the score threshold.
func (f Filters) MinScore() float64 { return f.minScore }

// Matches reports whether a chunk satisfies the property and kind filters.
func (f Filters) Matches(c property.Chunk) bool {
	if f.propertyID != "" && c.PropertyID() != f.propertyID {
		return false
	}
	if f.kind != "" && c.Kind() != f.kind {
		return false
	}
	return true
}
