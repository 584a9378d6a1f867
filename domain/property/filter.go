package property

// ListFilter narrows a record listing. Zero values mean no constraint.
type ListFilter struct {
	location   string
	sellerType string
	minPrice   float64
	maxPrice   float64
	limit      int
	offset     int
}

// ListOption configures a ListFilter.
type ListOption func(*ListFilter)

// NewListFilter builds a ListFilter from options.
func NewListFilter(opts ...ListOption) ListFilter {
	var f ListFilter
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// WithLocation matches records whose location contains s, ignoring case.
func WithLocation(s string) ListOption {
	return func(f *ListFilter) { f.location = s }
}

// WithSellerType matches an exact seller type.
func WithSellerType(s string) ListOption {
	return func(f *ListFilter) { f.sellerType = s }
}

// WithMinPrice sets an inclusive lower price bound.
func WithMinPrice(p float64) ListOption {
	return func(f *ListFilter) { f.minPrice = p }
}

// WithMaxPrice sets an inclusive upper price bound.
func WithMaxPrice(p float64) ListOption {
	return func(f *ListFilter) { f.maxPrice = p }
}

// WithLimit caps the number of records.
func WithLimit(n int) ListOption {
	return func(f *ListFilter) { f.limit = n }
}

// WithOffset skips the first n records.
func WithOffset(n int) ListOption {
	return func(f *ListFilter) { f.offset = n }
}

// Location returns the location substring.
func (f ListFilter) Location() string { return f.location }

// SellerType returns the seller type.
func (f ListFilter) SellerType() string { return f.sellerType }

// MinPrice returns the lower price bound.
func (f ListFilter) MinPrice() float64 { return f.minPrice }

// MaxPrice returns the upper price bound.
func (f ListFilter) MaxPrice() float64 { return f.maxPrice }

// Limit returns the record cap.
func (f ListFilter) Limit() int { return f.limit }

// Offset returns the number of skipped records.
func (f ListFilter) Offset() int { return f.offset }
