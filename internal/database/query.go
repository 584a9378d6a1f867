package database

import (
	"fmt"

	"gorm.io/gorm"
)

// FilterOperator represents SQL comparison operators.
type FilterOperator int

// FilterOperator values.
const (
	OpEqual FilterOperator = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
	OpContains
	OpIn
	OpBetween
)

// String returns the SQL representation of the operator.
func (o FilterOperator) String() string {
	switch o {
	case OpNotEqual:
		return "!="
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	case OpContains:
		return "LIKE"
	case OpIn:
		return "IN"
	case OpBetween:
		return "BETWEEN"
	default:
		return "="
	}
}

// Filter represents a single query filter condition.
type Filter struct {
	field    string
	operator FilterOperator
	value    any
	value2   any
}

// Field returns the filter field name.
func (f Filter) Field() string { return f.field }

// Operator returns the filter operator.
func (f Filter) Operator() FilterOperator { return f.operator }

// Value returns the filter value.
func (f Filter) Value() any { return f.value }

// SortDirection represents sort direction.
type SortDirection int

// SortDirection values.
const (
	SortAsc SortDirection = iota
	SortDesc
)

// String returns the SQL representation.
func (s SortDirection) String() string {
	if s == SortDesc {
		return "DESC"
	}
	return "ASC"
}

type orderBy struct {
	field     string
	direction SortDirection
}

// Query represents a database query with filters, ordering, and pagination.
// Field names are interpolated into SQL and must come from code, never from
// request input.
type Query struct {
	filters []Filter
	orderBy []orderBy
	limit   int
	offset  int
}

// NewQuery creates a new empty Query.
func NewQuery() Query {
	return Query{}
}

func (q Query) where(f Filter) Query {
	filters := make([]Filter, len(q.filters), len(q.filters)+1)
	copy(filters, q.filters)
	q.filters = append(filters, f)
	return q
}

// Equal adds an equality filter.
func (q Query) Equal(field string, value any) Query {
	return q.where(Filter{field: field, operator: OpEqual, value: value})
}

// NotEqual adds a not-equal filter.
func (q Query) NotEqual(field string, value any) Query {
	return q.where(Filter{field: field, operator: OpNotEqual, value: value})
}

// GreaterThanOrEqual adds a greater-than-or-equal filter.
func (q Query) GreaterThanOrEqual(field string, value any) Query {
	return q.where(Filter{field: field, operator: OpGreaterThanOrEqual, value: value})
}

// LessThanOrEqual adds a less-than-or-equal filter.
func (q Query) LessThanOrEqual(field string, value any) Query {
	return q.where(Filter{field: field, operator: OpLessThanOrEqual, value: value})
}

// Contains adds a case-insensitive substring filter that works on every
// supported dialect.
func (q Query) Contains(field string, substr string) Query {
	return q.where(Filter{field: field, operator: OpContains, value: "%" + substr + "%"})
}

// In adds an IN filter.
func (q Query) In(field string, values any) Query {
	return q.where(Filter{field: field, operator: OpIn, value: values})
}

// Between adds an inclusive range filter.
func (q Query) Between(field string, low, high any) Query {
	return q.where(Filter{field: field, operator: OpBetween, value: low, value2: high})
}

// OrderAsc adds ascending ordering.
func (q Query) OrderAsc(field string) Query {
	q.orderBy = append(append([]orderBy(nil), q.orderBy...), orderBy{field: field, direction: SortAsc})
	return q
}

// OrderDesc adds descending ordering.
func (q Query) OrderDesc(field string) Query {
	q.orderBy = append(append([]orderBy(nil), q.orderBy...), orderBy{field: field, direction: SortDesc})
	return q
}

// Limit sets the result limit.
func (q Query) Limit(limit int) Query {
	q.limit = limit
	return q
}

// Offset sets the result offset.
func (q Query) Offset(offset int) Query {
	q.offset = offset
	return q
}

// Paginate sets both limit and offset for pagination.
func (q Query) Paginate(page, pageSize int) Query {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	q.limit = pageSize
	q.offset = (page - 1) * pageSize
	return q
}

// Filters returns all filter conditions.
func (q Query) Filters() []Filter {
	result := make([]Filter, len(q.filters))
	copy(result, q.filters)
	return result
}

// LimitValue returns the limit value (0 means no limit).
func (q Query) LimitValue() int { return q.limit }

// OffsetValue returns the offset value.
func (q Query) OffsetValue() int { return q.offset }

// Apply applies the query to a GORM database session.
func (q Query) Apply(db *gorm.DB) *gorm.DB {
	result := q.ApplyFilters(db)

	for _, order := range q.orderBy {
		result = result.Order(fmt.Sprintf("%s %s", order.field, order.direction.String()))
	}
	if q.limit > 0 {
		result = result.Limit(q.limit)
	}
	if q.offset > 0 {
		result = result.Offset(q.offset)
	}
	return result
}

// ApplyFilters applies only the WHERE conditions, for COUNT queries.
func (q Query) ApplyFilters(db *gorm.DB) *gorm.DB {
	for _, filter := range q.filters {
		db = applyFilter(db, filter)
	}
	return db
}

func applyFilter(db *gorm.DB, filter Filter) *gorm.DB {
	switch filter.operator {
	case OpContains:
		return db.Where(fmt.Sprintf("LOWER(%s) LIKE LOWER(?)", filter.field), filter.value)
	case OpIn:
		return db.Where(fmt.Sprintf("%s IN ?", filter.field), filter.value)
	case OpBetween:
		return db.Where(fmt.Sprintf("%s BETWEEN ? AND ?", filter.field), filter.value, filter.value2)
	default:
		return db.Where(fmt.Sprintf("%s %s ?", filter.field, filter.operator.String()), filter.value)
	}
}
