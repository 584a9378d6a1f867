package property

import "context"

// SessionMode selects how a Session isolates rows.
type SessionMode int

// SessionMode values.
const (
	// SessionBatch holds one transaction for the run with a savepoint per
	// row. Rows must be processed one at a time.
	SessionBatch SessionMode = iota
	// SessionPerRow gives every row its own transaction so rows may be
	// processed concurrently. Commit has nothing left to do.
	SessionPerRow
)

// RecordWriter writes records inside a row scope.
type RecordWriter interface {
	// Upsert inserts the record, or overwrites every non-key column of the
	// existing record with the same property ID.
	Upsert(ctx context.Context, record Record) error
}

// Session is the relational unit of work of one ingestion run.
type Session interface {
	// Row runs fn in an isolated scope named name. When fn returns an
	// error the writes made through its RecordWriter are undone and the
	// error is returned; other rows are unaffected.
	Row(ctx context.Context, name string, fn func(RecordWriter) error) error

	// Commit makes every successful row durable.
	Commit() error

	// Rollback discards whatever has not been committed. It is a no-op
	// after Commit.
	Rollback() error
}

// RecordStore is the relational side of the pipeline.
type RecordStore interface {
	// EnsureSchema creates the table if absent without touching existing data.
	EnsureSchema(ctx context.Context) error

	// Begin opens a Session.
	Begin(ctx context.Context, mode SessionMode) (Session, error)
}

// RecordReader reads stored records.
type RecordReader interface {
	// Find returns the record for a property ID.
	Find(ctx context.Context, propertyID string) (Record, error)

	// List returns records matching filter.
	List(ctx context.Context, filter ListFilter) ([]Record, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)
}

// RowLoader reads the row source.
type RowLoader interface {
	Load(ctx context.Context, path string) ([]Row, error)
}
