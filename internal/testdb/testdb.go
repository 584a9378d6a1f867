// Package testdb provides a shared test database helper for fast,
// realistic testing against a file-backed SQLite database.
package testdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/smartsense/smartsense/infrastructure/persistence"
	"github.com/smartsense/smartsense/internal/database"
)

// New creates a SQLite database in a temporary directory with all
// migrations applied. The database is closed when the test finishes.
// A file is used instead of :memory: so every pooled connection sees the
// same data.
func New(t *testing.T) database.Database {
	t.Helper()
	db := NewPlain(t)
	if err := persistence.AutoMigrate(context.Background(), db); err != nil {
		t.Fatalf("testdb.New: auto migrate: %v", err)
	}
	return db
}

// NewPlain creates a temporary SQLite database without running migrations.
func NewPlain(t *testing.T) database.Database {
	t.Helper()
	return Open(t, URL(t))
}

// URL returns a sqlite URL for a fresh file in the test's temp directory.
func URL(t *testing.T) string {
	t.Helper()
	return "sqlite:///" + filepath.Join(t.TempDir(), "test.db")
}

// Open connects to url and closes the connection when the test finishes.
func Open(t *testing.T, url string) database.Database {
	t.Helper()
	db, err := database.NewDatabase(context.Background(), url)
	if err != nil {
		t.Fatalf("testdb.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
