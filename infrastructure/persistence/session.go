package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/smartsense/smartsense/domain/property"
	"github.com/smartsense/smartsense/internal/database"
	"gorm.io/gorm"
)

// batchSession holds one transaction for the whole run. Each row runs
// between a savepoint and its release, so a failed row is rolled back to
// the savepoint without disturbing earlier rows.
type batchSession struct {
	mu     sync.Mutex
	tx     database.Transaction
	mapper PropertyMapper
	seq    int
}

func (s *batchSession) Row(ctx context.Context, name string, fn func(property.RecordWriter) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx.Finished() {
		return fmt.Errorf("row %s: session already finished", name)
	}

	s.seq++
	sp := fmt.Sprintf("row_%d", s.seq)
	if err := s.tx.SavePoint(sp); err != nil {
		return fmt.Errorf("row %s: %w", name, err)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("row %s: panic: %v", name, r)
		}
		if err != nil {
			if rbErr := s.tx.RollbackTo(sp); rbErr != nil {
				err = errors.Join(err, rbErr)
				return
			}
		}
		if relErr := s.tx.Release(sp); relErr != nil && err == nil {
			err = fmt.Errorf("row %s: %w", name, relErr)
		}
	}()

	return fn(recordWriter{tx: s.tx.Session(), mapper: s.mapper})
}

func (s *batchSession) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx.Commit()
}

func (s *batchSession) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx.Rollback()
}

// rowSession commits every row in its own transaction, which lets rows be
// written concurrently. A row is durable as soon as Row returns nil.
type rowSession struct {
	db     database.Database
	mapper PropertyMapper
}

func (s rowSession) Row(ctx context.Context, name string, fn func(property.RecordWriter) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("row %s: panic: %v", name, r)
		}
	}()
	return database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		return fn(recordWriter{tx: tx, mapper: s.mapper})
	})
}

func (rowSession) Commit() error { return nil }

func (rowSession) Rollback() error { return nil }
