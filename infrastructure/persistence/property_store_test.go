package persistence_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/smartsense/smartsense/domain/floorplan"
	"github.com/smartsense/smartsense/domain/property"
	"github.com/smartsense/smartsense/infrastructure/persistence"
	"github.com/smartsense/smartsense/internal/database"
	"github.com/smartsense/smartsense/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listing(id, title, location string, price float64) property.Listing {
	return property.ReconstructListing(id, title, "desc "+id, location, price,
		"owner", "2024-01-01", "", "555-0100", "tag", id+".png")
}

func upsert(t *testing.T, ctx context.Context, sess property.Session, name string, rec property.Record) {
	t.Helper()
	err := sess.Row(ctx, name, func(w property.RecordWriter) error {
		return w.Upsert(ctx, rec)
	})
	require.NoError(t, err)
}

func TestPropertyStore_EnsureSchemaKeepsRows(t *testing.T) {
	ctx := context.Background()
	db := testdb.New(t)
	store := persistence.NewPropertyStore(db)

	sess, err := store.Begin(ctx, property.SessionBatch)
	require.NoError(t, err)
	upsert(t, ctx, sess, "1", property.NewRecord(listing("P1", "One", "Goa", 10), floorplan.Counted(nil)))
	require.NoError(t, sess.Commit())

	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, persistence.ValidateSchema(ctx, db))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPropertyStore_UpsertOverwritesNonKeyColumns(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewPropertyStore(testdb.New(t))

	for _, title := range []string{"First", "Second"} {
		sess, err := store.Begin(ctx, property.SessionBatch)
		require.NoError(t, err)
		rec := property.NewRecord(listing("P1", title, "Pune", 99.5), floorplan.Counted(map[string]int{"door": 2}))
		upsert(t, ctx, sess, "1", rec)
		require.NoError(t, sess.Commit())
	}

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := store.Find(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "Second", got.Listing().Title())
	assert.Equal(t, 99.5, got.Listing().Price())
	assert.Equal(t, 2, got.Floorplan().Count("door"))
	assert.NotZero(t, got.ID())
	assert.False(t, got.UpdatedAt().IsZero())
}

func TestPropertyStore_FloorplanFailureRoundTrips(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewPropertyStore(testdb.New(t))

	sess, err := store.Begin(ctx, property.SessionPerRow)
	require.NoError(t, err)
	upsert(t, ctx, sess, "1", property.NewRecord(listing("P1", "t", "x", 0), floorplan.ImageNotFound()))
	require.NoError(t, sess.Commit())

	got, err := store.Find(ctx, "P1")
	require.NoError(t, err)
	assert.False(t, got.Floorplan().OK())
	assert.Equal(t, floorplan.ReasonImageNotFound, got.Floorplan().Reason())
}

func TestPropertyStore_FindMissing(t *testing.T) {
	store := persistence.NewPropertyStore(testdb.New(t))
	_, err := store.Find(context.Background(), "nope")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestBatchSession_FailedRowIsRolledBack(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewPropertyStore(testdb.New(t))

	sess, err := store.Begin(ctx, property.SessionBatch)
	require.NoError(t, err)

	upsert(t, ctx, sess, "1", property.NewRecord(listing("P1", "a", "x", 1), floorplan.Counted(nil)))

	boom := errors.New("boom")
	err = sess.Row(ctx, "2", func(w property.RecordWriter) error {
		require.NoError(t, w.Upsert(ctx, property.NewRecord(listing("P2", "b", "x", 2), floorplan.Counted(nil))))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	upsert(t, ctx, sess, "3", property.NewRecord(listing("P3", "c", "x", 3), floorplan.Counted(nil)))
	require.NoError(t, sess.Commit())

	records, err := store.List(ctx, property.NewListFilter())
	require.NoError(t, err)
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.PropertyID()
	}
	assert.Equal(t, []string{"P1", "P3"}, ids)
}

func TestBatchSession_PanicInRowIsContained(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewPropertyStore(testdb.New(t))

	sess, err := store.Begin(ctx, property.SessionBatch)
	require.NoError(t, err)

	err = sess.Row(ctx, "1", func(w property.RecordWriter) error {
		_ = w.Upsert(ctx, property.NewRecord(listing("P1", "a", "x", 1), floorplan.Counted(nil)))
		panic("detector exploded")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "detector exploded")

	upsert(t, ctx, sess, "2", property.NewRecord(listing("P2", "b", "x", 2), floorplan.Counted(nil)))
	require.NoError(t, sess.Commit())

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestBatchSession_RollbackDiscardsEverything(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewPropertyStore(testdb.New(t))

	sess, err := store.Begin(ctx, property.SessionBatch)
	require.NoError(t, err)
	upsert(t, ctx, sess, "1", property.NewRecord(listing("P1", "a", "x", 1), floorplan.Counted(nil)))
	require.NoError(t, sess.Rollback())
	require.NoError(t, sess.Rollback())

	err = sess.Row(ctx, "2", func(property.RecordWriter) error { return nil })
	assert.Error(t, err)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRowSession_ConcurrentRows(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewPropertyStore(testdb.New(t))

	sess, err := store.Begin(ctx, property.SessionPerRow)
	require.NoError(t, err)

	ids := []string{"A", "B", "C", "D", "E", "F"}
	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = sess.Row(ctx, id, func(w property.RecordWriter) error {
				return w.Upsert(ctx, property.NewRecord(listing(id, id, "x", 1), floorplan.Counted(nil)))
			})
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	require.NoError(t, sess.Commit())

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(ids)), n)
}

func TestPropertyStore_ListFilters(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewPropertyStore(testdb.New(t))

	sess, err := store.Begin(ctx, property.SessionBatch)
	require.NoError(t, err)
	upsert(t, ctx, sess, "1", property.NewRecord(listing("P1", "a", "North Goa", 100), floorplan.Counted(nil)))
	upsert(t, ctx, sess, "2", property.NewRecord(listing("P2", "b", "Pune", 200), floorplan.Counted(nil)))
	upsert(t, ctx, sess, "3", property.NewRecord(listing("P3", "c", "south goa", 300), floorplan.Counted(nil)))
	require.NoError(t, sess.Commit())

	tests := []struct {
		name   string
		filter property.ListFilter
		want   []string
	}{
		{"all", property.NewListFilter(), []string{"P1", "P2", "P3"}},
		{"location ignores case", property.NewListFilter(property.WithLocation("GOA")), []string{"P1", "P3"}},
		{"price range", property.NewListFilter(property.WithMinPrice(150), property.WithMaxPrice(300)), []string{"P2", "P3"}},
		{"limit offset", property.NewListFilter(property.WithLimit(1), property.WithOffset(1)), []string{"P2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := store.List(ctx, tt.filter)
			require.NoError(t, err)
			got := make([]string, len(records))
			for i, r := range records {
				got[i] = r.PropertyID()
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
