package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smartsense/smartsense/domain/property"
	"github.com/smartsense/smartsense/internal/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PropertyStore implements property.RecordStore and property.RecordReader
// using GORM.
type PropertyStore struct {
	db     database.Database
	mapper PropertyMapper
}

// NewPropertyStore creates a new PropertyStore.
func NewPropertyStore(db database.Database) PropertyStore {
	return PropertyStore{db: db}
}

// EnsureSchema creates the properties table if it does not exist.
func (s PropertyStore) EnsureSchema(ctx context.Context) error {
	return AutoMigrate(ctx, s.db)
}

// Begin opens a relational session for one ingestion run.
func (s PropertyStore) Begin(ctx context.Context, mode property.SessionMode) (property.Session, error) {
	switch mode {
	case property.SessionBatch:
		tx, err := database.NewTransaction(ctx, s.db)
		if err != nil {
			return nil, err
		}
		return &batchSession{tx: tx, mapper: s.mapper}, nil
	case property.SessionPerRow:
		return rowSession{db: s.db, mapper: s.mapper}, nil
	default:
		return nil, fmt.Errorf("unknown session mode %d", mode)
	}
}

// Find returns the record stored for propertyID.
func (s PropertyStore) Find(ctx context.Context, propertyID string) (property.Record, error) {
	var model PropertyModel
	err := s.db.Session(ctx).Where("property_id = ?", propertyID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return property.Record{}, fmt.Errorf("property %s: %w", propertyID, database.ErrNotFound)
	}
	if err != nil {
		return property.Record{}, fmt.Errorf("find property: %w", err)
	}
	return s.mapper.ToDomain(model), nil
}

// List returns records matching filter ordered by property ID.
func (s PropertyStore) List(ctx context.Context, filter property.ListFilter) ([]property.Record, error) {
	var models []PropertyModel
	q := listQuery(filter).OrderAsc("property_id").Limit(filter.Limit()).Offset(filter.Offset())
	if err := q.Apply(s.db.Session(ctx).Model(&PropertyModel{})).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	records := make([]property.Record, len(models))
	for i, m := range models {
		records[i] = s.mapper.ToDomain(m)
	}
	return records, nil
}

// Count returns the number of stored records.
func (s PropertyStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.Session(ctx).Model(&PropertyModel{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count properties: %w", err)
	}
	return n, nil
}

func listQuery(filter property.ListFilter) database.Query {
	q := database.NewQuery()
	if filter.Location() != "" {
		q = q.Contains("location", filter.Location())
	}
	if filter.SellerType() != "" {
		q = q.Equal("seller_type", filter.SellerType())
	}
	if filter.MinPrice() > 0 {
		q = q.GreaterThanOrEqual("price", filter.MinPrice())
	}
	if filter.MaxPrice() > 0 {
		q = q.LessThanOrEqual("price", filter.MaxPrice())
	}
	return q
}

// recordWriter upserts records through a transaction handle.
type recordWriter struct {
	tx     *gorm.DB
	mapper PropertyMapper
}

// Upsert inserts the record or overwrites every non-key column of the row
// that already holds its property ID.
func (w recordWriter) Upsert(ctx context.Context, record property.Record) error {
	model, err := w.mapper.ToModel(record)
	if err != nil {
		return err
	}
	model.ID = 0
	model.UpdatedAt = time.Now().UTC()

	result := w.tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "property_id"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(&model)
	if result.Error != nil {
		return fmt.Errorf("upsert property %s: %w", model.PropertyID, result.Error)
	}
	return nil
}
