package locality

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresStore keeps the catalogue in locality.localities. The unique index
// on (type, name) makes concurrent duplicate inserts collapse into one row.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, rec Locality) (Locality, bool, error) {
	// No conflict target: the id is derived from (type, name), so a racing
	// duplicate may collide on the primary key before the unique index.
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
	if res.Error != nil {
		return Locality{}, false, fmt.Errorf("insert locality: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return rec, true, nil
	}

	var existing Locality
	if err := s.db.WithContext(ctx).
		Where("type = ? AND name = ?", rec.Type, rec.Name).
		First(&existing).Error; err != nil {
		return Locality{}, false, fmt.Errorf("read existing locality: %w", err)
	}
	return existing, false, nil
}

func (s *PostgresStore) ListByType(ctx context.Context, t LocalityType) ([]Locality, error) {
	out := make([]Locality, 0)
	err := s.db.WithContext(ctx).
		Where("type = ?", t).
		Order(`name COLLATE "C"`).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list localities: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Search(ctx context.Context, t LocalityType, partial string, limit int) ([]string, error) {
	names := make([]string, 0)
	err := s.db.WithContext(ctx).
		Model(&Locality{}).
		Where("type = ? AND name ILIKE ?", t, "%"+escapeLike(partial)+"%").
		Order(`name COLLATE "C"`).
		Limit(limit).
		Pluck("name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("search localities: %w", err)
	}
	return names, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Locality{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count localities: %w", err)
	}
	return n, nil
}
