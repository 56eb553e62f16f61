package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore reads indicators and run summaries through GORM.
type GormStore struct {
	db *gorm.DB
}

// Connect establishes a PostgreSQL backed GORM session for the read path.
func Connect(ctx context.Context, dsn string) (*GormStore, error) {
	database, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, err
	}

	return &GormStore{db: database}, nil
}

// Close releases the underlying sql.DB resources.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SearchIndicators translates the filter into a query against the indicators
// table. Filter values that match nothing simply produce an empty result.
func (s *GormStore) SearchIndicators(ctx context.Context, f Filter) ([]Indicator, error) {
	query := s.db.WithContext(ctx).Model(&indicatorModel{})

	if f.Type != "" {
		query = query.Where("type = ?", f.Type)
	}
	if f.Severity != "" {
		query = query.Where("severity = ?", f.Severity)
	}
	if f.Tag != "" {
		needle, err := json.Marshal([]string{f.Tag})
		if err != nil {
			return nil, fmt.Errorf("marshal tag filter: %w", err)
		}
		query = query.Where("tags @> ?", string(needle))
	}
	if f.Since != nil {
		query = query.Where("timestamp >= ?", f.Since.UTC())
	}
	if f.Until != nil {
		query = query.Where("timestamp <= ?", f.Until.UTC())
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	var rows []indicatorModel
	if err := query.Order("timestamp DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]Indicator, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toAPI())
	}
	return out, nil
}

// RecentRuns returns the latest fetch cycle summaries, newest first.
func (s *GormStore) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}

	var rows []fetchRunModel
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]RunSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toAPI())
	}
	return out, nil
}

// GetRun loads a single fetch cycle summary by ID.
func (s *GormStore) GetRun(ctx context.Context, id uuid.UUID) (*RunSummary, error) {
	var row fetchRunModel
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	run := row.toAPI()
	return &run, nil
}

// Ping reports whether the database is reachable.
func (s *GormStore) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("nil store")
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
