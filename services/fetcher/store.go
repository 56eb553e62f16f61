package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"threatwatch/pkg/db"
)

// insertBatchTimeout caps one feed's full insert batch.
const insertBatchTimeout = time.Minute

// Store is the fetch cycle's view of persistence. The database's existing
// contents are the only dedup oracle; no state survives between cycles.
type Store interface {
	InsertIndicators(ctx context.Context, indicators []Indicator, traceID string, fetchedAt time.Time) (inserted, duplicates int, err error)
	RecordRun(ctx context.Context, run Run) error
	RecentRuns(ctx context.Context, limit int) ([]Run, error)
	CountIndicators(ctx context.Context) (int64, error)
}

// PGStore persists indicators and run summaries in PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps the provided pool.
func NewPGStore(pool *pgxpool.Pool) (*PGStore, error) {
	if pool == nil {
		return nil, errors.New("database pool is required")
	}
	return &PGStore{pool: pool}, nil
}

// InsertIndicators writes previously-unseen indicators. The unique index on
// (indicator, type) enforces the dedup invariant; conflicts are counted as
// duplicates, never treated as errors.
func (s *PGStore) InsertIndicators(ctx context.Context, indicators []Indicator, traceID string, fetchedAt time.Time) (int, int, error) {
	const query = `
        INSERT INTO indicators (id, indicator, type, severity, timestamp, tags, source, trace_id, fetched_at)
        VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9)
        ON CONFLICT (indicator, type) DO NOTHING;
    `

	inserted, duplicates := 0, 0

	// Exec bounds each statement; the outer window bounds the whole batch so
	// a degraded database cannot stretch one cycle past the poll interval.
	err := db.WithTimeout(ctx, insertBatchTimeout, func(ctx context.Context) error {
		for _, ind := range indicators {
			tags, err := json.Marshal(tagsOrEmpty(ind.Tags))
			if err != nil {
				return fmt.Errorf("marshal tags: %w", err)
			}

			tag, err := db.Exec(ctx, s.pool, query,
				uuid.New(), ind.Indicator, ind.Type, ind.Severity, ind.Timestamp.UTC(),
				string(tags), ind.Source, traceID, fetchedAt.UTC())
			if err != nil {
				return fmt.Errorf("insert indicator %q: %w", ind.Indicator, err)
			}

			if tag.RowsAffected() > 0 {
				inserted++
			} else {
				duplicates++
			}
		}
		return nil
	})

	return inserted, duplicates, err
}

// RecordRun stores the summary row for one fetch cycle against one feed.
func (s *PGStore) RecordRun(ctx context.Context, run Run) error {
	const query = `
        INSERT INTO fetch_runs (id, source, status, fetched, inserted, duplicates, error, archive_url, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
    `

	id := run.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	_, err := db.Exec(ctx, s.pool, query,
		id, run.Source, run.Status, run.Fetched, run.Inserted, run.Duplicates,
		run.Error, run.ArchiveURL, run.StartedAt.UTC(), run.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("record run for %q: %w", run.Source, err)
	}
	return nil
}

// RecentRuns returns the latest fetch cycle summaries, newest first.
func (s *PGStore) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	const query = `
        SELECT id, source, status, fetched, inserted, duplicates, error, archive_url, started_at, finished_at
        FROM fetch_runs
        ORDER BY started_at DESC
        LIMIT $1;
    `

	if limit <= 0 {
		limit = 10
	}

	var runs []Run
	if err := db.Select(ctx, s.pool, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("select recent runs: %w", err)
	}
	return runs, nil
}

// CountIndicators reports the total number of stored indicators.
func (s *PGStore) CountIndicators(ctx context.Context) (int64, error) {
	var total int64
	if err := db.Get(ctx, s.pool, &total, `SELECT count(*) FROM indicators;`); err != nil {
		return 0, fmt.Errorf("count indicators: %w", err)
	}
	return total, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
