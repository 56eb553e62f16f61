package web

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter captures the optional query parameters of an indicator search.
// All present fields combine with logical AND.
type Filter struct {
	Type     string
	Severity string
	Tag      string
	Since    *time.Time
	Until    *time.Time
	Limit    int
}

// Store is the read-side view of persistence. Implementations must return
// indicators most-recent-first. GetRun reports a missing run as (nil, nil).
type Store interface {
	SearchIndicators(ctx context.Context, f Filter) ([]Indicator, error)
	RecentRuns(ctx context.Context, limit int) ([]RunSummary, error)
	GetRun(ctx context.Context, id uuid.UUID) (*RunSummary, error)
	Ping(ctx context.Context) error
}
