package web

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"threatwatch/pkg/bus"
	"threatwatch/pkg/render"
	"threatwatch/pkg/s3"
)

// Indicator is the API-facing view of a stored threat indicator.
type Indicator struct {
	ID        uuid.UUID `json:"id"`
	Indicator string    `json:"indicator"`
	Type      string    `json:"type"`
	Severity  string    `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
	Tags      []string  `json:"tags"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
}

// RunSummary is the API-facing view of one recorded fetch cycle.
type RunSummary struct {
	ID         uuid.UUID  `json:"id"`
	Source     string     `json:"source"`
	Status     string     `json:"status"`
	Fetched    int        `json:"fetched"`
	Inserted   int        `json:"inserted"`
	Duplicates int        `json:"duplicates"`
	Error      string     `json:"error,omitempty"`
	ArchiveURL string     `json:"archive_url,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Config controls runtime behaviour for the web handlers.
type Config struct {
	PageSize    int
	MaxPageSize int
}

const (
	defaultPageSize    = 20
	defaultMaxPageSize = 500
)

// API wires the store, template renderer, optional event bus and archive
// client, and configuration for HTTP handlers.
type API struct {
	store    Store
	renderer *render.Engine
	bus      *bus.Bus
	archives *s3.Client
	metrics  *Metrics
	config   Config
}

// New initialises the API layer with sane defaults applied to the provided configuration.
func New(store Store, renderer *render.Engine, eventBus *bus.Bus, metrics *Metrics, cfg Config) (*API, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if metrics == nil {
		return nil, errors.New("metrics are required")
	}

	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = defaultMaxPageSize
	}
	if cfg.PageSize > cfg.MaxPageSize {
		cfg.PageSize = cfg.MaxPageSize
	}

	return &API{
		store:    store,
		renderer: renderer,
		bus:      eventBus,
		metrics:  metrics,
		config:   cfg,
	}, nil
}

// EnableArchiveLinks turns on presigned download redirects for run archives.
func (a *API) EnableArchiveLinks(client *s3.Client) {
	a.archives = client
}
