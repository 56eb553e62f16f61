package fetcher

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"threatwatch/pkg/bus"
	"threatwatch/pkg/telemetry"
)

// Fetcher runs the periodic fetch cycle: pull feeds, normalize, insert
// previously-unseen indicators, and report the outcome.
type Fetcher struct {
	feeds    []Feed
	client   *Client
	store    Store
	archiver Archiver
	bus      *bus.Bus
	metrics  *Metrics
	tracer   trace.Tracer
	logger   *log.Logger
	now      func() time.Time
}

// New assembles a Fetcher. The archiver and bus are optional; the store,
// client, and metrics are not.
func New(feeds []Feed, client *Client, store Store, archiver Archiver, eventBus *bus.Bus, metrics *Metrics, logger *log.Logger) (*Fetcher, error) {
	if len(feeds) == 0 {
		return nil, errors.New("at least one feed is required")
	}
	if client == nil {
		return nil, errors.New("feed client is required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}
	if metrics == nil {
		return nil, errors.New("metrics are required")
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Fetcher{
		feeds:    feeds,
		client:   client,
		store:    store,
		archiver: archiver,
		bus:      eventBus,
		metrics:  metrics,
		tracer:   telemetry.Tracer("threatwatch/fetcher"),
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Run executes cycles on the given interval until ctx is cancelled. Cycles
// run to completion sequentially on one goroutine, so an overrunning cycle
// delays the next tick instead of overlapping it.
func (f *Fetcher) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("poll interval must be positive")
	}

	f.RunCycle(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			f.RunCycle(ctx)
		}
	}
}

// RunOnce executes a single cycle and logs each run's outcome plus the
// store's indicator total, reading back what the cycle just recorded.
func (f *Fetcher) RunOnce(ctx context.Context) error {
	f.RunCycle(ctx)

	runs, err := f.store.RecentRuns(ctx, len(f.feeds))
	if err != nil {
		return err
	}
	for _, run := range runs {
		f.logger.Printf("INFO run %s feed=%s status=%s fetched=%d inserted=%d duplicates=%d",
			run.ID, run.Source, run.Status, run.Fetched, run.Inserted, run.Duplicates)
	}

	total, err := f.store.CountIndicators(ctx)
	if err != nil {
		return err
	}
	f.logger.Printf("INFO store holds %d indicators", total)
	return nil
}

// RunCycle pulls every configured feed once. Per-feed failures are recorded
// and counted but never stop the cycle or the process; the next scheduled
// cycle retries from scratch.
func (f *Fetcher) RunCycle(ctx context.Context) {
	for _, feed := range f.feeds {
		if ctx.Err() != nil {
			return
		}
		f.runFeed(ctx, feed)
	}
}

func (f *Fetcher) runFeed(ctx context.Context, feed Feed) {
	startedAt := f.now().UTC()

	ctx, span := f.tracer.Start(ctx, "feed.pull",
		trace.WithAttributes(attribute.String("feed.source", feed.Name)))
	defer span.End()

	run := Run{
		ID:        uuid.New(),
		Source:    feed.Name,
		StartedAt: startedAt,
	}

	result, err := f.client.Pull(ctx, feed)
	if err != nil {
		f.finishFeed(ctx, span, run, err)
		return
	}

	indicators := Normalize(result.Pulses, feed.Name, startedAt)
	run.Fetched = len(indicators)
	f.metrics.Fetched.WithLabelValues(feed.Name).Add(float64(len(indicators)))
	span.SetAttributes(attribute.Int("feed.indicator.count", len(indicators)))

	inserted, duplicates, err := f.store.InsertIndicators(ctx, indicators, telemetry.TraceID(ctx), startedAt)
	run.Inserted = inserted
	run.Duplicates = duplicates
	if err != nil {
		f.finishFeed(ctx, span, run, err)
		return
	}

	if f.archiver != nil {
		archiveURL, err := f.archiver.Archive(ctx, feed.Name, startedAt, result.RawPages)
		if err != nil {
			f.logger.Printf("WARN archive failed for feed %s: %v", feed.Name, err)
		} else {
			run.ArchiveURL = archiveURL
		}
	}

	f.finishFeed(ctx, span, run, nil)
}

func (f *Fetcher) finishFeed(ctx context.Context, span trace.Span, run Run, cause error) {
	run.FinishedAt = f.now().UTC()

	// A store error can leave part of the batch inserted; the counters must
	// reflect those rows the same way the run row does.
	f.metrics.Inserted.WithLabelValues(run.Source).Add(float64(run.Inserted))
	f.metrics.Duplicates.WithLabelValues(run.Source).Add(float64(run.Duplicates))

	if cause != nil {
		run.Status = RunStatusError
		run.Error = cause.Error()
		f.metrics.CycleErrors.WithLabelValues(run.Source).Inc()
		span.RecordError(cause)
		span.SetStatus(codes.Error, cause.Error())
		f.logger.Printf("ERROR fetch cycle failed for feed %s: %v", run.Source, cause)
	} else {
		run.Status = RunStatusOK
		f.logger.Printf("INFO feed %s: %d fetched, %d inserted, %d duplicates",
			run.Source, run.Fetched, run.Inserted, run.Duplicates)
	}

	f.metrics.CycleDuration.WithLabelValues(run.Source).
		Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())

	span.SetAttributes(
		attribute.Int("feed.inserted", run.Inserted),
		attribute.Int("feed.duplicates", run.Duplicates),
	)

	if err := f.store.RecordRun(ctx, run); err != nil {
		f.logger.Printf("ERROR record run for feed %s: %v", run.Source, err)
	}

	f.publishEvents(run)
}

func (f *Fetcher) publishEvents(run Run) {
	if f.bus == nil {
		return
	}

	if run.Inserted > 0 {
		if err := f.bus.Publish(bus.IndicatorsInsertedSubject, map[string]any{
			"source":   run.Source,
			"inserted": run.Inserted,
			"at":       run.FinishedAt,
		}); err != nil {
			f.logger.Printf("WARN publish inserted event: %v", err)
		}
	}

	if err := f.bus.Publish(bus.RunCompletedSubject, map[string]any{
		"run_id":     run.ID,
		"source":     run.Source,
		"status":     run.Status,
		"fetched":    run.Fetched,
		"inserted":   run.Inserted,
		"duplicates": run.Duplicates,
	}); err != nil {
		f.logger.Printf("WARN publish run event: %v", err)
	}
}
