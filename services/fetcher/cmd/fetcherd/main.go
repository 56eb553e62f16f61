package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"threatwatch/pkg/bus"
	"threatwatch/pkg/db"
	gos3 "threatwatch/pkg/s3"
	"threatwatch/pkg/telemetry"
	"threatwatch/services/fetcher"
)

const serviceName = "fetcherd"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "fetcherd",
		Short:         "Threat indicator feed poller",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newOnceCommand())
	return cmd
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll feeds on the configured interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(false)
		},
	}
}

func newOnceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Execute a single fetch cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(true)
		},
	}
}

func run(once bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	shutdownTelemetry, middleware, logger, err := telemetry.Init(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			zlog.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	cfg, err := fetcher.LoadConfig(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	feeds, err := cfg.ResolveFeeds()
	if err != nil {
		return fmt.Errorf("resolve feeds: %w", err)
	}

	pool, err := db.Open(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	store, err := fetcher.NewPGStore(pool)
	if err != nil {
		return err
	}

	var eventBus *bus.Bus
	if cfg.NATSURL != "" {
		eventBus, err = bus.New(cfg.NATSURL)
		if err != nil {
			zlog.Warn().Err(err).Msg("nats unavailable, ingest events disabled")
		} else {
			defer eventBus.Close()
		}
	}

	var archiver fetcher.Archiver
	if cfg.ArchiveBucket != "" {
		s3Client, err := gos3.NewClientFromEnv()
		if err != nil {
			zlog.Warn().Err(err).Msg("s3 unavailable, payload archival disabled")
		} else {
			archiver, err = fetcher.NewS3Archiver(s3Client, cfg.ArchiveBucket)
			if err != nil {
				return fmt.Errorf("create archiver: %w", err)
			}
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := fetcher.NewMetrics(registry)

	f, err := fetcher.New(feeds, fetcher.NewClient(cfg.RequestTimeout, cfg.MaxPages), store, archiver, eventBus, metrics, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}

	if once {
		return f.RunOnce(ctx)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context(), pool); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)

	go func() {
		zlog.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listener started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	go func() {
		zlog.Info().Dur("interval", cfg.PollInterval).Int("feeds", len(feeds)).Msg("fetch loop started")
		if err := f.Run(ctx, cfg.PollInterval); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("fetch loop: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Err(err).Msg("shutdown http server")
	}

	return nil
}
