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
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"threatwatch/pkg/bus"
	"threatwatch/pkg/render"
	"threatwatch/pkg/s3"
	"threatwatch/pkg/telemetry"
	"threatwatch/services/web"
)

const serviceName = "webd"

func main() {
	if err := run(); err != nil {
		zlog.Fatal().Err(err).Msg("webd")
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	shutdownTelemetry, middleware, _, err := telemetry.Init(ctx, serviceName)
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

	cfg, err := web.LoadConfig(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := web.Connect(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			zlog.Error().Err(err).Msg("close database")
		}
	}()

	renderer, err := render.New()
	if err != nil {
		return fmt.Errorf("init renderer: %w", err)
	}

	var eventBus *bus.Bus
	if cfg.NATSURL != "" {
		eventBus, err = bus.New(cfg.NATSURL)
		if err != nil {
			zlog.Warn().Err(err).Msg("nats unavailable, live events disabled")
		} else {
			defer eventBus.Close()
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := web.NewMetrics(registry)

	api, err := web.New(store, renderer, eventBus, metrics, web.Config{
		PageSize:    cfg.PageSize,
		MaxPageSize: cfg.MaxPageSize,
	})
	if err != nil {
		return fmt.Errorf("create api: %w", err)
	}

	if s3Client, err := s3.NewClientFromEnv(); err != nil {
		zlog.Warn().Err(err).Msg("s3 unavailable, archive downloads disabled")
	} else {
		api.EnableArchiveLinks(s3Client)
	}

	routes, err := api.Routes(web.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		Registry:       registry,
	})
	if err != nil {
		return fmt.Errorf("create routes: %w", err)
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           middleware(routes),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info().Str("addr", cfg.Addr).Msg("starting webd")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
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
		zlog.Error().Err(err).Msg("shutdown server")
	}

	return nil
}
