package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions carries cross-cutting router configuration.
type RouterOptions struct {
	AllowedOrigins []string
	Registry       *prometheus.Registry
}

// Routes constructs the chi router containing all web endpoints.
func (a *API) Routes(opts RouterOptions) (http.Handler, error) {
	if a == nil {
		return nil, errors.New("nil api")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	allowed := opts.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         int((10 * time.Minute).Seconds()),
	}))

	r.Use(httprate.Limit(100, time.Minute))
	r.Use(a.countRequests)

	// Bounded request/response endpoints share a deadline. The SSE stream is
	// mounted outside it; its lifetime is the client's, not a timeout's.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/", a.handleIndex)
		r.Get("/runs", a.handleRunsPage)

		r.Route("/v1", func(r chi.Router) {
			r.Get("/indicators", a.handleListIndicators)
			r.Get("/runs", a.handleListRuns)
			r.Get("/runs/{id}/archive", a.handleRunArchive)
		})
	})

	r.Get("/sse/events", a.handleSSE)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := a.store.Ping(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if opts.Registry != nil {
		r.Method("GET", "/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	}

	return r, nil
}

func (a *API) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.metrics.Requests.WithLabelValues(r.Method).Inc()
		next.ServeHTTP(w, r)
	})
}
