package web

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the web service's Prometheus collectors.
type Metrics struct {
	Requests *prometheus.CounterVec
	Queries  *prometheus.CounterVec
}

// NewMetrics registers the web collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "threatwatch_http_requests_total",
			Help: "HTTP requests served.",
		}, []string{"method"}),
		Queries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "threatwatch_indicator_queries_total",
			Help: "Indicator searches executed against the store.",
		}, []string{"outcome"}),
	}
}
