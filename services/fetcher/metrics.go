package fetcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the fetch cycle's Prometheus collectors.
type Metrics struct {
	Fetched       *prometheus.CounterVec
	Inserted      *prometheus.CounterVec
	Duplicates    *prometheus.CounterVec
	CycleErrors   *prometheus.CounterVec
	CycleDuration *prometheus.HistogramVec
}

// NewMetrics registers the fetcher collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Fetched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "threatwatch_indicators_fetched_total",
			Help: "Indicator records returned by upstream feeds.",
		}, []string{"source"}),
		Inserted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "threatwatch_indicators_inserted_total",
			Help: "Previously-unseen indicators persisted to the store.",
		}, []string{"source"}),
		Duplicates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "threatwatch_indicators_duplicate_total",
			Help: "Indicators skipped because (indicator, type) already exists.",
		}, []string{"source"}),
		CycleErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "threatwatch_fetch_cycle_errors_total",
			Help: "Fetch cycles that failed for a feed.",
		}, []string{"source"}),
		CycleDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "threatwatch_fetch_cycle_duration_seconds",
			Help:    "Wall-clock duration of one fetch cycle per feed.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
	}
}
