package monitoring

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HttpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	HttpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_connections",
			Help: "Number of in-flight HTTP requests",
		},
	)

	FeedCacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_cache_requests_total",
			Help: "Follow feed reads by source",
		},
		[]string{"result"}, // hit, warm, fallback
	)

	PageCacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "page_cache_requests_total",
			Help: "Page cache lookups",
		},
		[]string{"result"}, // hit, miss, error
	)

	WorkerEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_worker_events_total",
			Help: "Feed stream events handled by workers",
		},
		[]string{"type", "outcome"},
	)

	WorkerEventDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_worker_event_duration_seconds",
			Help:    "Duration of feed event handling",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HttpRequestsTotal,
			HttpRequestDuration,
			ActiveConnections,
			FeedCacheRequests,
			PageCacheRequests,
			WorkerEvents,
			WorkerEventDuration,
		)
	})
}
