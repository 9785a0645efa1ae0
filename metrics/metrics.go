// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starmap_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "starmap_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// StoreFallbacks counts calls answered by the file store after the
	// relational store failed.
	StoreFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starmap_store_fallbacks_total",
			Help: "Operations served by the file store after a relational store failure.",
		},
		[]string{"op"},
	)

	LikesSynced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "starmap_likes_synced_total",
		Help: "Like counters copied from Redis into contents.likes_count.",
	})

	LikeSyncErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "starmap_like_sync_errors_total",
		Help: "Failed like-counter sync attempts.",
	})
)
