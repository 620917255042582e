package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AmapRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "amap_requests_total",
			Help: "Total number of Amap place search calls",
		},
		[]string{"endpoint", "outcome"},
	)

	AmapRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "amap_request_duration_seconds",
			Help:    "Duration of Amap place search calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)

	AmapSubqueryFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "amap_subquery_failures_total",
			Help: "Sub-queries skipped by aggregate searches after a failure",
		},
		[]string{"operation"},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by kind and result",
		},
		[]string{"kind", "result"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"method", "route", "status"},
	)
)
