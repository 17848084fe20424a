// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stationmeteo"

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route pattern and status code.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	RetrieveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "retrieve_duration_seconds",
		Help:      "Time to read and aggregate a historical series.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"granularity"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "aggregate_cache_lookups_total",
		Help:      "Aggregate cache lookups by result (hit, miss, error).",
	}, []string{"result"})

	Exports = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "exports_total",
		Help:      "Export requests by format and result.",
	}, []string{"format", "result"})

	LiveOffers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "live_offers_total",
		Help:      "Readings offered to the live reconciler by source and outcome (accepted, stale).",
	}, []string{"source", "result"})

	PollErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "live_poll_errors_total",
		Help:      "Failed live poll attempts.",
	})

	IngestedReadings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingested_readings_total",
		Help:      "Readings written to the store by ingest channel (mqtt, http).",
	}, []string{"channel"})

	LiveSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "live_subscribers",
		Help:      "Connected live update listeners.",
	})
)
