// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

// Package metrics exposes Prometheus collectors for the delivery core:
// queue depth and throughput, websocket connections and rooms, cache
// efficiency, and per-channel delivery outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Queue metrics
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_queue_depth",
			Help: "Current number of queued notifications per priority tier",
		},
		[]string{"priority"},
	)

	QueueProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_queue_processed_total",
			Help: "Total notifications processed per priority tier",
		},
		[]string{"priority"},
	)

	QueueRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_queue_retries_total",
			Help: "Total notifications requeued at a degraded priority",
		},
	)

	QueueDiscardsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_queue_discards_total",
			Help: "Total notifications discarded after retry exhaustion",
		},
	)

	QueueBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_queue_batch_size",
			Help:    "Observed batch sizes at flush time",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "HTTP requests per method, route and status code",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_http_request_duration_seconds",
			Help:    "HTTP request latency per method and route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_http_active_requests",
			Help: "HTTP requests currently in flight",
		},
	)

	// Delivery metrics
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Delivery attempts per channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_circuit_breaker_state",
			Help: "Circuit breaker state per sender (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions per sender",
		},
		[]string{"name", "from", "to"},
	)

	// Hub metrics
	HubConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_hub_connections",
			Help: "Current number of registered websocket connections",
		},
	)

	HubRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_hub_rooms",
			Help: "Current number of active rooms",
		},
	)

	HubEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_hub_events_total",
			Help: "Events pushed to clients per event type",
		},
		[]string{"event"},
	)

	HubDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_hub_dropped_total",
			Help: "Events dropped because a connection's send buffer was full",
		},
	)

	// Cache metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_cache_hits_total",
			Help: "Total cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_cache_misses_total",
			Help: "Total cache misses",
		},
	)

	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_cache_evictions_total",
			Help: "Total cache evictions (expired or size-bounded)",
		},
	)

	// Evaluation metrics
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_evaluations_total",
			Help: "Preference evaluations per outcome reason",
		},
		[]string{"reason"},
	)
)
