package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MeKo-Tech/flatdoc/internal/pipeline"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flatdoc_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flatdoc_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Document runs
	documentRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flatdoc_document_requests_total",
			Help: "Total number of processed document requests",
		},
		[]string{"status", "kind"},
	)

	documentRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flatdoc_document_run_duration_seconds",
			Help:    "Wall time of one document run including recognition",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flatdoc_stage_duration_seconds",
			Help:    "Duration of individual pipeline stages",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5, 30},
		},
		[]string{"stage"},
	)

	busyRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flatdoc_requests_in_flight",
			Help: "1 while the worker is processing a request",
		},
	)

	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flatdoc_upload_size_bytes",
			Help:    "Size of uploaded files in bytes",
			Buckets: []float64{10 * 1024, 100 * 1024, 1024 * 1024, 5 * 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flatdoc_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flatdoc_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)

func observeRun(reply Reply, res *pipeline.Result, wall time.Duration) {
	kind := ""
	if reply.Error != nil {
		kind = string(reply.Error.Kind)
	}
	documentRequestsTotal.WithLabelValues(reply.Status, kind).Inc()
	documentRunDuration.Observe(wall.Seconds())
	if res == nil {
		return
	}
	for _, st := range res.Stages {
		stageDuration.WithLabelValues(st.Stage).Observe(st.Duration.Seconds())
	}
}
