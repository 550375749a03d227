package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	MessagesPosted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_posted_total",
			Help: "Total messages posted",
		},
		[]string{"room_type"},
	)

	DMsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_dms_sent_total",
			Help: "Total direct messages sent",
		},
	)

	FilesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_files_uploaded_total",
			Help: "Total files uploaded",
		},
	)

	SearchQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_search_queries_total",
			Help: "Total search queries",
		},
	)

	// Stream metrics
	StreamsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_streams_open",
			Help: "Currently open event streams",
		},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_events_published_total",
			Help: "Total events published on the bus",
		},
		[]string{"kind"},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_rate_limit_hits_total",
			Help: "Total rate limit rejections",
		},
		[]string{"bucket"},
	)

	// Background work metrics
	MessagesPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_pruned_total",
			Help: "Total messages removed by retention sweeps",
		},
	)

	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_webhook_deliveries_total",
			Help: "Total outgoing webhook delivery attempts",
		},
		[]string{"outcome"},
	)
)
