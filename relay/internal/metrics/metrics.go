package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Socket Mode metrics
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_relay_requests_total",
			Help: "Total number of Socket Mode requests received",
		},
		[]string{"type"},
	)

	AcksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_relay_acks_total",
			Help: "Total number of envelope acknowledgements written",
		},
		[]string{"status"},
	)

	ConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "telhawk_relay_connection_state",
			Help: "Socket Mode connection state (0 idle, 1 connecting, 2 connected, 3 disconnected)",
		},
	)

	ReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telhawk_relay_reconnects_total",
			Help: "Total number of Socket Mode reconnects",
		},
	)

	// Routing metrics
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_relay_events_total",
			Help: "Total number of normalized events by outcome",
		},
		[]string{"request_type", "outcome"},
	)

	HandlerPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telhawk_relay_handler_panics_total",
			Help: "Total number of recovered panics in request handlers",
		},
	)

	// Directory metrics
	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_relay_directory_lookups_total",
			Help: "Total number of directory lookups by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// Webhook metrics
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telhawk_relay_dispatch_total",
			Help: "Total number of webhook dispatch attempts by outcome",
		},
		[]string{"outcome"},
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "telhawk_relay_dispatch_duration_seconds",
			Help:    "Duration of webhook dispatch in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Mirror metrics
	MirrorErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telhawk_relay_mirror_errors_total",
			Help: "Total number of failed event mirror publishes",
		},
	)
)
