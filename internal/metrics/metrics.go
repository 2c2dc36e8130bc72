package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// Polling metrics
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_polls_total",
			Help: "Total number of upstream polls",
		},
		[]string{"endpoint", "result"}, // result: ok, failed
	)

	PollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_poll_duration_seconds",
			Help:    "Upstream poll latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"endpoint"},
	)

	RecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_records_dropped_total",
			Help: "Telemetry records dropped during normalization",
		},
		[]string{"endpoint"},
	)

	LastReading = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dashboard_last_reading",
			Help: "Most recent value per metric",
		},
		[]string{"metric"},
	)

	// ConnectionStatus is 1 for the current status label and 0 for the others.
	ConnectionStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dashboard_connection_status",
			Help: "Polling connection status",
		},
		[]string{"status"},
	)

	ReconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dashboard_reconnect_attempts_total",
			Help: "Total number of reconnect attempts",
		},
	)

	// Alert metrics
	AlertsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_alerts_raised_total",
			Help: "Total number of alerts recorded",
		},
		[]string{"severity"},
	)

	AlertsResolved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dashboard_alerts_resolved_total",
			Help: "Total number of alerts resolved",
		},
	)

	AlertsForwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_alerts_forwarded_total",
			Help: "Alerts forwarded to downstream sinks",
		},
		[]string{"sink", "result"},
	)

	// Valve metrics
	ValveCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_valve_commands_total",
			Help: "Valve toggle commands issued",
		},
		[]string{"status", "result"},
	)
)
