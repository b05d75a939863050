package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wsocket",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wsocket",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	sessionEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wsocket",
			Subsystem: "session",
			Name:      "events_total",
			Help:      "Session events delivered to listeners.",
		},
		[]string{"node", "event"},
	)
	sessionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wsocket",
			Subsystem: "session",
			Name:      "errors_total",
			Help:      "Session errors by error code.",
		},
		[]string{"node", "code"},
	)
	sessionCloses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wsocket",
			Subsystem: "session",
			Name:      "closes_total",
			Help:      "Close frames received by close code.",
		},
		[]string{"node", "code"},
	)
	messageBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wsocket",
			Subsystem: "session",
			Name:      "message_bytes",
			Help:      "Decoded payload size of inbound text and binary frames.",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 10),
		},
		[]string{"node", "kind"},
	)
	connsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "wsocket",
			Subsystem: "transport",
			Name:      "connections_active",
			Help:      "Open transport connections.",
		},
		[]string{"node"},
	)
	connsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wsocket",
			Subsystem: "transport",
			Name:      "connections_total",
			Help:      "Accepted transport connections.",
		},
		[]string{"node"},
	)
	connFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wsocket",
			Subsystem: "transport",
			Name:      "frames_total",
			Help:      "Frames moved by closed connections.",
		},
		[]string{"node", "direction"},
	)
	connBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wsocket",
			Subsystem: "transport",
			Name:      "bytes_total",
			Help:      "Wire bytes moved by closed connections, headers included.",
		},
		[]string{"node", "direction"},
	)
	connDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wsocket",
			Subsystem: "transport",
			Name:      "connection_duration_seconds",
			Help:      "Lifetime of closed connections in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		},
		[]string{"node"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			sessionEvents, sessionErrors, sessionCloses, messageBytes,
			connsActive, connsTotal, connFrames, connBytes, connDuration,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
