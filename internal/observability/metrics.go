package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	connects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "uplink",
			Subsystem: "conn",
			Name:      "connects_total",
			Help:      "Successful connection attempts.",
		},
	)
	disconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "uplink",
			Subsystem: "conn",
			Name:      "disconnects_total",
			Help:      "Connection teardowns from any cause.",
		},
	)
	forcedReconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uplink",
			Subsystem: "conn",
			Name:      "forced_reconnects_total",
			Help:      "Reconnects forced above the socket layer.",
		},
		[]string{"reason"},
	)
	messagesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "uplink",
			Subsystem: "channel",
			Name:      "messages_sent_total",
			Help:      "Messages written to the channel.",
		},
	)
	messagesReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "uplink",
			Subsystem: "channel",
			Name:      "messages_received_total",
			Help:      "Messages decoded from the channel.",
		},
	)
	sendErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "uplink",
			Subsystem: "channel",
			Name:      "send_errors_total",
			Help:      "Messages that failed to send.",
		},
	)
	fileTransfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uplink",
			Subsystem: "filetransfer",
			Name:      "transfers_total",
			Help:      "File transfer terminal outcomes.",
		},
		[]string{"result"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uplink",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "uplink",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			connects, disconnects, forcedReconnects,
			messagesSent, messagesReceived, sendErrors,
			fileTransfers, httpRequests, httpDuration,
		)
	})
}

func RecordConnect() {
	RegisterMetrics()
	connects.Inc()
}

func RecordDisconnect() {
	RegisterMetrics()
	disconnects.Inc()
}

func RecordForcedReconnect(reason string) {
	RegisterMetrics()
	forcedReconnects.WithLabelValues(reason).Inc()
}

func RecordMessageSent() {
	RegisterMetrics()
	messagesSent.Inc()
}

func RecordMessageReceived() {
	RegisterMetrics()
	messagesReceived.Inc()
}

func RecordSendError() {
	RegisterMetrics()
	sendErrors.Inc()
}

func RecordFileTransfer(result string) {
	RegisterMetrics()
	fileTransfers.WithLabelValues(result).Inc()
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
