package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Set holds the connection manager's Prometheus collectors. A nil *Set
// is valid everywhere it is accepted and records nothing.
type Set struct {
	ConnectAttempts     prometheus.Counter
	ReconnectsScheduled prometheus.Counter
	RetriesExhausted    prometheus.Counter
	MessagesSent        prometheus.Counter
	MessagesReceived    prometheus.Counter
	MessagesQueued      prometheus.Counter
	MessagesDropped     prometheus.Counter
	SendErrors          prometheus.Counter
	QueueDepth          prometheus.Gauge
	ConnectionState     prometheus.Gauge
}

// New creates and registers the metric set. A nil registry uses the
// default registerer.
func New(reg prometheus.Registerer) *Set {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Set{
		ConnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relaylink",
			Name:      "connect_attempts_total",
			Help:      "Connection attempts, including reconnects.",
		}),
		ReconnectsScheduled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relaylink",
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnection timers scheduled after a failure.",
		}),
		RetriesExhausted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relaylink",
			Name:      "retries_exhausted_total",
			Help:      "Times the automatic reconnect cycle gave up.",
		}),
		MessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relaylink",
			Name:      "messages_sent_total",
			Help:      "Frames transmitted on a live connection.",
		}),
		MessagesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relaylink",
			Name:      "messages_received_total",
			Help:      "Frames received and dispatched to listeners.",
		}),
		MessagesQueued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relaylink",
			Name:      "messages_queued_total",
			Help:      "Payloads buffered while disconnected.",
		}),
		MessagesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relaylink",
			Name:      "messages_dropped_total",
			Help:      "Queued payloads evicted by the drop-oldest policy.",
		}),
		SendErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relaylink",
			Name:      "send_errors_total",
			Help:      "Transmission failures on a live connection.",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "relaylink",
			Name:      "queue_depth",
			Help:      "Current outbound queue depth.",
		}),
		ConnectionState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "relaylink",
			Name:      "connection_state",
			Help:      "Connection state (0=idle 1=connecting 2=open 3=closing 4=closed).",
		}),
	}
}
