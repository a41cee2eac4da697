package metrics

import "github.com/prometheus/client_golang/prometheus"

// PushMetrics holds Prometheus metrics for the real-time push subsystem.
type PushMetrics struct {
	ActiveConnections  prometheus.Gauge
	ConnectionsTotal   prometheus.Counter
	HandshakeRejected  *prometheus.CounterVec
	FramesDelivered    prometheus.Counter
	SendersDropped     prometheus.Counter
	SessionDuration    prometheus.Histogram
	DisconnectsByCause *prometheus.CounterVec
}

func NewPushMetrics(reg prometheus.Registerer) *PushMetrics {
	m := &PushMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "active_connections",
			Help:      "Number of open push connections on this instance.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "connections_total",
			Help:      "Total number of push connections accepted.",
		}),
		HandshakeRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "handshake_rejected_total",
			Help:      "Push handshakes refused before upgrade, by reason.",
		}, []string{"reason"}),
		FramesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "frames_delivered_total",
			Help:      "Payloads enqueued to a live connection.",
		}),
		SendersDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "senders_dropped_total",
			Help:      "Senders removed from the registry because their connection was gone.",
		}),
		SessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "session_duration_seconds",
			Help:      "Lifetime of push connections.",
			Buckets:   []float64{1, 10, 60, 300, 1800, 3600, 14400},
		}),
		DisconnectsByCause: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "disconnects_total",
			Help:      "Push connections closed, by which side ended first.",
		}, []string{"cause"}),
	}

	reg.MustRegister(m.ActiveConnections, m.ConnectionsTotal, m.HandshakeRejected, m.FramesDelivered,
		m.SendersDropped, m.SessionDuration, m.DisconnectsByCause)
	return m
}
