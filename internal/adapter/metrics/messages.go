package metrics

import "github.com/prometheus/client_golang/prometheus"

// MessageMetrics counts message operations by outcome.
type MessageMetrics struct {
	Operations *prometheus.CounterVec
}

func NewMessageMetrics(reg prometheus.Registerer) *MessageMetrics {
	m := &MessageMetrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "message_operations_total",
			Help:      "Total message operations, by operation and result.",
		}, []string{"operation", "result"}),
	}

	reg.MustRegister(m.Operations)
	return m
}

// Observe records one operation. result is "ok" when err is nil and "error" otherwise.
func (m *MessageMetrics) Observe(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Operations.WithLabelValues(operation, result).Inc()
}
