package core

import "github.com/prometheus/client_golang/prometheus"

const metricsNamespace = "randomchat"

// Metrics exposes relay state to Prometheus. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	connections      prometheus.Gauge
	waiting          prometheus.Gauge
	pairs            prometheus.Gauge
	pairsCreated     prometheus.Counter
	forwarded        prometheus.Counter
	protocolErrors   prometheus.Counter
	deliveryFailures *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connections",
			Help:      "Registered websocket sessions.",
		}),
		waiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "waiting_sessions",
			Help:      "Sessions queued for a partner.",
		}),
		pairs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_pairs",
			Help:      "Currently paired conversations.",
		}),
		pairsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pairs_created_total",
			Help:      "Pairs formed by the matcher.",
		}),
		forwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_forwarded_total",
			Help:      "Envelopes relayed to a partner.",
		}),
		protocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "protocol_errors_total",
			Help:      "Inbound frames dropped as undecodable.",
		}),
		deliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "delivery_failures_total",
			Help:      "Outbound envelopes that could not be queued.",
		}, []string{"type"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.connections,
			m.waiting,
			m.pairs,
			m.pairsCreated,
			m.forwarded,
			m.protocolErrors,
			m.deliveryFailures,
		)
	}
	return m
}

func (m *Metrics) observeState(connections, waiting, pairs int) {
	if m == nil {
		return
	}
	m.connections.Set(float64(connections))
	m.waiting.Set(float64(waiting))
	m.pairs.Set(float64(pairs))
}

func (m *Metrics) pairCreated() {
	if m == nil {
		return
	}
	m.pairsCreated.Inc()
}

func (m *Metrics) messageForwarded() {
	if m == nil {
		return
	}
	m.forwarded.Inc()
}

func (m *Metrics) protocolError() {
	if m == nil {
		return
	}
	m.protocolErrors.Inc()
}

func (m *Metrics) deliveryFailed(t MessageType) {
	if m == nil {
		return
	}
	m.deliveryFailures.WithLabelValues(string(t)).Inc()
}
