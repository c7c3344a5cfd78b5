package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics счётчики realtime слоя. Методы безопасны на nil получателе.
type Metrics struct {
	Connections *prometheus.GaugeVec
	Rooms       prometheus.Gauge
	Events      *prometheus.CounterVec
	Deliveries  *prometheus.CounterVec
	Enrichment  *prometheus.CounterVec
	Rejected    prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "teamchat",
			Name:      "connections",
			Help:      "Live websocket sessions.",
		}, []string{"kind"}),
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "teamchat",
			Name:      "rooms",
			Help:      "Rooms with at least one subscriber.",
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teamchat",
			Name:      "events_total",
			Help:      "Inbound events by type and outcome.",
		}, []string{"event", "outcome"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teamchat",
			Name:      "deliveries_total",
			Help:      "Outbound frames enqueued or dropped.",
		}, []string{"result"}),
		Enrichment: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teamchat",
			Name:      "enrichment_total",
			Help:      "Background embedding jobs by result.",
		}, []string{"result"}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "teamchat",
			Name:      "handshake_rejected_total",
			Help:      "Connections refused at authentication.",
		}),
	}

	reg.MustRegister(m.Connections, m.Rooms, m.Events, m.Deliveries, m.Enrichment, m.Rejected)
	return m
}

func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.Connections.WithLabelValues("sessions").Set(float64(n))
}

func (m *Metrics) SetUsers(n int) {
	if m == nil {
		return
	}
	m.Connections.WithLabelValues("users").Set(float64(n))
}

func (m *Metrics) SetRooms(n int) {
	if m == nil {
		return
	}
	m.Rooms.Set(float64(n))
}

func (m *Metrics) Event(event, outcome string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) Delivered(sent, dropped int) {
	if m == nil {
		return
	}
	if sent > 0 {
		m.Deliveries.WithLabelValues("sent").Add(float64(sent))
	}
	if dropped > 0 {
		m.Deliveries.WithLabelValues("dropped").Add(float64(dropped))
	}
}

func (m *Metrics) EnrichmentResult(result string) {
	if m == nil {
		return
	}
	m.Enrichment.WithLabelValues(result).Inc()
}

func (m *Metrics) HandshakeRejected() {
	if m == nil {
		return
	}
	m.Rejected.Inc()
}
