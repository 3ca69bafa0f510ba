package metrics

import (
	"net/http"

	"session-tracker/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "session_tracker"

// StatsFunc reports the current tracker counts. It is called on scrape.
type StatsFunc func() models.Stats

type Metrics struct {
	registry *prometheus.Registry
	events   *prometheus.CounterVec
	messages *prometheus.CounterVec
}

func New(stats StatsFunc) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Session events committed, by type.",
		}, []string{"type"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Inbound WebSocket messages, by type and outcome.",
		}, []string{"type", "outcome"}),
	}

	gauge := func(name, help string, pick func(models.Stats) int) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(pick(stats())) })
	}

	m.registry.MustRegister(
		m.events,
		m.messages,
		gauge("active_sessions", "Sessions currently active.", func(s models.Stats) int { return s.ActiveSessions }),
		gauge("active_users", "Participants currently active.", func(s models.Stats) int { return s.ActiveUsers }),
		gauge("connections", "Open WebSocket connections.", func(s models.Stats) int { return s.TotalConnections }),
		gauge("sessions", "Sessions ever created.", func(s models.Stats) int { return s.TotalSessions }),
		gauge("users", "Participants ever seen.", func(s models.Stats) int { return s.TotalUsers }),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handle implements events.Sink.
func (m *Metrics) Handle(ev models.SessionEvent) {
	m.events.WithLabelValues(string(ev.Type)).Inc()
}

// ObserveMessage counts one inbound message. outcome is "ok" or "error".
func (m *Metrics) ObserveMessage(msgType models.MessageType, outcome string) {
	m.messages.WithLabelValues(string(msgType), outcome).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
