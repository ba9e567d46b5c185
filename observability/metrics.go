// Package observability exposes the engine's synchronization counters.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments the engine and its workers
// update. Register once per process.
type Metrics struct {
	Reconciliations   *prometheus.CounterVec
	MessagesAdded     prometheus.Counter
	OptimisticExpired prometheus.Counter
	Polls             *prometheus.CounterVec
	PollFailures      *prometheus.CounterVec
	TransportMode     prometheus.Gauge
	Notifications     prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		Reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rentchat",
			Name:      "reconciliations_total",
			Help:      "Timeline reconciliations by source.",
		}, []string{"source"}),
		MessagesAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rentchat",
			Name:      "messages_added_total",
			Help:      "Messages newly added to a timeline.",
		}),
		OptimisticExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rentchat",
			Name:      "optimistic_expired_total",
			Help:      "Optimistic messages pruned without a server copy.",
		}),
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rentchat",
			Name:      "polls_total",
			Help:      "Poll ticks by kind.",
		}, []string{"kind"}),
		PollFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rentchat",
			Name:      "poll_failures_total",
			Help:      "Swallowed poll failures by kind.",
		}, []string{"kind"}),
		TransportMode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rentchat",
			Name:      "transport_mode",
			Help:      "0 disconnected, 1 live, 2 degraded.",
		}),
		Notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rentchat",
			Name:      "notifications_total",
			Help:      "User-visible notifications raised.",
		}),
	}
}

// Register attaches all instruments to a registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.Reconciliations, m.MessagesAdded, m.OptimisticExpired,
		m.Polls, m.PollFailures, m.TransportMode, m.Notifications,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
