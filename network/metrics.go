package network

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/berrylands/noflo/metric"
)

// networkMetrics holds Prometheus metrics for coordinator operations
type networkMetrics struct {
	events           *prometheus.CounterVec // By event kind
	nodesAdded       prometheus.Counter
	socketsAdded     prometheus.Counter
	initialsSent     prometheus.Counter
	processesStarted prometheus.Counter
	running          prometheus.Gauge
}

// newNetworkMetrics creates and registers coordinator metrics with the
// provided registry. A nil registry disables metrics.
func newNetworkMetrics(registry *metric.Registry) (*networkMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &networkMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "noflo",
			Subsystem: "network",
			Name:      "events_total",
			Help:      "Total number of coordinator events emitted",
		}, []string{"kind"}),

		nodesAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "noflo",
			Subsystem: "network",
			Name:      "nodes_added_total",
			Help:      "Total number of processes instantiated",
		}),

		socketsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "noflo",
			Subsystem: "network",
			Name:      "sockets_added_total",
			Help:      "Total number of sockets attached",
		}),

		initialsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "noflo",
			Subsystem: "network",
			Name:      "initials_sent_total",
			Help:      "Total number of initial packets posted",
		}),

		processesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "noflo",
			Subsystem: "network",
			Name:      "processes_started_total",
			Help:      "Total number of component start calls",
		}),

		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "noflo",
			Subsystem: "network",
			Name:      "running",
			Help:      "Whether the network is currently started (0 or 1)",
		}),
	}

	if err := registry.Register("network", "events", m.events); err != nil {
		return nil, err
	}
	if err := registry.Register("network", "nodes_added", m.nodesAdded); err != nil {
		return nil, err
	}
	if err := registry.Register("network", "sockets_added", m.socketsAdded); err != nil {
		return nil, err
	}
	if err := registry.Register("network", "initials_sent", m.initialsSent); err != nil {
		return nil, err
	}
	if err := registry.Register("network", "processes_started", m.processesStarted); err != nil {
		return nil, err
	}
	if err := registry.Register("network", "running", m.running); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *networkMetrics) recordEvent(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

func (m *networkMetrics) recordNodeAdded() {
	if m == nil {
		return
	}
	m.nodesAdded.Inc()
}

func (m *networkMetrics) recordSocketAdded() {
	if m == nil {
		return
	}
	m.socketsAdded.Inc()
}

func (m *networkMetrics) recordInitialSent() {
	if m == nil {
		return
	}
	m.initialsSent.Inc()
}

func (m *networkMetrics) recordProcessStarted() {
	if m == nil {
		return
	}
	m.processesStarted.Inc()
}

func (m *networkMetrics) recordStarted(started bool) {
	if m == nil {
		return
	}
	if started {
		m.running.Set(1)
		return
	}
	m.running.Set(0)
}
