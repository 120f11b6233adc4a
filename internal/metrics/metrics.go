// Package metrics holds the façade's internal prometheus gauges, owned by
// a private registry rather than the global one (spec.md §6.4 stats(); see
// SPEC_FULL.md §4.4). The core never starts an HTTP listener for these —
// a host process wanting /metrics pulls db.MetricsRegistry() and wires its
// own handler.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Set is one façade instance's metric collectors.
type Set struct {
	Registry    *prometheus.Registry
	NodesTotal  prometheus.Gauge
	NodesByType *prometheus.GaugeVec
}

// New builds a fresh, unregistered-with-anything-global metric set.
func New() *Set {
	reg := prometheus.NewRegistry()

	nodesTotal := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "peerdb_nodes_total",
		Help: "Total number of nodes currently held by this peer's storage backend.",
	})
	nodesByType := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "peerdb_nodes_by_type",
		Help: "Number of nodes currently held, broken down by node type.",
	}, []string{"type"})

	reg.MustRegister(nodesTotal, nodesByType)

	return &Set{
		Registry:    reg,
		NodesTotal:  nodesTotal,
		NodesByType: nodesByType,
	}
}

// Observe updates the gauges from a type->count breakdown, resetting
// NodesByType first so a type that dropped to zero doesn't linger.
func (s *Set) Observe(total int, byType map[string]int) {
	s.NodesTotal.Set(float64(total))
	s.NodesByType.Reset()
	for t, count := range byType {
		s.NodesByType.WithLabelValues(t).Set(float64(count))
	}
}
