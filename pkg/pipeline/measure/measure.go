package measure

import (
	"sync"
)

// DefaultMeasure keeps metrics in memory.
type DefaultMeasure struct {
	mu    sync.Mutex
	Nodes map[string]Metric
}

// NewDefaultMeasure creates an empty measure.
func NewDefaultMeasure() *DefaultMeasure {
	return &DefaultMeasure{
		Nodes: make(map[string]Metric),
	}
}

func (m *DefaultMeasure) AddMetric(nodeID, nodeType string) Metric {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mt, ok := m.Nodes[nodeID]; ok {
		return mt
	}

	mt := &DefaultMetric{
		mu:       &sync.Mutex{},
		NodeType: nodeType,
	}
	m.Nodes[nodeID] = mt

	return mt
}

// GetMetric returns the metric of a node, nil when it never ran.
func (m *DefaultMeasure) GetMetric(nodeID string) Metric {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.Nodes[nodeID]
}

// AllMetrics returns a snapshot of the metrics keyed by node id.
func (m *DefaultMeasure) AllMetrics() map[string]Metric {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Metric, len(m.Nodes))
	for id, mt := range m.Nodes {
		out[id] = mt
	}

	return out
}

var _ Measure = (*DefaultMeasure)(nil)
