package measure

import "time"

// Measure collects one metric per node.
type Measure interface {
	// AddMetric returns the metric of a node, creating it on first use.
	AddMetric(nodeID, nodeType string) Metric
	AllMetrics() map[string]Metric
}

// Metric accumulates the runs of one node.
type Metric interface {
	AddDuration(elapsed time.Duration)
	AVGDuration() time.Duration
	Count() int64
	// SetTotalDuration records the run time elapsed when the node last finished.
	SetTotalDuration(total time.Duration)
	GetTotalDuration() time.Duration
}
