package pipeline

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/askiada/go-labflow/pkg/pipeline/measure"
)

// ExecutorOption configures an Executor.
type ExecutorOption func(e *Executor)

// WithLogger sets the structured logger every event is logged to.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTracer opens one span per run and one per node.
func WithTracer(tracer trace.Tracer) ExecutorOption {
	return func(e *Executor) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithMeasure records the duration of every node run.
func WithMeasure(msr measure.Measure) ExecutorOption {
	return func(e *Executor) {
		e.measure = msr
	}
}

// WithListener adds a listener receiving every event of a run.
func WithListener(listener Listener) ExecutorOption {
	return func(e *Executor) {
		if listener != nil {
			e.listeners = append(e.listeners, listener)
		}
	}
}
