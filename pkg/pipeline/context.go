package pipeline

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/askiada/go-labflow/pkg/pipeline/model"
)

// Output is a value written by a node on one of its ports.
type Output struct {
	Type  model.PortType
	Value any
}

type slot struct {
	nodeID string
	portID string
}

// ExecutionContext holds the port values, the cancellation flag and the external services of a single run.
// It is safe for concurrent use: the run writes outputs while a caller reads them or requests cancellation.
type ExecutionContext struct {
	mu       sync.RWMutex
	outputs  map[slot]Output
	services map[string]any

	cancelled  atomic.Bool
	cancelOnce sync.Once
	done       chan struct{}

	bound    atomic.Bool
	pipeline *Pipeline
	runID    string
	started  time.Time
	emit     func(Event)
}

// NewExecutionContext creates a context exposing services to runners. The map is copied.
func NewExecutionContext(services map[string]any) *ExecutionContext {
	svc := make(map[string]any, len(services))
	for name, s := range services {
		svc[name] = s
	}

	return &ExecutionContext{
		outputs:  make(map[slot]Output),
		services: svc,
		done:     make(chan struct{}),
	}
}

// bind attaches the context to a run. A context serves a single run.
func (ec *ExecutionContext) bind(p *Pipeline, runID string, emit func(Event)) error {
	if !ec.bound.CompareAndSwap(false, true) {
		return ErrContextReused
	}

	ec.mu.Lock()
	defer ec.mu.Unlock()

	ec.pipeline = p
	ec.runID = runID
	ec.started = time.Now()
	ec.emit = emit

	return nil
}

// SetOutput stores value for a node output, replacing any previous value.
func (ec *ExecutionContext) SetOutput(nodeID, portID string, portType model.PortType, value any) {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	ec.outputs[slot{nodeID, portID}] = Output{Type: portType, Value: value}
}

// Output returns the value a node wrote on one of its output ports.
func (ec *ExecutionContext) Output(nodeID, portID string) (Output, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	out, ok := ec.outputs[slot{nodeID, portID}]

	return out, ok
}

// Input returns the upstream value connected to an input port.
// It reports false when the port is unconnected or the upstream node has not written its output.
func (ec *ExecutionContext) Input(nodeID, portID string) (any, bool) {
	ec.mu.RLock()
	p := ec.pipeline
	ec.mu.RUnlock()

	if p == nil {
		return nil, false
	}

	conn, ok := p.IncomingConnection(nodeID, portID)
	if !ok {
		return nil, false
	}

	out, ok := ec.Output(conn.SourceNodeID, conn.SourcePortID)
	if !ok {
		return nil, false
	}

	return out.Value, true
}

// RequestCancel asks the run to stop. It is safe to call from any goroutine, more than once.
func (ec *ExecutionContext) RequestCancel() {
	ec.cancelOnce.Do(func() {
		ec.cancelled.Store(true)
		close(ec.done)
	})
}

// Cancelled reports whether cancellation was requested. Once set it stays set.
func (ec *ExecutionContext) Cancelled() bool {
	return ec.cancelled.Load()
}

// Done is closed when cancellation is requested.
func (ec *ExecutionContext) Done() <-chan struct{} {
	return ec.done
}

// Service looks up an external service by name.
func (ec *ExecutionContext) Service(name string) (any, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	svc, ok := ec.services[name]

	return svc, ok
}

// Pipeline returns the pipeline the context is bound to, nil before the run starts.
func (ec *ExecutionContext) Pipeline() *Pipeline {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	return ec.pipeline
}

// RunID identifies the run the context is bound to.
func (ec *ExecutionContext) RunID() string {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	return ec.runID
}

// Elapsed is the time since the run started, zero before it is bound.
func (ec *ExecutionContext) Elapsed() time.Duration {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	if ec.started.IsZero() {
		return 0
	}

	return time.Since(ec.started)
}

// Log emits a log-message event for the given node.
func (ec *ExecutionContext) Log(nodeID, format string, args ...any) {
	ec.publish(Event{Kind: EventLogMessage, NodeID: nodeID, Message: fmt.Sprintf(format, args...)})
}

// ReportIteration emits a foreach-iteration event. current is 1-based.
func (ec *ExecutionContext) ReportIteration(nodeID string, current, total int) {
	ec.publish(Event{Kind: EventForEachIteration, NodeID: nodeID, Current: current, Total: total})
}

func (ec *ExecutionContext) publish(event Event) {
	ec.mu.RLock()
	emit := ec.emit
	ec.mu.RUnlock()

	if emit != nil {
		emit(event)
	}
}

// ServiceAs looks up a service and asserts its type.
func ServiceAs[T any](ec *ExecutionContext, name string) (T, bool) {
	var zero T

	svc, ok := ec.Service(name)
	if !ok {
		return zero, false
	}

	typed, ok := svc.(T)

	return typed, ok
}
