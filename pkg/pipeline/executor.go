package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/askiada/go-labflow/pkg/pipeline/measure"
	"github.com/askiada/go-labflow/pkg/pipeline/model"
)

// NodeRunner implements the behaviour of one node type.
// Run reads inputs from ec, writes outputs to ec and returns an error on any unrecoverable condition.
// Long running work must watch ec.Cancelled or ctx and return ErrCancelled when asked to stop.
type NodeRunner interface {
	Run(ctx context.Context, node *model.Node, p *Pipeline, ec *ExecutionContext) error
}

// RunnerFunc adapts a function to NodeRunner.
type RunnerFunc func(ctx context.Context, node *model.Node, p *Pipeline, ec *ExecutionContext) error

func (f RunnerFunc) Run(ctx context.Context, node *model.Node, p *Pipeline, ec *ExecutionContext) error {
	return f(ctx, node, p, ec)
}

// ScopeAware runners receive the scopes of the current run before any node runs.
type ScopeAware interface {
	SetScopeResolver(resolver *ScopeResolver)
}

// SubgraphExecutor runs a list of nodes with the same dispatch rules as a top level run.
type SubgraphExecutor interface {
	ExecuteSubgraph(ctx context.Context, nodeIDs []string, ec *ExecutionContext) error
}

// ExecutorAware runners receive the executor so they can run their own sub-graph.
type ExecutorAware interface {
	SetExecutor(exec SubgraphExecutor)
}

// Executor runs one pipeline at a time, one node at a time, in topological order.
type Executor struct {
	logger    *slog.Logger
	tracer    trace.Tracer
	measure   measure.Measure
	listeners []Listener

	mu      sync.RWMutex
	runners map[model.NodeType]NodeRunner

	running atomic.Bool
	state   atomic.Int32
}

// NewExecutor creates an executor with no registered runner.
func NewExecutor(opts ...ExecutorOption) *Executor {
	exec := &Executor{
		logger:  slog.Default(),
		tracer:  noop.NewTracerProvider().Tracer("labflow"),
		runners: make(map[model.NodeType]NodeRunner),
	}

	for _, opt := range opts {
		opt(exec)
	}

	return exec
}

// RegisterRunner associates a node type with its runner, replacing any previous one.
func (e *Executor) RegisterRunner(nodeType model.NodeType, runner NodeRunner) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.runners[nodeType] = runner
}

func (e *Executor) runner(nodeType model.NodeType) (NodeRunner, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	runner, ok := e.runners[nodeType]

	return runner, ok
}

// State returns the state of the current or last run.
func (e *Executor) State() RunState {
	return RunState(e.state.Load())
}

func (e *Executor) setState(state RunState) {
	e.state.Store(int32(state))
}

// Run executes p synchronously. Cancelling ctx is equivalent to ec.RequestCancel.
// The returned error satisfies IsCancellation when the run was stopped on request.
func (e *Executor) Run(ctx context.Context, p *Pipeline, ec *ExecutionContext) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer e.running.Store(false)

	return e.run(ctx, p, ec)
}

// RunHandle tracks a run started in the background.
type RunHandle struct {
	group *errgroup.Group
	ec    *ExecutionContext
}

// Wait blocks until the run reaches a terminal state and returns its error.
func (h *RunHandle) Wait() error {
	return h.group.Wait()
}

// Cancel requests the run to stop.
func (h *RunHandle) Cancel() {
	h.ec.RequestCancel()
}

// Start executes p on a dedicated goroutine.
func (e *Executor) Start(ctx context.Context, p *Pipeline, ec *ExecutionContext) (*RunHandle, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}

	group := &errgroup.Group{}
	group.Go(func() error {
		defer e.running.Store(false)

		return e.run(ctx, p, ec)
	})

	return &RunHandle{group: group, ec: ec}, nil
}

func (e *Executor) run(ctx context.Context, p *Pipeline, ec *ExecutionContext) error {
	runID := uuid.NewString()

	err := ec.bind(p, runID, func(event Event) { e.dispatch(ctx, runID, event) })
	if err != nil {
		return errors.Wrap(err, "unable to start run")
	}
	emit := ec.publish

	ctx, span := e.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("pipeline.name", p.Name),
		attribute.String("pipeline.run_id", runID),
	))
	defer span.End()

	if ctx.Err() != nil {
		ec.RequestCancel()
	}
	stop := context.AfterFunc(ctx, ec.RequestCancel)
	defer stop()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-ec.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	e.setState(StateValidating)

	if problems := p.Validate(); len(problems) > 0 {
		return e.fail(span, emit, &ValidationError{Problems: problems})
	}

	e.setState(StateResolvingScopes)

	resolver, err := NewScopeResolver(p)
	if err != nil {
		return e.fail(span, emit, err)
	}

	e.prepareRunners(resolver)

	order := resolver.TopLevelNodeIDs()
	e.setState(StateRunning)
	e.logger.InfoContext(ctx, "Starting pipeline run",
		"pipeline", p.Name,
		"run_id", runID,
		"node_count", len(order),
	)

	for i, id := range order {
		if ec.Cancelled() {
			return e.cancelled(span, emit, errors.Wrapf(ErrCancelled, "stopped before node %q", id))
		}

		err := e.runNode(runCtx, p, id, ec)
		if err != nil {
			if IsCancellation(err) {
				return e.cancelled(span, emit, err)
			}

			return e.fail(span, emit, err)
		}

		emit(Event{Kind: EventPipelineProgress, Current: i + 1, Total: len(order)})
	}

	e.setState(StateCompleted)
	emit(Event{Kind: EventPipelineCompleted})

	return nil
}

func (e *Executor) prepareRunners(resolver *ScopeResolver) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, runner := range e.runners {
		if aware, ok := runner.(ScopeAware); ok {
			aware.SetScopeResolver(resolver)
		}
		if aware, ok := runner.(ExecutorAware); ok {
			aware.SetExecutor(e)
		}
	}
}

func (e *Executor) fail(span trace.Span, emit func(Event), err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	e.setState(StateFailed)
	emit(Event{Kind: EventPipelineError, Message: err.Error()})

	return err
}

func (e *Executor) cancelled(span trace.Span, emit func(Event), err error) error {
	span.SetAttributes(attribute.Bool("pipeline.cancelled", true))
	e.setState(StateCancelled)
	emit(Event{Kind: EventPipelineCancelled, Message: err.Error()})

	return err
}

// ExecuteSubgraph runs nodeIDs in order within the run ec is bound to.
// It stops at the first error, and before any node once cancellation is requested.
func (e *Executor) ExecuteSubgraph(ctx context.Context, nodeIDs []string, ec *ExecutionContext) error {
	p := ec.Pipeline()
	if p == nil {
		return errors.New("execution context is not bound to a run")
	}

	for _, id := range nodeIDs {
		if ec.Cancelled() {
			return errors.Wrapf(ErrCancelled, "stopped before node %q", id)
		}

		err := e.runNode(ctx, p, id, ec)
		if err != nil {
			return err
		}
	}

	return nil
}

func (e *Executor) runNode(ctx context.Context, p *Pipeline, id string, ec *ExecutionContext) error {
	node, ok := p.Node(id)
	if !ok {
		return errors.Wrapf(ErrNodeNotFound, "node %q", id)
	}

	emit := ec.publish

	ctx, span := e.tracer.Start(ctx, "pipeline.node", trace.WithAttributes(
		attribute.String("node.id", node.ID),
		attribute.String("node.type", string(node.Type)),
	))
	defer span.End()

	emit(Event{Kind: EventNodeStarted, NodeID: node.ID, NodeName: node.Label()})

	runner, ok := e.runner(node.Type)
	if !ok {
		err := &MissingRunnerError{NodeID: node.ID, NodeType: node.Type}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		emit(Event{Kind: EventNodeFailed, NodeID: node.ID, NodeName: node.Label(), Message: err.Error()})

		return err
	}

	start := time.Now()
	err := invoke(ctx, runner, node, p, ec)
	if e.measure != nil {
		mt := e.measure.AddMetric(node.ID, string(node.Type))
		mt.AddDuration(time.Since(start))
		mt.SetTotalDuration(ec.Elapsed())
	}

	if err != nil {
		if errors.Is(err, ErrCancelled) || ec.Cancelled() {
			if !errors.Is(err, ErrCancelled) {
				err = errors.Wrapf(ErrCancelled, "node %q interrupted: %v", node.ID, err)
			}
			span.SetAttributes(attribute.Bool("node.cancelled", true))

			return err
		}

		nodeErr := &NodeExecutionError{NodeID: node.ID, NodeName: node.Label(), NodeType: node.Type, Err: err}
		span.RecordError(nodeErr)
		span.SetStatus(codes.Error, nodeErr.Error())
		emit(Event{Kind: EventNodeFailed, NodeID: node.ID, NodeName: node.Label(), Message: nodeErr.Error()})

		return nodeErr
	}

	emit(Event{Kind: EventNodeCompleted, NodeID: node.ID, NodeName: node.Label()})

	return nil
}

func invoke(ctx context.Context, runner NodeRunner, node *model.Node, p *Pipeline, ec *ExecutionContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("runner panicked: %v", r)
		}
	}()

	return runner.Run(ctx, node, p, ec)
}

// dispatch stamps, logs and forwards an event to the listeners.
func (e *Executor) dispatch(ctx context.Context, runID string, event Event) {
	event.RunID = runID
	event.Time = time.Now()

	attrs := []any{"event", string(event.Kind), "run_id", runID}
	if event.NodeID != "" {
		attrs = append(attrs, "node_id", event.NodeID, "node_name", event.NodeName)
	}

	switch event.Kind {
	case EventNodeFailed, EventPipelineError:
		e.logger.ErrorContext(ctx, event.Message, attrs...)
	case EventPipelineCancelled:
		e.logger.WarnContext(ctx, "Pipeline run stopped by user", append(attrs, "reason", event.Message)...)
	case EventPipelineProgress, EventForEachIteration:
		e.logger.DebugContext(ctx, "Progress", append(attrs, "current", event.Current, "total", event.Total)...)
	case EventLogMessage:
		e.logger.InfoContext(ctx, event.Message, attrs...)
	case EventPipelineCompleted:
		e.logger.InfoContext(ctx, "Pipeline run completed", attrs...)
	default:
		e.logger.DebugContext(ctx, string(event.Kind), attrs...)
	}

	for _, listener := range e.listeners {
		listener(event)
	}
}
