package runner_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-labflow/pkg/pipeline"
	"github.com/askiada/go-labflow/pkg/pipeline/model"
	"github.com/askiada/go-labflow/pkg/pipeline/runner"
	"github.com/askiada/go-labflow/pkg/volume"
)

type fakeFacade struct {
	mu       sync.Mutex
	loaded   string
	started  bool
	stopped  bool
	polls    int
	statuses []runner.WorkflowStatus
}

func (f *fakeFacade) Load(_ context.Context, workflowFile string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.loaded = workflowFile

	return nil
}

func (f *fakeFacade) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.loaded == "" {
		return errors.New("no workflow loaded")
	}
	f.started = true

	return nil
}

// Status walks through statuses, repeating the last one.
func (f *fakeFacade) Status(context.Context) (runner.WorkflowStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.statuses) == 0 {
		return runner.WorkflowCompleted, nil
	}

	status := f.statuses[min(f.polls, len(f.statuses)-1)]
	f.polls++

	return status, nil
}

func (f *fakeFacade) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stopped = true

	return nil
}

func (f *fakeFacade) Stopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.stopped
}

type memStorage map[int]*volume.Volume

func (m memStorage) Channel(_ context.Context, channel int) (*volume.Volume, error) {
	vol, ok := m[channel]
	if !ok {
		return nil, errors.Errorf("channel %d not acquired", channel)
	}

	return vol, nil
}

// doubleStage maps voxel (z, y, x) to stage (2x, 2y, 2z).
type doubleStage struct{}

func (doubleStage) VoxelToStage(z, y, x float64) [3]float64 { return [3]float64{2 * x, 2 * y, 2 * z} }

func testOptions(t *testing.T) runner.Options {
	t.Helper()

	opts := runner.DefaultOptions()
	opts.WorkflowPollInterval = time.Millisecond
	opts.TempDir = t.TempDir()

	return opts
}

// collector records the values a SampleViewData node receives.
type collector struct {
	mu     sync.Mutex
	values map[string][]any
	onCall func(ec *pipeline.ExecutionContext, nodeID string, value any)
}

func (c *collector) Run(_ context.Context, node *model.Node, _ *pipeline.Pipeline, ec *pipeline.ExecutionContext) error {
	value, _ := ec.Input(node.ID, "data")

	c.mu.Lock()
	if c.values == nil {
		c.values = map[string][]any{}
	}
	c.values[node.ID] = append(c.values[node.ID], value)
	c.mu.Unlock()

	if c.onCall != nil {
		c.onCall(ec, node.ID, value)
	}
	ec.SetOutput(node.ID, "passthrough", model.PortTypeAny, value)

	return nil
}

func (c *collector) Values(nodeID string) []any {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]any(nil), c.values[nodeID]...)
}

type harness struct {
	exec *pipeline.Executor
	ec   *pipeline.ExecutionContext

	mu      sync.Mutex
	events  []pipeline.Event
	onEvent func(h *harness, event pipeline.Event)
}

func newHarness(t *testing.T, services map[string]any) *harness {
	t.Helper()

	h := &harness{ec: pipeline.NewExecutionContext(services)}
	h.exec = pipeline.NewExecutor(pipeline.WithListener(func(event pipeline.Event) {
		h.mu.Lock()
		h.events = append(h.events, event)
		onEvent := h.onEvent
		h.mu.Unlock()

		if onEvent != nil {
			onEvent(h, event)
		}
	}))
	runner.RegisterDefaults(h.exec, testOptions(t))

	return h
}

func (h *harness) run(p *pipeline.Pipeline) error {
	return h.exec.Run(context.Background(), p, h.ec)
}

func (h *harness) output(t *testing.T, nodeID, portID string) any {
	t.Helper()

	out, ok := h.ec.Output(nodeID, portID)
	require.True(t, ok, "no output on %s.%s", nodeID, portID)

	return out.Value
}

func (h *harness) messages(kind pipeline.EventKind) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []string
	for _, event := range h.events {
		if event.Kind == kind {
			out = append(out, event.Message)
		}
	}

	return out
}

func (h *harness) count(kind pipeline.EventKind) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, event := range h.events {
		if event.Kind == kind {
			n++
		}
	}

	return n
}

func addNode(t *testing.T, p *pipeline.Pipeline, id string, nodeType model.NodeType, config model.Config) *model.Node {
	t.Helper()

	node := model.NewNode(id, nodeType)
	for k, v := range config {
		node.Config[k] = v
	}
	require.NoError(t, p.AddNode(node))

	return node
}

func connect(t *testing.T, p *pipeline.Pipeline, src, srcPort, tgt, tgtPort string) {
	t.Helper()

	_, err := p.AddConnection(src, srcPort, tgt, tgtPort)
	require.NoError(t, err)
}

func ints(values ...int64) model.Value {
	out := make([]model.Value, len(values))
	for i, v := range values {
		out[i] = model.Int(v)
	}

	return model.List(out...)
}
