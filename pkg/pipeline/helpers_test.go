package pipeline_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/askiada/go-labflow/pkg/pipeline"
	"github.com/askiada/go-labflow/pkg/pipeline/model"
)

func addNode(t *testing.T, p *pipeline.Pipeline, id string, nodeType model.NodeType, config model.Config) *model.Node {
	t.Helper()

	node := model.NewNode(id, nodeType)
	for k, v := range config {
		node.Config[k] = v
	}
	require.NoError(t, p.AddNode(node))

	return node
}

// addStep adds a generic command node: one Any input, one Any output.
func addStep(t *testing.T, p *pipeline.Pipeline, id string) *model.Node {
	t.Helper()

	return addNode(t, p, id, model.NodeTypeExternalCommand, model.Config{"command": model.String("true")})
}

func connect(t *testing.T, p *pipeline.Pipeline, src, srcPort, tgt, tgtPort string) model.Connection {
	t.Helper()

	conn, err := p.AddConnection(src, srcPort, tgt, tgtPort)
	require.NoError(t, err)

	return conn
}

// chain adds steps linked output to input, in the given order.
func chain(t *testing.T, p *pipeline.Pipeline, ids ...string) {
	t.Helper()

	for i, id := range ids {
		addStep(t, p, id)
		if i > 0 {
			connect(t, p, ids[i-1], "output", id, "input")
		}
	}
}

type recorder struct {
	mu     sync.Mutex
	calls  []string
	events []pipeline.Event
}

func (r *recorder) record(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, id)
}

func (r *recorder) listen(event pipeline.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.calls...)
}

// Nodes returns the node ids of the events of the given kind.
func (r *recorder) Nodes(kind pipeline.EventKind) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for _, event := range r.events {
		if event.Kind == kind {
			out = append(out, event.NodeID)
		}
	}

	return out
}

func (r *recorder) Kinds() []pipeline.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]pipeline.EventKind, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, event.Kind)
	}

	return out
}

// runner records every call and returns the error registered for the node, if any.
func (r *recorder) runner(failures map[string]error) pipeline.RunnerFunc {
	return func(_ context.Context, node *model.Node, _ *pipeline.Pipeline, ec *pipeline.ExecutionContext) error {
		r.record(node.ID)
		if err, ok := failures[node.ID]; ok {
			return err
		}
		ec.SetOutput(node.ID, "output", model.PortTypeAny, node.ID)

		return nil
	}
}

func newExecutor(r *recorder, failures map[string]error) *pipeline.Executor {
	exec := pipeline.NewExecutor(pipeline.WithListener(r.listen))
	exec.RegisterRunner(model.NodeTypeExternalCommand, r.runner(failures))

	return exec
}
