package runner

import (
	"context"

	"github.com/pkg/errors"

	"github.com/askiada/go-labflow/pkg/pipeline"
	"github.com/askiada/go-labflow/pkg/pipeline/model"
)

// scope is embedded by the runners owning a sub-graph.
type scope struct {
	resolver *pipeline.ScopeResolver
	exec     pipeline.SubgraphExecutor
}

func (s *scope) SetScopeResolver(resolver *pipeline.ScopeResolver) { s.resolver = resolver }

func (s *scope) SetExecutor(exec pipeline.SubgraphExecutor) { s.exec = exec }

func (s *scope) ready() error {
	if s.resolver == nil || s.exec == nil {
		return errors.New("runner used outside of an executor run")
	}

	return nil
}

// ForEach runs its body once per item, writing the item and its index before each iteration.
//
// Items come from the items input, else from the items config list, else from the count config (0..count-1).
type ForEach struct {
	scope
}

// NewForEach returns a ForEach runner.
func NewForEach() *ForEach { return &ForEach{} }

// Run executes the body once per item, stopping at the first failure or cancellation.
func (r *ForEach) Run(ctx context.Context, node *model.Node, _ *pipeline.Pipeline, ec *pipeline.ExecutionContext) error {
	err := r.ready()
	if err != nil {
		return err
	}

	items, err := r.items(ec, node)
	if err != nil {
		return err
	}

	body, err := r.resolver.BodySorted(node.ID)
	if err != nil {
		return errors.Wrap(err, "unable to resolve loop body")
	}

	for i, item := range items {
		if ec.Cancelled() {
			return cancelled(node)
		}

		ec.ReportIteration(node.ID, i+1, len(items))
		setOutput(ec, node, model.PortCurrentItem, item)
		setOutput(ec, node, model.PortIndex, model.Int(int64(i)))

		err := r.exec.ExecuteSubgraph(ctx, body, ec)
		if err != nil {
			return errors.Wrapf(err, "iteration %d", i)
		}
	}

	setOutput(ec, node, "count", model.Int(int64(len(items))))
	setOutput(ec, node, "done", model.Bool(true))

	return nil
}

func (r *ForEach) items(ec *pipeline.ExecutionContext, node *model.Node) ([]any, error) {
	if value, ok := ec.Input(node.ID, "items"); ok {
		items, err := itemsOf(value)

		return items, errors.Wrap(err, "input items")
	}

	if node.Config.Has("items") {
		list, err := node.Config.List("items")
		if err != nil {
			return nil, err
		}

		items := make([]any, len(list))
		for i, item := range list {
			items[i] = item
		}

		return items, nil
	}

	count, err := node.Config.Int("count", 0)
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, errors.Errorf("config count must not be negative, got %d", count)
	}

	items := make([]any, count)
	for i := range items {
		items[i] = model.Int(int64(i))
	}

	return items, nil
}

var (
	_ pipeline.NodeRunner    = (*ForEach)(nil)
	_ pipeline.ScopeAware    = (*ForEach)(nil)
	_ pipeline.ExecutorAware = (*ForEach)(nil)
)
