package runner

import (
	"context"

	"github.com/expr-lang/expr"
	"github.com/pkg/errors"

	"github.com/askiada/go-labflow/pkg/pipeline"
	"github.com/askiada/go-labflow/pkg/pipeline/model"
)

// Conditional evaluates a boolean expression against its input and runs the matching branch.
//
// The expression sees the input as value and the node config as config, e.g. `value > 3` or
// `len(value) >= config.min_objects`. The input is forwarded on the port of the branch taken.
type Conditional struct {
	scope
}

// NewConditional returns a Conditional runner.
func NewConditional() *Conditional { return &Conditional{} }

// Run evaluates the condition and forwards the input to the matching branch.
func (r *Conditional) Run(ctx context.Context, node *model.Node, _ *pipeline.Pipeline, ec *pipeline.ExecutionContext) error {
	err := r.ready()
	if err != nil {
		return err
	}

	expression, err := node.Config.Text("expression", "")
	if err != nil {
		return err
	}
	if expression == "" {
		return errors.New("config expression is required")
	}

	value, _ := inputOrConfig(ec, node, "value", "value")

	result, err := Evaluate(expression, value, node.Config)
	if err != nil {
		return err
	}

	branch := pipeline.BranchFalse
	if result {
		branch = pipeline.BranchTrue
	}

	setOutput(ec, node, "result", model.Bool(result))
	setOutput(ec, node, branch.Port(), value)
	ec.Log(node.ID, "%s: %q is %t, running %s branch", node.Label(), expression, result, branch)

	nodes, err := r.resolver.BranchSorted(node.ID, branch)
	if err != nil {
		return errors.Wrap(err, "unable to resolve branch")
	}

	err = r.exec.ExecuteSubgraph(ctx, nodes, ec)
	if err != nil {
		return errors.Wrapf(err, "%s branch", branch)
	}

	return nil
}

// Evaluate runs a boolean expression with value and config in scope.
func Evaluate(expression string, value any, config model.Config) (bool, error) {
	cfg := make(map[string]any, len(config))
	for k, v := range config {
		cfg[k] = v.Interface()
	}

	env := map[string]any{
		"value":  native(value),
		"config": cfg,
	}

	program, err := expr.Compile(expression, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, errors.Wrapf(err, "unable to compile expression %q", expression)
	}

	output, err := expr.Run(program, env)
	if err != nil {
		return false, errors.Wrapf(err, "unable to evaluate expression %q", expression)
	}

	result, ok := output.(bool)
	if !ok {
		return false, errors.Errorf("expression %q returned %T, expected bool", expression, output)
	}

	return result, nil
}

var (
	_ pipeline.NodeRunner    = (*Conditional)(nil)
	_ pipeline.ScopeAware    = (*Conditional)(nil)
	_ pipeline.ExecutorAware = (*Conditional)(nil)
)
