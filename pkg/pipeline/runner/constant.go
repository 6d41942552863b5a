package runner

import (
	"context"

	"github.com/pkg/errors"

	"github.com/askiada/go-labflow/pkg/pipeline"
	"github.com/askiada/go-labflow/pkg/pipeline/model"
)

// Constant emits its configured value.
type Constant struct{}

// NewConstant returns a Constant runner.
func NewConstant() *Constant { return &Constant{} }

// Run writes the configured value to the output port.
func (r *Constant) Run(_ context.Context, node *model.Node, _ *pipeline.Pipeline, ec *pipeline.ExecutionContext) error {
	value, ok := node.Config["value"]
	if !ok {
		return errors.New("config value is required")
	}

	setOutput(ec, node, "value", value)

	return nil
}

var _ pipeline.NodeRunner = (*Constant)(nil)
