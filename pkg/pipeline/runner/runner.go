// Package runner implements the behaviour of every node type known to the pipeline catalogue.
package runner

import (
	"reflect"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-labflow/pkg/pipeline"
	"github.com/askiada/go-labflow/pkg/pipeline/model"
	"github.com/askiada/go-labflow/pkg/volume"
)

// Options holds the defaults runners fall back to when a node config does not override them.
type Options struct {
	WorkflowPollInterval time.Duration
	WorkflowTimeout      time.Duration
	CommandTimeout       time.Duration

	// TempDir is where ExternalCommand creates its scratch directories. Empty means os.TempDir.
	TempDir      string
	Shell        string
	Connectivity volume.Connectivity
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		WorkflowPollInterval: 500 * time.Millisecond,
		WorkflowTimeout:      30 * time.Minute,
		CommandTimeout:       5 * time.Minute,
		Shell:                "sh",
		Connectivity:         volume.Faces,
	}
}

// RegisterDefaults registers a runner for every catalogue node type.
func RegisterDefaults(exec *pipeline.Executor, opts Options) {
	exec.RegisterRunner(model.NodeTypeWorkflow, NewWorkflow(opts))
	exec.RegisterRunner(model.NodeTypeThreshold, NewThreshold(opts))
	exec.RegisterRunner(model.NodeTypeExternalCommand, NewExternalCommand(opts))
	exec.RegisterRunner(model.NodeTypeForEach, NewForEach())
	exec.RegisterRunner(model.NodeTypeConditional, NewConditional())
	exec.RegisterRunner(model.NodeTypeSampleViewData, NewSampleViewData())
	exec.RegisterRunner(model.NodeTypeConstant, NewConstant())
}

// setOutput writes value with the type declared by the node port.
func setOutput(ec *pipeline.ExecutionContext, node *model.Node, portID string, value any) {
	portType := model.PortTypeAny
	if port, ok := node.Output(portID); ok {
		portType = port.Type
	}

	ec.SetOutput(node.ID, portID, portType, value)
}

// inputOrConfig reads an input port, falling back to the config key of the same purpose.
func inputOrConfig(ec *pipeline.ExecutionContext, node *model.Node, portID, key string) (any, bool) {
	if value, ok := ec.Input(node.ID, portID); ok {
		return value, true
	}

	if value, ok := node.Config[key]; ok {
		return value, true
	}

	return nil, false
}

// native converts values to plain Go values for expressions and serialization.
func native(value any) any {
	if v, ok := value.(model.Value); ok {
		return v.Interface()
	}

	return value
}

// itemsOf flattens a list-like value into its elements.
func itemsOf(value any) ([]any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case model.Value:
		if v.IsNull() {
			return nil, nil
		}

		list, ok := v.AsList()
		if !ok {
			return nil, errors.Errorf("expected a list, got %s", v.Kind())
		}

		items := make([]any, len(list))
		for i, item := range list {
			items[i] = item
		}

		return items, nil
	case []any:
		return v, nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, errors.Errorf("expected a list, got %T", value)
	}

	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}

	return items, nil
}

func cancelled(node *model.Node) error {
	return errors.Wrapf(pipeline.ErrCancelled, "node %q", node.ID)
}
