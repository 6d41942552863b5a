package runner

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-labflow/pkg/pipeline"
	"github.com/askiada/go-labflow/pkg/pipeline/model"
	"github.com/askiada/go-labflow/pkg/volume"
)

const stopTimeout = 10 * time.Second

// Workflow loads and starts a hardware workflow, then polls it until it reaches a terminal status.
//
// When the voxel_storage service is available the captured channels (config capture_channels, default [0])
// are read back and emitted on the volume port: a single volume for one channel, a slice otherwise.
type Workflow struct {
	opts Options
}

// NewWorkflow returns a Workflow runner polling with the given options.
func NewWorkflow(opts Options) *Workflow { return &Workflow{opts: opts} }

// Run loads and starts the workflow, then polls its status until it finishes.
func (r *Workflow) Run(ctx context.Context, node *model.Node, _ *pipeline.Pipeline, ec *pipeline.ExecutionContext) error {
	facade, ok := pipeline.ServiceAs[WorkflowFacade](ec, ServiceWorkflowFacade)
	if !ok {
		return errors.Errorf("service %s is not available", ServiceWorkflowFacade)
	}

	workflowFile, err := node.Config.Text("workflow_file", "")
	if err != nil {
		return err
	}
	if workflowFile == "" {
		return errors.New("config workflow_file is required")
	}

	interval, err := seconds(node.Config, "poll_interval", r.opts.WorkflowPollInterval)
	if err != nil {
		return err
	}
	timeout, err := seconds(node.Config, "timeout", r.opts.WorkflowTimeout)
	if err != nil {
		return err
	}

	err = facade.Load(ctx, workflowFile)
	if err != nil {
		return errors.Wrapf(err, "unable to load workflow %s", workflowFile)
	}

	err = facade.Start(ctx)
	if err != nil {
		return errors.Wrapf(err, "unable to start workflow %s", workflowFile)
	}
	ec.Log(node.ID, "%s: workflow %s started", node.Label(), workflowFile)

	err = r.wait(ctx, node, ec, facade, interval, timeout)
	if err != nil {
		return err
	}

	err = r.capture(ctx, node, ec)
	if err != nil {
		return err
	}

	setOutput(ec, node, "done", model.Bool(true))

	return nil
}

func (r *Workflow) wait(
	ctx context.Context,
	node *model.Node,
	ec *pipeline.ExecutionContext,
	facade WorkflowFacade,
	interval, timeout time.Duration,
) error {
	start := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ec.Cancelled() || ctx.Err() != nil {
			return r.stop(ctx, node, facade)
		}

		status, err := facade.Status(ctx)
		if err != nil {
			return errors.Wrap(err, "unable to get workflow status")
		}

		switch status {
		case WorkflowCompleted:
			return nil
		case WorkflowFailed, WorkflowStopped:
			return errors.Errorf("workflow ended with status %s after %s", status, time.Since(start).Round(time.Millisecond))
		}

		if elapsed := time.Since(start); elapsed > timeout {
			stopErr := facade.Stop(context.WithoutCancel(ctx))
			if stopErr != nil {
				return errors.Errorf("workflow timed out after %s (limit %s), unable to stop it: %v",
					elapsed.Round(time.Millisecond), timeout, stopErr)
			}

			return errors.Errorf("workflow timed out after %s (limit %s)", elapsed.Round(time.Millisecond), timeout)
		}

		select {
		case <-ec.Done():
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
}

// stop halts the remote workflow before reporting the cancellation.
func (r *Workflow) stop(ctx context.Context, node *model.Node, facade WorkflowFacade) error {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()

	err := facade.Stop(stopCtx)
	if err != nil {
		return errors.Wrapf(cancelled(node), "unable to stop workflow: %v", err)
	}

	return cancelled(node)
}

func (r *Workflow) capture(ctx context.Context, node *model.Node, ec *pipeline.ExecutionContext) error {
	storage, ok := pipeline.ServiceAs[VoxelStorage](ec, ServiceVoxelStorage)
	if !ok {
		return nil
	}

	channels, err := intList(node.Config, "capture_channels", []int{0})
	if err != nil {
		return err
	}

	volumes := make([]*volume.Volume, 0, len(channels))
	for _, channel := range channels {
		vol, err := storage.Channel(ctx, channel)
		if err != nil {
			return errors.Wrapf(err, "unable to read channel %d", channel)
		}
		volumes = append(volumes, vol)
	}

	if len(volumes) == 1 {
		setOutput(ec, node, "volume", volumes[0])
	} else {
		setOutput(ec, node, "volume", volumes)
	}

	return nil
}

// seconds reads a duration expressed in seconds, falling back to def.
func seconds(config model.Config, key string, def time.Duration) (time.Duration, error) {
	value, err := config.Float(key, def.Seconds())
	if err != nil {
		return 0, err
	}
	if value <= 0 {
		return 0, errors.Errorf("config %s must be positive, got %g", key, value)
	}

	return time.Duration(value * float64(time.Second)), nil
}

func intList(config model.Config, key string, def []int) ([]int, error) {
	if !config.Has(key) {
		return def, nil
	}

	list, err := config.List(key)
	if err != nil {
		return nil, err
	}

	out := make([]int, 0, len(list))
	for i, item := range list {
		n, ok := item.AsInt()
		if !ok {
			return nil, errors.Errorf("config %s[%d]: expected int, got %s", key, i, item.Kind())
		}
		out = append(out, int(n))
	}

	return out, nil
}

var _ pipeline.NodeRunner = (*Workflow)(nil)
