package runner

import (
	"context"

	"github.com/pkg/errors"

	"github.com/askiada/go-labflow/pkg/pipeline"
	"github.com/askiada/go-labflow/pkg/pipeline/model"
	"github.com/askiada/go-labflow/pkg/volume"
)

// Threshold detects objects in a volume.
//
// The volume comes from the volume input or, when unconnected, from the voxel_storage service (config channels,
// default [0]). Config threshold is a level, or a list of one level per channel.
type Threshold struct {
	opts Options
}

// NewThreshold returns a Threshold runner.
func NewThreshold(opts Options) *Threshold { return &Threshold{opts: opts} }

// Run thresholds the input volume and reports the detected objects.
func (r *Threshold) Run(ctx context.Context, node *model.Node, _ *pipeline.Pipeline, ec *pipeline.ExecutionContext) error {
	channels, err := r.channels(ctx, node, ec)
	if err != nil {
		return err
	}

	opts, err := r.options(node.Config)
	if err != nil {
		return err
	}

	if ec.Cancelled() {
		return cancelled(node)
	}

	mask, objects, err := volume.Detect(channels, opts)
	if err != nil {
		return errors.Wrap(err, "unable to detect objects")
	}

	if mapping, ok := pipeline.ServiceAs[CoordinateConfig](ec, ServiceCoordinateConfig); ok {
		for i := range objects {
			c := objects[i].Centroid
			pos := mapping.VoxelToStage(c[0], c[1], c[2])
			objects[i].StagePosition = &pos
		}
	}

	setOutput(ec, node, "objects", objects)
	setOutput(ec, node, "mask", mask)
	setOutput(ec, node, "count", model.Int(int64(len(objects))))
	ec.Log(node.ID, "%s: %d objects detected", node.Label(), len(objects))

	return nil
}

func (r *Threshold) channels(ctx context.Context, node *model.Node, ec *pipeline.ExecutionContext) ([]*volume.Volume, error) {
	if value, ok := ec.Input(node.ID, "volume"); ok {
		switch v := value.(type) {
		case *volume.Volume:
			return []*volume.Volume{v}, nil
		case []*volume.Volume:
			return v, nil
		case volume.Volume:
			return []*volume.Volume{&v}, nil
		}

		return nil, errors.Errorf("input volume: expected a volume, got %T", value)
	}

	storage, ok := pipeline.ServiceAs[VoxelStorage](ec, ServiceVoxelStorage)
	if !ok {
		return nil, errors.Errorf("no volume connected and service %s is not available", ServiceVoxelStorage)
	}

	ids, err := intList(node.Config, "channels", []int{0})
	if err != nil {
		return nil, err
	}

	channels := make([]*volume.Volume, 0, len(ids))
	for _, id := range ids {
		vol, err := storage.Channel(ctx, id)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to read channel %d", id)
		}
		channels = append(channels, vol)
	}

	return channels, nil
}

func (r *Threshold) options(config model.Config) (volume.Options, error) {
	opts := volume.Options{Thresholds: []float64{100}}

	if levels, err := config.List("threshold"); err == nil && levels != nil {
		opts.Thresholds = make([]float64, 0, len(levels))
		for i, level := range levels {
			f, ok := level.AsFloat()
			if !ok {
				return opts, errors.Errorf("config threshold[%d]: expected number, got %s", i, level.Kind())
			}
			opts.Thresholds = append(opts.Thresholds, f)
		}
	} else {
		level, err := config.Float("threshold", 100)
		if err != nil {
			return opts, err
		}
		opts.Thresholds = []float64{level}
	}

	minSize, err := config.Int("min_object_size", 1)
	if err != nil {
		return opts, err
	}
	opts.MinObjectSize = int(minSize)

	opts.Opening, err = config.Bool("opening", false)
	if err != nil {
		return opts, err
	}

	connectivity, err := config.Int("connectivity", int64(r.opts.Connectivity))
	if err != nil {
		return opts, err
	}
	opts.Connectivity = volume.Connectivity(connectivity)

	return opts, nil
}

var _ pipeline.NodeRunner = (*Threshold)(nil)
