package runner

import (
	"context"
	"fmt"

	"github.com/askiada/go-labflow/pkg/pipeline"
	"github.com/askiada/go-labflow/pkg/pipeline/model"
	"github.com/askiada/go-labflow/pkg/volume"
)

// SampleViewData reports a one line summary of the value it receives and passes it through.
type SampleViewData struct{}

// NewSampleViewData returns a SampleViewData runner.
func NewSampleViewData() *SampleViewData { return &SampleViewData{} }

// Run forwards the input to the output unchanged.
func (r *SampleViewData) Run(_ context.Context, node *model.Node, _ *pipeline.Pipeline, ec *pipeline.ExecutionContext) error {
	value, _ := ec.Input(node.ID, "data")

	ec.Log(node.ID, "%s: %s", node.Label(), Summarize(value))
	setOutput(ec, node, "passthrough", value)

	return nil
}

// Summarize describes a port value in a few words.
func Summarize(value any) string {
	switch v := value.(type) {
	case nil:
		return "no data"
	case *volume.Volume:
		lo, hi := v.MinMax()

		return fmt.Sprintf("volume %dx%dx%d, min %g, max %g", v.Depth, v.Height, v.Width, lo, hi)
	case []*volume.Volume:
		return fmt.Sprintf("%d channel volumes", len(v))
	case *volume.Mask:
		return fmt.Sprintf("mask %dx%dx%d, %d voxels set", v.Depth, v.Height, v.Width, v.Count())
	case []volume.DetectedObject:
		total := 0
		for _, obj := range v {
			total += obj.VolumeVoxels
		}

		return fmt.Sprintf("%d objects, %d voxels", len(v), total)
	case model.Value:
		switch v.Kind() {
		case model.KindList:
			list, _ := v.AsList()

			return fmt.Sprintf("list of %d items", len(list))
		case model.KindMap:
			m, _ := v.AsMap()

			return fmt.Sprintf("map of %d keys", len(m))
		case model.KindNull:
			return "null"
		}

		return fmt.Sprintf("%s %s", v.Kind(), v)
	}

	return fmt.Sprintf("%T %v", value, value)
}

var _ pipeline.NodeRunner = (*SampleViewData)(nil)
