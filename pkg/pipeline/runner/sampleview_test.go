package runner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-labflow/pkg/pipeline"
	"github.com/askiada/go-labflow/pkg/pipeline/model"
	"github.com/askiada/go-labflow/pkg/pipeline/runner"
	"github.com/askiada/go-labflow/pkg/volume"
)

func TestSampleViewDataPassesThrough(t *testing.T) {
	t.Parallel()

	p := pipeline.New("view")
	addNode(t, p, "k", model.NodeTypeConstant, model.Config{"value": ints(1, 2, 3)})
	view := addNode(t, p, "view", model.NodeTypeSampleViewData, nil)
	view.Name = "Preview"
	connect(t, p, "k", "value", "view", "data")

	h := newHarness(t, nil)
	require.NoError(t, h.run(p))

	assert.Equal(t, ints(1, 2, 3), h.output(t, "view", "passthrough"))
	assert.Equal(t, []string{"Preview: list of 3 items"}, h.messages(pipeline.EventLogMessage))
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	vol := volume.New(2, 3, 4)
	vol.Set(1, 2, 3, 9)
	mask := volume.NewMask(1, 1, 2)
	mask.Set(0, 0, 1, true)

	tests := []struct {
		value any
		want  string
	}{
		{value: nil, want: "no data"},
		{value: vol, want: "volume 2x3x4, min 0, max 9"},
		{value: []*volume.Volume{vol, vol}, want: "2 channel volumes"},
		{value: mask, want: "mask 1x1x2, 1 voxels set"},
		{value: []volume.DetectedObject{{VolumeVoxels: 8}, {VolumeVoxels: 2}}, want: "2 objects, 10 voxels"},
		{value: model.Map(map[string]model.Value{"a": model.Int(1)}), want: "map of 1 keys"},
		{value: model.Null(), want: "null"},
		{value: model.Int(4), want: "int 4"},
		{value: model.String("x"), want: `string "x"`},
		{value: 2.5, want: "float64 2.5"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, runner.Summarize(tt.value))
	}
}

func TestConstant(t *testing.T) {
	t.Parallel()

	p := pipeline.New("constant")
	addNode(t, p, "k", model.NodeTypeConstant, model.Config{"value": model.Float(0.25)})

	h := newHarness(t, nil)
	require.NoError(t, h.run(p))

	assert.Equal(t, model.Float(0.25), h.output(t, "k", "value"))
}

func TestRegisterDefaultsCoversCatalogue(t *testing.T) {
	t.Parallel()

	p := pipeline.New("catalogue")
	addNode(t, p, "k", model.NodeTypeConstant, model.Config{"value": model.Int(1)})
	addNode(t, p, "view", model.NodeTypeSampleViewData, nil)
	addNode(t, p, "cond", model.NodeTypeConditional, model.Config{"expression": model.String("value == 1")})
	addNode(t, p, "loop", model.NodeTypeForEach, model.Config{"count": model.Int(1)})
	addNode(t, p, "cmd", model.NodeTypeExternalCommand, model.Config{"command": model.String("true")})
	addNode(t, p, "wf", model.NodeTypeWorkflow, model.Config{"workflow_file": model.String("scan.xml")})
	addNode(t, p, "detect", model.NodeTypeThreshold, nil)
	connect(t, p, "k", "value", "view", "data")
	connect(t, p, "view", "passthrough", "cond", "value")
	connect(t, p, "wf", "volume", "detect", "volume")

	h := newHarness(t, map[string]any{
		runner.ServiceWorkflowFacade: &fakeFacade{},
		runner.ServiceVoxelStorage:   memStorage{0: volume.New(1, 1, 1)},
	})
	require.NoError(t, h.run(p))

	assert.Len(t, model.NodeTypes(), 7)
	assert.Equal(t, pipeline.StateCompleted, h.exec.State())
}
