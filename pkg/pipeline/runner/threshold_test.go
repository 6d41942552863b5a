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

// cellVolume is a 10³ volume holding a 2³ cube of intensity 200 at (4, 4, 4).
func cellVolume() *volume.Volume {
	vol := volume.New(10, 10, 10)
	for z := 4; z < 6; z++ {
		for y := 4; y < 6; y++ {
			for x := 4; x < 6; x++ {
				vol.Set(z, y, x, 200)
			}
		}
	}

	return vol
}

func TestWorkflowThenThreshold(t *testing.T) {
	t.Parallel()

	p := pipeline.New("acquire and detect")
	addNode(t, p, "wf", model.NodeTypeWorkflow, model.Config{"workflow_file": model.String("scan.xml")})
	addNode(t, p, "detect", model.NodeTypeThreshold, model.Config{
		"threshold":       model.Float(100),
		"min_object_size": model.Int(5),
	})
	connect(t, p, "wf", "volume", "detect", "volume")

	h := newHarness(t, map[string]any{
		runner.ServiceWorkflowFacade:   &fakeFacade{statuses: []runner.WorkflowStatus{runner.WorkflowRunning, runner.WorkflowCompleted}},
		runner.ServiceVoxelStorage:     memStorage{0: cellVolume()},
		runner.ServiceCoordinateConfig: doubleStage{},
	})
	require.NoError(t, h.run(p))

	assert.Equal(t, model.Int(1), h.output(t, "detect", "count"))

	objects, ok := h.output(t, "detect", "objects").([]volume.DetectedObject)
	require.True(t, ok)
	require.Len(t, objects, 1)
	assert.Equal(t, 8, objects[0].VolumeVoxels)
	assert.Equal(t, [3]float64{4.5, 4.5, 4.5}, objects[0].Centroid)
	require.NotNil(t, objects[0].StagePosition)
	assert.Equal(t, [3]float64{9, 9, 9}, *objects[0].StagePosition)

	mask, ok := h.output(t, "detect", "mask").(*volume.Mask)
	require.True(t, ok)
	assert.Equal(t, 8, mask.Count())
	assert.True(t, mask.At(4, 4, 4))
	assert.True(t, mask.At(5, 5, 5))
	assert.False(t, mask.At(3, 4, 4))

	out, ok := h.ec.Output("detect", "mask")
	require.True(t, ok)
	assert.Equal(t, model.PortTypeVolume, out.Type)
}

func TestThresholdReadsStorageWhenUnconnected(t *testing.T) {
	t.Parallel()

	p := pipeline.New("storage")
	addNode(t, p, "detect", model.NodeTypeThreshold, model.Config{"threshold": model.Float(250)})

	h := newHarness(t, map[string]any{runner.ServiceVoxelStorage: memStorage{0: cellVolume()}})
	require.NoError(t, h.run(p))

	assert.Equal(t, model.Int(0), h.output(t, "detect", "count"))
	assert.Empty(t, h.output(t, "detect", "objects"))
}

func TestThresholdPerChannelLevels(t *testing.T) {
	t.Parallel()

	dim := volume.New(1, 1, 3)
	dim.Data = []float32{5, 0, 0}
	bright := volume.New(1, 1, 3)
	bright.Data = []float32{0, 0, 500}

	p := pipeline.New("channels")
	addNode(t, p, "detect", model.NodeTypeThreshold, model.Config{
		"channels":  ints(0, 1),
		"threshold": model.List(model.Float(1), model.Int(100)),
	})

	h := newHarness(t, map[string]any{runner.ServiceVoxelStorage: memStorage{0: dim, 1: bright}})
	require.NoError(t, h.run(p))

	assert.Equal(t, model.Int(2), h.output(t, "detect", "count"))
}

func TestThresholdFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		config   model.Config
		services map[string]any
		wantErr  string
	}{
		{
			name:    "no volume",
			wantErr: "no volume connected",
		},
		{
			name:     "bad threshold",
			config:   model.Config{"threshold": model.String("high")},
			services: map[string]any{runner.ServiceVoxelStorage: memStorage{0: cellVolume()}},
			wantErr:  `config "threshold": expected float, got string`,
		},
		{
			name:     "bad connectivity",
			config:   model.Config{"connectivity": model.Int(4)},
			services: map[string]any{runner.ServiceVoxelStorage: memStorage{0: cellVolume()}},
			wantErr:  "invalid connectivity 4",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := pipeline.New("threshold")
			addNode(t, p, "detect", model.NodeTypeThreshold, tt.config)

			h := newHarness(t, tt.services)
			err := h.run(p)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestThresholdRejectsWrongInput(t *testing.T) {
	t.Parallel()

	p := pipeline.New("wrong input")
	addNode(t, p, "k", model.NodeTypeConstant, model.Config{"value": model.Int(3)})
	addNode(t, p, "detect", model.NodeTypeThreshold, nil)
	connect(t, p, "k", "value", "detect", "volume")

	h := newHarness(t, nil)
	err := h.run(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected a volume")
}
