package runner

import (
	"context"

	"github.com/askiada/go-labflow/pkg/volume"
)

// Names under which runners look services up in the execution context.
const (
	ServiceWorkflowFacade   = "workflow_facade"
	ServiceVoxelStorage     = "voxel_storage"
	ServiceCoordinateConfig = "coordinate_config"
)

// WorkflowStatus is the state reported by a hardware workflow.
type WorkflowStatus string

const (
	WorkflowIdle      WorkflowStatus = "idle"
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowFailed    WorkflowStatus = "failed"
	WorkflowStopped   WorkflowStatus = "stopped"
)

// Terminal reports whether the workflow will not change state anymore.
func (s WorkflowStatus) Terminal() bool {
	return s == WorkflowCompleted || s == WorkflowFailed || s == WorkflowStopped
}

// WorkflowFacade drives an acquisition workflow on the instrument.
type WorkflowFacade interface {
	Load(ctx context.Context, workflowFile string) error
	Start(ctx context.Context) error
	Status(ctx context.Context) (WorkflowStatus, error)
	Stop(ctx context.Context) error
}

// VoxelStorage gives access to the live volume of an acquisition channel.
type VoxelStorage interface {
	Channel(ctx context.Context, channel int) (*volume.Volume, error)
}

// CoordinateConfig maps voxel indices to stage coordinates.
type CoordinateConfig interface {
	VoxelToStage(z, y, x float64) [3]float64
}
