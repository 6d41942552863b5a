package pipeline

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/askiada/go-labflow/pkg/pipeline/model"
)

var (
	ErrNodeNotFound         = errors.New("node not found")
	ErrPortNotFound         = errors.New("port not found")
	ErrPortDirection        = errors.New("wrong port direction")
	ErrPortAlreadyConnected = errors.New("input port already connected")
	ErrIncompatibleTypes    = errors.New("incompatible port types")
	ErrSelfConnection       = errors.New("node cannot connect to itself")
	ErrDuplicateNode        = errors.New("node id already exists")

	// ErrCancelled marks a run stopped on request. It is a terminal condition, not a failure.
	ErrCancelled = errors.New("pipeline cancelled")

	ErrAlreadyRunning = errors.New("executor already running a pipeline")
	ErrContextReused  = errors.New("execution context already used by another run")
	ErrNotScopeOwner  = errors.New("node does not own a scope")
)

// ValidationError reports a structurally unsound pipeline or a rejected mutation.
type ValidationError struct {
	Problems []string

	// Err is the sentinel describing a rejected mutation, if any.
	Err error
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid pipeline: " + e.Problems[0]
	}

	return fmt.Sprintf("invalid pipeline: %d problems: %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error { return e.Err }

func newValidationError(sentinel error, format string, args ...any) *ValidationError {
	return &ValidationError{
		Problems: []string{fmt.Sprintf(format, args...) + ": " + sentinel.Error()},
		Err:      sentinel,
	}
}

// CycleError reports a cycle among the pipeline connections.
type CycleError struct {
	// NodeIDs holds the members of every strongly connected component forming a cycle.
	NodeIDs []string
}

func (e *CycleError) Error() string {
	return "cycle detected between nodes: " + strings.Join(e.NodeIDs, ", ")
}

// MissingRunnerError is returned when a node type reached during a run has no registered runner.
type MissingRunnerError struct {
	NodeID   string
	NodeType model.NodeType
}

func (e *MissingRunnerError) Error() string {
	return fmt.Sprintf("no runner registered for node type %q (node %q)", e.NodeType, e.NodeID)
}

// NodeExecutionError carries the node whose runner failed and the underlying cause.
type NodeExecutionError struct {
	NodeID   string
	NodeName string
	NodeType model.NodeType
	Err      error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %q (%s) failed: %v", e.NodeName, e.NodeType, e.Err)
}

func (e *NodeExecutionError) Unwrap() error { return e.Err }

// IsCancellation reports whether err represents a requested stop rather than a failure.
func IsCancellation(err error) bool {
	return err != nil && errors.Is(err, ErrCancelled)
}
