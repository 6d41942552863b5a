package pipeline

// RunState is the lifecycle state of a pipeline run.
type RunState int32

const (
	StateIdle RunState = iota
	StateValidating
	StateResolvingScopes
	StateRunning
	StateCompleted
	StateFailed
	StateCancelled
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateResolvingScopes:
		return "resolving-scopes"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	}

	return "unknown"
}

// Terminal reports whether no further transition can happen within the run.
func (s RunState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}
