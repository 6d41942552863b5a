package pipeline

import (
	"context"
	"time"
)

// EventKind names a progress or error notification sent while a pipeline runs.
type EventKind string

const (
	EventNodeStarted       EventKind = "node-started"
	EventNodeCompleted     EventKind = "node-completed"
	EventNodeFailed        EventKind = "node-failed"
	EventPipelineProgress  EventKind = "pipeline-progress"
	EventPipelineCompleted EventKind = "pipeline-completed"
	EventPipelineError     EventKind = "pipeline-error"
	EventPipelineCancelled EventKind = "pipeline-cancelled"
	EventForEachIteration  EventKind = "foreach-iteration"
	EventLogMessage        EventKind = "log-message"
)

// Event is a notification emitted by the executor.
type Event struct {
	Kind     EventKind
	RunID    string
	NodeID   string
	NodeName string
	Message  string

	// Current and Total are set for progress and iteration events.
	Current int
	Total   int
	Time    time.Time
}

// Listener receives executor events synchronously on the run goroutine.
type Listener func(Event)

// ChannelListener forwards events to ch. Sends stop once ctx is done.
func ChannelListener(ctx context.Context, ch chan<- Event) Listener {
	return func(event Event) {
		select {
		case ch <- event:
		case <-ctx.Done():
		}
	}
}
