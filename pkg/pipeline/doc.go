// Package pipeline provides a DAG execution engine for acquisition and analysis pipelines.
//
// A Pipeline owns nodes and the typed connections between their ports. Connections are checked when they are
// added: the source must be an output, the target an unconnected input and both port types must be compatible.
// Validate lists what would prevent a pipeline from running without mutating it.
//
// The Executor runs one pipeline at a time. It validates the pipeline, resolves the scopes owned by ForEach and
// Conditional nodes, then runs every top level node in topological order on a single goroutine. Scope owners run
// their own sub-graph through ExecuteSubgraph, once per iteration or once for the branch they pick. The first error
// stops the run. Cancellation is cooperative: it is requested on the ExecutionContext and ends the run in the
// cancelled state rather than the failed one.
//
// Progress is reported as a stream of events to listeners, and every event is logged with slog.
package pipeline
