// Package metrics records operation outcomes and tool invocation timings.
package metrics

import "time"

// OutcomeLabel enumerates how an operation finished.
type OutcomeLabel string

const (
	OutcomeSuccess       OutcomeLabel = "success"
	OutcomeSkipped       OutcomeLabel = "skipped"
	OutcomeConfiguration OutcomeLabel = "configuration_error"
	OutcomeExecution     OutcomeLabel = "execution_error"
	OutcomeUnexpected    OutcomeLabel = "unexpected_error"
)

// Recorder receives observability hooks from the orchestrator.
type Recorder interface {
	IncOperation(operation string, outcome OutcomeLabel)
	ObserveCommand(kind string, d time.Duration, success bool)
}

// NoopRecorder is used when metrics are not configured.
type NoopRecorder struct{}

func (NoopRecorder) IncOperation(string, OutcomeLabel)          {}
func (NoopRecorder) ObserveCommand(string, time.Duration, bool) {}
