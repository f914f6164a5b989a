package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultTimeout  ResultLabel = "timeout"
	ResultCanceled ResultLabel = "canceled"
)

// RunOutcomeLabel enumerates the final state of a run.
type RunOutcomeLabel string

const (
	OutcomeSucceeded RunOutcomeLabel = "succeeded"
	OutcomeFailed    RunOutcomeLabel = "failed"
)

// Recorder defines observability hooks for run and stage metrics.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveRunDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncRunOutcome(outcome RunOutcomeLabel)
	IncBusyRejection()
	SetRunActive(active bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveRunDuration(time.Duration)           {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) IncRunOutcome(RunOutcomeLabel)              {}
func (NoopRecorder) IncBusyRejection()                          {}
func (NoopRecorder) SetRunActive(bool)                          {}
