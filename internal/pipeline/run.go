package pipeline

import "time"

// Stage is the position of a run in the pipeline.
type Stage string

const (
	StageIdle      Stage = "idle"
	StageFetching  Stage = "fetching"
	StageBuilding  Stage = "building"
	StagePackaging Stage = "packaging"
	StageSucceeded Stage = "succeeded"
	StageFailed    Stage = "failed"
)

// Terminal reports whether no further transitions follow s.
func (s Stage) Terminal() bool {
	return s == StageSucceeded || s == StageFailed
}

// Run is a snapshot of one pipeline execution.
type Run struct {
	ID             uint64    `json:"id"`
	CorrelationID  string    `json:"correlation_id,omitempty"`
	Trigger        string    `json:"trigger,omitempty"`
	Stage          Stage     `json:"stage"`
	StartedAt      time.Time `json:"started_at,omitzero"`
	EndedAt        time.Time `json:"ended_at,omitzero"`
	FailedStage    Stage     `json:"failed_stage,omitempty"`
	FailureMessage string    `json:"failure_message,omitempty"`
	Timeout        bool      `json:"timeout,omitempty"`
	ArtifactPath   string    `json:"artifact_path,omitempty"`
}

// Duration returns the elapsed run time, up to now for an active run.
func (r Run) Duration() time.Duration {
	if r.StartedAt.IsZero() {
		return 0
	}
	if r.EndedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// Result is the outcome of a trigger request.
type Result struct {
	RunID         uint64
	CorrelationID string
	Stage         Stage
	FailedStage   Stage
	Message       string
	Timeout       bool
	ArtifactPath  string
	// Busy is set when the trigger was rejected because a run was active.
	Busy bool
	// Err is the stage error of a failed run.
	Err error
}

// Succeeded reports whether the run reached StageSucceeded.
func (r Result) Succeeded() bool { return r.Stage == StageSucceeded }

func resultOf(run Run, err error) Result {
	return Result{
		RunID:         run.ID,
		CorrelationID: run.CorrelationID,
		Stage:         run.Stage,
		FailedStage:   run.FailedStage,
		Message:       run.FailureMessage,
		Timeout:       run.Timeout,
		ArtifactPath:  run.ArtifactPath,
		Err:           err,
	}
}
