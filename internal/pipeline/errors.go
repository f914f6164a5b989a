package pipeline

import (
	"errors"
	"fmt"
	"time"

	ferrors "git.home.luguber.info/inful/buildtrigger/internal/foundation/errors"
)

// ErrBusy is returned when a trigger is rejected because a run is active.
var ErrBusy = ferrors.ConflictError("a pipeline run is already in progress").Build()

// TimeoutError marks a stage that exceeded its deadline.
type TimeoutError struct {
	Stage   Stage
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s: %v", e.Stage, e.Timeout, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// StageCategory maps a failed stage onto its error category.
func StageCategory(stage Stage, timeout bool) ferrors.ErrorCategory {
	if timeout {
		return ferrors.CategoryTimeout
	}
	switch stage {
	case StageFetching:
		return ferrors.CategoryFetch
	case StageBuilding:
		return ferrors.CategoryBuild
	case StagePackaging:
		return ferrors.CategoryPackage
	default:
		return ferrors.CategoryInternal
	}
}

// AsError returns nil for a successful run and a classified error otherwise.
func (r Result) AsError() error {
	if r.Succeeded() {
		return nil
	}
	if r.Busy {
		return ErrBusy
	}
	cause := r.Err
	if cause == nil {
		cause = errors.New(r.Message)
	}
	return ferrors.WrapError(cause, StageCategory(r.FailedStage, r.Timeout), fmt.Sprintf("run %d failed during %s", r.RunID, r.FailedStage)).
		WithContext("run_id", r.RunID).
		WithContext("stage", string(r.FailedStage)).
		Build()
}
