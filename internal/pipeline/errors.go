package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateResult means a second SubResult was written for the same
	// sub-problem id. Results are write-once.
	ErrDuplicateResult = errors.New("duplicate sub-result")

	// ErrIterationLimitExceeded means the run left Verifying without passing
	// more times than limits.max_iterations allows.
	ErrIterationLimitExceeded = errors.New("iteration limit exceeded")
)

// StageError reports which stage failed, the underlying error kind, and the
// partial run state accumulated so far. All pipeline errors are terminal;
// the caller inspects Run and may resume manually.
type StageError struct {
	Stage State
	Run   *Run
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func duplicateResultError(id string) error {
	return fmt.Errorf("sub-problem %s already has a result: %w", id, ErrDuplicateResult)
}
