package solve

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingDependencyResult means solve was invoked before every
	// declared dependency had a recorded SubResult.
	ErrMissingDependencyResult = errors.New("missing dependency result")

	// ErrRecursionDepthExceeded means a nested decomposition would exceed
	// the configured recursion depth limit.
	ErrRecursionDepthExceeded = errors.New("recursion depth exceeded")
)

func missingDependencyError(subID, depID string) error {
	return fmt.Errorf("sub-problem %s: dependency %s has no result: %w",
		subID, depID, ErrMissingDependencyResult)
}

func recursionDepthError(subID string, depth, limit int) error {
	return fmt.Errorf("sub-problem %s: nested pipeline at depth %d exceeds limit %d: %w",
		subID, depth, limit, ErrRecursionDepthExceeded)
}
