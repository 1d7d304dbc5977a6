package decompose

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAmbiguousScope is returned when a problem statement carries no
	// identifiable success criterion.
	ErrAmbiguousScope = errors.New("ambiguous scope: no identifiable success criterion")

	// ErrCyclicDependency is returned when a decomposition contains a
	// dependency cycle.
	ErrCyclicDependency = errors.New("cyclic dependency")

	// ErrUnknownDependency is returned when a sub-problem references a
	// dependency id that does not exist in the same decomposition.
	ErrUnknownDependency = errors.New("unknown dependency")

	// ErrDuplicateID is returned when two sub-problems share an id.
	ErrDuplicateID = errors.New("duplicate sub-problem id")
)

// GraphError wraps deterministic graph validation failures.
type GraphError struct {
	Kind error
	Msg  string
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func unknownDepError(id, dep string) error {
	return &GraphError{Kind: ErrUnknownDependency, Msg: fmt.Sprintf("%s depends on undeclared %s", id, dep)}
}

func duplicateIDError(id string) error {
	return &GraphError{Kind: ErrDuplicateID, Msg: id}
}

func cycleError(path []string) error {
	msg := "cycle"
	if len(path) > 0 {
		msg = "cycle: " + strings.Join(path, " -> ")
	}
	return &GraphError{Kind: ErrCyclicDependency, Msg: msg}
}
