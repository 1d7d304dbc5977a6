package solve

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"metis/internal/decompose"
	"metis/internal/engine"
)

const solutionJSON = `{
  "approach": "looked it up",
  "result": "the answer is 42",
  "confidence": 0.9
}`

func lowSub(id string, deps ...string) decompose.SubProblem {
	return decompose.SubProblem{
		ID:               id,
		Description:      "resolve " + id,
		DependsOn:        deps,
		Complexity:       decompose.ComplexityLow,
		SuccessCriterion: id + " resolved",
	}
}

func TestSolve_Direct(t *testing.T) {
	s := NewSolver(engine.NewScripted(solutionJSON), nil, 1)

	res, err := s.Solve(context.Background(), lowSub("/sub_1"), nil, 0)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if res.SubProblemID != "/sub_1" {
		t.Errorf("sub-problem id = %s, want /sub_1", res.SubProblemID)
	}
	if res.Result != "the answer is 42" {
		t.Errorf("result = %q", res.Result)
	}
	if res.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", res.Confidence)
	}
}

func TestSolve_MissingDependencyResult(t *testing.T) {
	s := NewSolver(engine.NewScripted(solutionJSON), nil, 1)

	// Sub-problem "2" depends on "1", whose result has not been recorded.
	_, err := s.Solve(context.Background(), lowSub("/sub_2", "/sub_1"), map[string]*SubResult{}, 0)
	if !errors.Is(err, ErrMissingDependencyResult) {
		t.Fatalf("error = %v, want ErrMissingDependencyResult", err)
	}
}

func TestSolve_WithUpstream(t *testing.T) {
	s := NewSolver(engine.NewScripted(solutionJSON), nil, 1)

	upstream := map[string]*SubResult{
		"/sub_1": {SubProblemID: "/sub_1", Result: "base fact", Confidence: 0.8},
	}
	res, err := s.Solve(context.Background(), lowSub("/sub_2", "/sub_1"), upstream, 0)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if res.SubProblemID != "/sub_2" {
		t.Errorf("sub-problem id = %s, want /sub_2", res.SubProblemID)
	}
}

func TestSolve_ConfidenceClamped(t *testing.T) {
	over := `{"approach": "a", "result": "r", "confidence": 1.7}`
	s := NewSolver(engine.NewScripted(over), nil, 1)

	res, err := s.Solve(context.Background(), lowSub("/sub_1"), nil, 0)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if res.Confidence != 1 {
		t.Errorf("confidence = %v, want clamped to 1", res.Confidence)
	}
}

func TestSolve_EmptyResultRejected(t *testing.T) {
	empty := `{"approach": "a", "result": "  ", "confidence": 0.5}`
	s := NewSolver(engine.NewScripted(empty), nil, 1)

	if _, err := s.Solve(context.Background(), lowSub("/sub_1"), nil, 0); err == nil {
		t.Fatal("expected error for empty result")
	}
}

// stubRecurser records invocations without running a real nested pipeline.
type stubRecurser struct {
	calls  int
	result *SubResult
	err    error
}

func (r *stubRecurser) SolveNested(ctx context.Context, problem decompose.Problem, depth int) (*SubResult, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	out := *r.result
	return &out, nil
}

func TestSolve_HighComplexityRecurses(t *testing.T) {
	rec := &stubRecurser{result: &SubResult{Result: "nested answer", Confidence: 0.7}}
	s := NewSolver(engine.NewScripted(solutionJSON), rec, 2)

	high := lowSub("/sub_1")
	high.Complexity = decompose.ComplexityHigh

	res, err := s.Solve(context.Background(), high, nil, 0)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if rec.calls != 1 {
		t.Errorf("recurser called %d times, want 1", rec.calls)
	}
	if res.SubProblemID != "/sub_1" {
		t.Errorf("nested result not re-tagged: %s", res.SubProblemID)
	}
	if res.Result != "nested answer" {
		t.Errorf("result = %q", res.Result)
	}
}

func TestSolve_RecursionDepthExceeded(t *testing.T) {
	rec := &stubRecurser{result: &SubResult{Result: "x", Confidence: 0.5}}
	s := NewSolver(engine.NewScripted(solutionJSON), rec, 1)

	high := lowSub("/sub_1")
	high.Complexity = decompose.ComplexityHigh

	// Already at depth 1; one more nesting would exceed the limit of 1.
	_, err := s.Solve(context.Background(), high, nil, 1)
	if !errors.Is(err, ErrRecursionDepthExceeded) {
		t.Fatalf("error = %v, want ErrRecursionDepthExceeded", err)
	}
	if rec.calls != 0 {
		t.Errorf("recurser invoked past the depth limit")
	}
}

func TestSolve_HighComplexityWithoutRecurser(t *testing.T) {
	s := NewSolver(engine.NewScripted(solutionJSON), nil, 1)

	high := lowSub("/sub_1")
	high.Complexity = decompose.ComplexityHigh

	res, err := s.Solve(context.Background(), high, nil, 0)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if res.Result != "the answer is 42" {
		t.Errorf("high-complexity sub-problem without recurser should solve directly, got %q", res.Result)
	}
}

func TestSolve_NestedErrorPropagates(t *testing.T) {
	rec := &stubRecurser{err: fmt.Errorf("nested run exploded")}
	s := NewSolver(engine.NewScripted(solutionJSON), rec, 3)

	high := lowSub("/sub_1")
	high.Complexity = decompose.ComplexityHigh

	if _, err := s.Solve(context.Background(), high, nil, 0); err == nil {
		t.Fatal("expected nested pipeline error to propagate")
	}
}
