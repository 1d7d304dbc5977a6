package solve

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"metis/internal/decompose"
	"metis/internal/engine"
	"metis/internal/logging"
)

// Recurser runs a full nested pipeline for a sub-problem flagged high
// complexity. The pipeline package implements it; solve defines the
// interface so the dependency points downward.
type Recurser interface {
	SolveNested(ctx context.Context, problem decompose.Problem, depth int) (*SubResult, error)
}

// Solver resolves one sub-problem to a SubResult. High-complexity
// sub-problems may recurse into a nested pipeline through the Recurser,
// bounded by maxDepth.
type Solver struct {
	eng      engine.Engine
	recurser Recurser
	maxDepth int
}

// NewSolver creates a solver. recurser may be nil, in which case
// high-complexity sub-problems are solved directly like any other.
func NewSolver(eng engine.Engine, recurser Recurser, maxDepth int) *Solver {
	return &Solver{eng: eng, recurser: recurser, maxDepth: maxDepth}
}

// rawSolution is the engine's answer structure.
type rawSolution struct {
	Approach   string  `json:"approach"`
	Result     string  `json:"result"`
	Confidence float64 `json:"confidence"`
}

// Solve resolves sub against the results of its declared dependencies.
// upstream must contain a SubResult for every id in sub.DependsOn; extra
// entries are ignored. depth is the current nesting depth, 0 for the
// top-level run.
func (s *Solver) Solve(ctx context.Context, sub decompose.SubProblem, upstream map[string]*SubResult, depth int) (*SubResult, error) {
	timer := logging.StartTimer(logging.CategorySolve, "Solve "+sub.ID)
	defer timer.Stop()

	for _, dep := range sub.DependsOn {
		if r, ok := upstream[dep]; !ok || r == nil {
			return nil, missingDependencyError(sub.ID, dep)
		}
	}

	if sub.Complexity == decompose.ComplexityHigh && s.recurser != nil {
		if depth+1 > s.maxDepth {
			return nil, recursionDepthError(sub.ID, depth+1, s.maxDepth)
		}
		logging.Solve("sub-problem %s recursing into nested pipeline at depth %d", sub.ID, depth+1)
		nested, err := s.recurser.SolveNested(ctx, nestedProblem(sub, upstream), depth+1)
		if err != nil {
			return nil, fmt.Errorf("nested pipeline for %s: %w", sub.ID, err)
		}
		nested.SubProblemID = sub.ID
		return nested, nil
	}

	return s.solveDirect(ctx, sub, upstream)
}

// nestedProblem reframes a high-complexity sub-problem as a standalone
// problem for a nested pipeline run.
func nestedProblem(sub decompose.SubProblem, upstream map[string]*SubResult) decompose.Problem {
	constraints := make([]string, 0, len(sub.DependsOn))
	for _, dep := range sub.DependsOn {
		if r := upstream[dep]; r != nil {
			constraints = append(constraints, fmt.Sprintf("Build on prior result %s: %s", dep, r.Result))
		}
	}
	return decompose.Problem{
		Statement:       sub.Description,
		Constraints:     constraints,
		SuccessCriteria: []string{sub.SuccessCriterion},
	}
}

// solveDirect asks the engine for an approach and result in one shot.
func (s *Solver) solveDirect(ctx context.Context, sub decompose.SubProblem, upstream map[string]*SubResult) (*SubResult, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("SUB-PROBLEM (%s): %s\n", sub.ID, sub.Description))
	sb.WriteString(fmt.Sprintf("SUCCESS CRITERION: %s\n", sub.SuccessCriterion))

	if len(sub.DependsOn) > 0 {
		deps := append([]string(nil), sub.DependsOn...)
		sort.Strings(deps)
		sb.WriteString("\nUPSTREAM RESULTS:\n")
		for _, dep := range deps {
			r := upstream[dep]
			sb.WriteString(fmt.Sprintf("- %s (confidence %.2f): %s\n", dep, r.Confidence, r.Result))
		}
	}

	prompt := fmt.Sprintf(`You are solving one sub-problem of a larger decomposed problem.

%s
Produce a solution that satisfies the success criterion, building on the
upstream results where given.

Output JSON:
{
  "approach": "how you solved it",
  "result": "the solution itself",
  "confidence": 0.0
}

confidence is your honest estimate in [0,1]. Output ONLY valid JSON:`, sb.String())

	resp, err := s.eng.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("solve %s: %w", sub.ID, err)
	}

	resp = engine.CleanJSONResponse(resp)
	var sol rawSolution
	if err := json.Unmarshal([]byte(resp), &sol); err != nil {
		return nil, fmt.Errorf("solve %s: failed to parse solution JSON: %w", sub.ID, err)
	}
	if strings.TrimSpace(sol.Result) == "" {
		return nil, fmt.Errorf("solve %s: engine returned an empty result", sub.ID)
	}

	return &SubResult{
		SubProblemID: sub.ID,
		Approach:     sol.Approach,
		Result:       sol.Result,
		Confidence:   clamp01(sol.Confidence),
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
