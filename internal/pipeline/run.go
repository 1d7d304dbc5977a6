package pipeline

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"metis/internal/decompose"
	"metis/internal/distill"
	"metis/internal/solve"
	"metis/internal/synth"
	"metis/internal/verify"
)

// Run owns the full state of one pipeline invocation: problem, the current
// decomposition, recorded sub-results, the latest synthesis and
// verification reports and the iteration history. Nothing outlives the run
// except what the caller persists externally.
type Run struct {
	ID      string
	Problem decompose.Problem
	Depth   int // nesting depth, 0 for a top-level run

	State         State
	Distillation  *distill.Distillation
	Decomposition *decompose.Decomposition
	Synthesis     *synth.SynthesisReport
	Verification  *verify.VerificationReport
	Iterations    []IterationRecord
	Feedback      []string // accumulated for the next Decomposing pass

	mu      sync.Mutex
	results map[string]*solve.SubResult
}

func newRun(problem decompose.Problem, depth int) *Run {
	return &Run{
		ID:      "/run_" + uuid.New().String()[:8],
		Problem: problem,
		Depth:   depth,
		State:   StateInit,
		results: make(map[string]*solve.SubResult),
	}
}

// recordResult stores a SubResult, enforcing write-once per id.
func (r *Run) recordResult(res *solve.SubResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.results[res.SubProblemID]; exists {
		return duplicateResultError(res.SubProblemID)
	}
	r.results[res.SubProblemID] = res
	return nil
}

// Result returns the recorded SubResult for a sub-problem id, if any.
func (r *Run) Result(id string) (*solve.SubResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[id]
	return res, ok
}

// Results returns the recorded sub-results ordered by sub-problem id.
func (r *Run) Results() []*solve.SubResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*solve.SubResult, 0, len(r.results))
	for _, res := range r.results {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubProblemID < out[j].SubProblemID })
	return out
}

// doneSet returns the ids that already have results. Used to seed the
// ready queue, so a resumed run skips solved sub-problems.
func (r *Run) doneSet() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	done := make(map[string]bool, len(r.results))
	for id := range r.results {
		done[id] = true
	}
	return done
}

// upstreamFor collects the dependency results for one sub-problem.
func (r *Run) upstreamFor(sub decompose.SubProblem) map[string]*solve.SubResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	upstream := make(map[string]*solve.SubResult, len(sub.DependsOn))
	for _, dep := range sub.DependsOn {
		if res, ok := r.results[dep]; ok {
			upstream[dep] = res
		}
	}
	return upstream
}

// clearResults drops recorded results. Called when Iterating replaces the
// decomposition, since the new plan's ids identify different sub-problems.
func (r *Run) clearResults() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = make(map[string]*solve.SubResult)
}
