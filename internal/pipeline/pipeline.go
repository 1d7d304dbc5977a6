// Package pipeline sequences Distill, Decompose, Solve, Synthesize and
// Verify over one problem, iterating on verification failure up to the
// configured limit. The Run object owns all per-invocation state.
package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"metis/internal/config"
	"metis/internal/decompose"
	"metis/internal/distill"
	"metis/internal/engine"
	"metis/internal/logging"
	"metis/internal/solve"
	"metis/internal/synth"
	"metis/internal/verify"
)

// Lesson is what a finished run hands to the lesson sink.
type Lesson struct {
	RunID      string
	Problem    string
	Passed     bool
	Iterations int
	Confidence float64
	Summary    string
}

// LessonSink persists lessons learned. Write-only and fire-and-forget:
// sink failures are logged, never propagated.
type LessonSink interface {
	RecordLesson(ctx context.Context, lesson Lesson) error
}

// Pipeline wires the stage components together. One Pipeline serves many
// runs; all mutable state lives on the Run.
type Pipeline struct {
	cfg        *config.Config
	eng        engine.Engine
	distiller  *distill.Distiller
	decomposer *decompose.Decomposer
	solver     *solve.Solver
	verifier   *verify.Verifier
	lessons    LessonSink
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLessonSink attaches a lessons-learned sink.
func WithLessonSink(sink LessonSink) PipelineOption {
	return func(p *Pipeline) { p.lessons = sink }
}

// WithVerifier replaces the default verifier, e.g. to add pragmatic checks.
func WithVerifier(v *verify.Verifier) PipelineOption {
	return func(p *Pipeline) { p.verifier = v }
}

// New creates a pipeline from validated configuration. The pipeline itself
// is the solver's recurser, so high-complexity sub-problems nest full runs
// bounded by limits.max_recursion_depth.
func New(cfg *config.Config, eng engine.Engine, opts ...PipelineOption) (*Pipeline, error) {
	distiller, err := distill.NewDistiller(nil, cfg.Distill.ThresholdValue())
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:        cfg,
		eng:        eng,
		distiller:  distiller,
		decomposer: decompose.NewDecomposer(eng),
	}
	if cfg.Verification.FullAudit {
		p.verifier = verify.NewVerifier(verify.WithFullAudit())
	} else {
		p.verifier = verify.NewVerifier()
	}
	for _, opt := range opts {
		opt(p)
	}
	p.solver = solve.NewSolver(eng, p, cfg.Limits.MaxRecursionDepth)
	return p, nil
}

// Execute runs the full pipeline on a problem. corpus may be empty, in
// which case Distilling is skipped. The returned Run carries the partial
// state even when err is non-nil, so the caller can inspect and resume.
func (p *Pipeline) Execute(ctx context.Context, problem decompose.Problem, corpus []distill.Chunk) (*Run, error) {
	run := newRun(problem, 0)
	logging.Pipeline("run %s started: %s", run.ID, problem.Statement)

	if len(corpus) > 0 {
		run.State = StateDistilling
		sctx, cancel := p.stageCtx(ctx, "distill")
		dist, err := p.distiller.Distill(sctx, corpus, problem.Statement)
		cancel()
		if err != nil {
			return run, p.fail(run, StateDistilling, err)
		}
		run.Distillation = dist
		logging.Pipeline("run %s distilled corpus: %d of %d chunks kept",
			run.ID, len(dist.Subset), len(corpus))
	}

	return run, p.iterate(ctx, run)
}

// Resume continues a run that was cancelled mid-flight. Recorded
// SubResults are reused; only unsolved sub-problems are dispatched.
func (p *Pipeline) Resume(ctx context.Context, run *Run) error {
	if run.State == StateDone {
		return nil
	}
	logging.Pipeline("run %s resumed in state %s", run.ID, run.State)
	return p.iterate(ctx, run)
}

// iterate drives Decomposing through Verifying until a verification passes
// or the iteration limit is hit. One IterationRecord is appended every time
// the run leaves Verifying.
func (p *Pipeline) iterate(ctx context.Context, run *Run) error {
	start := len(run.Iterations) + 1

	for iter := start; iter <= p.cfg.Limits.MaxIterations; iter++ {
		feedback := append([]string(nil), run.Feedback...)

		// A run resumed with an intact decomposition mid-iteration re-enters
		// at Solving; everything else decomposes fresh.
		resuming := iter == start && run.Decomposition != nil && run.State != StateIterating
		if !resuming {
			run.State = StateDecomposing
			sctx, cancel := p.stageCtx(ctx, "decompose")
			dec, err := p.decomposer.Decompose(sctx, run.Problem, feedback)
			cancel()
			if err != nil {
				return p.fail(run, StateDecomposing, err)
			}
			if run.Decomposition != nil {
				run.clearResults() // new plan, new ids
			}
			run.Decomposition = dec
			logging.Pipeline("run %s iteration %d: plan %s with %d sub-problems",
				run.ID, iter, dec.PlanID, len(dec.SubProblems))
		}

		run.State = StateSolving
		if err := p.solveAll(ctx, run); err != nil {
			return p.fail(run, StateSolving, err)
		}

		run.State = StateSynthesizing
		sctx, cancel := p.stageCtx(ctx, "synth")
		syn, err := p.synthesize(sctx, run)
		cancel()
		if err != nil {
			return p.fail(run, StateSynthesizing, err)
		}
		run.Synthesis = syn

		run.State = StateVerifying
		vctx, vcancel := p.stageCtx(ctx, "verify")
		ver, err := p.verifier.Verify(vctx, syn, p.criteriaFor(run))
		vcancel()
		if err != nil {
			return p.fail(run, StateVerifying, err)
		}
		run.Verification = ver

		run.Iterations = append(run.Iterations, IterationRecord{
			Index:      iter,
			Passed:     ver.Passed,
			Confidence: ver.Confidence,
			Feedback:   feedback,
		})

		if ver.Passed {
			run.State = StateDone
			logging.Pipeline("run %s done after %d iterations, confidence %.3f",
				run.ID, iter, ver.Confidence)
			p.memorize(ctx, run)
			return nil
		}

		run.State = StateIterating
		run.Feedback = append(run.Feedback, ver.BlockingIssues...)
		logging.Pipeline("run %s iteration %d failed verification, %d feedback items",
			run.ID, iter, len(run.Feedback))
	}

	p.memorize(ctx, run)
	return p.fail(run, StateVerifying, fmt.Errorf("no passing verification after %d iterations: %w",
		p.cfg.Limits.MaxIterations, ErrIterationLimitExceeded))
}

// solveAll dispatches ready sub-problems in waves: every sub-problem whose
// dependencies are all recorded runs concurrently, bounded by
// limits.max_concurrent_solves. Already-recorded results are skipped, which
// is what lets a cancelled run resume.
func (p *Pipeline) solveAll(ctx context.Context, run *Run) error {
	sctx, cancel := p.stageCtx(ctx, "solve")
	defer cancel()

	graph := run.Decomposition.Graph
	for {
		done := run.doneSet()
		if len(done) >= graph.Len() {
			return nil
		}
		ready := graph.Ready(done, nil)
		if len(ready) == 0 {
			return fmt.Errorf("scheduling stalled with %d of %d sub-problems solved", len(done), graph.Len())
		}

		g, gctx := errgroup.WithContext(sctx)
		g.SetLimit(p.cfg.Limits.MaxConcurrentSolves)
		for _, id := range ready {
			sub, ok := run.Decomposition.SubProblem(id)
			if !ok {
				return fmt.Errorf("graph references unknown sub-problem %s", id)
			}
			g.Go(func() error {
				res, err := p.solver.Solve(gctx, sub, run.upstreamFor(sub), run.Depth)
				if err != nil {
					return err
				}
				return run.recordResult(res)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
}

// synthesize builds a per-iteration synthesizer carrying the current graph
// so scope precedence can resolve cross-result contradictions.
func (p *Pipeline) synthesize(ctx context.Context, run *Run) (*synth.SynthesisReport, error) {
	s, err := synth.NewSynthesizer(
		p.cfg.Synthesis.OverlapThreshold,
		p.cfg.Synthesis.DiscountBase,
		synth.WithEngine(p.eng),
		synth.WithGraph(run.Decomposition.Graph),
	)
	if err != nil {
		return nil, err
	}
	return s.Synthesize(ctx, run.Results())
}

// criteriaFor prefers the problem's explicit success criteria and falls
// back to the decomposition's per-sub-problem criteria.
func (p *Pipeline) criteriaFor(run *Run) []string {
	if len(run.Problem.SuccessCriteria) > 0 {
		return run.Problem.SuccessCriteria
	}
	criteria := make([]string, 0, len(run.Decomposition.SubProblems))
	for _, sub := range run.Decomposition.SubProblems {
		if sub.SuccessCriterion != "" {
			criteria = append(criteria, sub.SuccessCriterion)
		}
	}
	return criteria
}

// SolveNested runs a full nested pipeline for one high-complexity
// sub-problem. Implements solve.Recurser; the depth bound is enforced by
// the solver before this is reached.
func (p *Pipeline) SolveNested(ctx context.Context, problem decompose.Problem, depth int) (*solve.SubResult, error) {
	run := newRun(problem, depth)
	logging.Pipeline("nested run %s at depth %d: %s", run.ID, depth, problem.Statement)

	if err := p.iterate(ctx, run); err != nil {
		return nil, err
	}
	return &solve.SubResult{
		Approach:   fmt.Sprintf("nested pipeline %s over %d iterations", run.ID, len(run.Iterations)),
		Result:     run.Synthesis.Unified,
		Confidence: run.Verification.Confidence,
	}, nil
}

// fail marks the run's terminal stage and wraps the error with the partial
// state for the caller.
func (p *Pipeline) fail(run *Run, stage State, err error) error {
	logging.PipelineError("run %s failed in %s: %v", run.ID, stage, err)
	return &StageError{Stage: stage, Run: run, Err: err}
}

// memorize hands the finished run to the lesson sink. Fire-and-forget.
func (p *Pipeline) memorize(ctx context.Context, run *Run) {
	if p.lessons == nil {
		return
	}
	lesson := Lesson{
		RunID:      run.ID,
		Problem:    run.Problem.Statement,
		Passed:     run.State == StateDone,
		Iterations: len(run.Iterations),
	}
	if run.Verification != nil {
		lesson.Confidence = run.Verification.Confidence
	}
	if run.Synthesis != nil {
		lesson.Summary = run.Synthesis.Unified
	}
	if err := p.lessons.RecordLesson(ctx, lesson); err != nil {
		logging.MemoryWarn("lesson sink failed for run %s: %v", run.ID, err)
	}
}

// stageCtx applies the caller-configured timeout for a stage. No timeout
// is applied when none is configured.
func (p *Pipeline) stageCtx(ctx context.Context, stage string) (context.Context, context.CancelFunc) {
	if d := p.cfg.Limits.StageTimeout(stage); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}
