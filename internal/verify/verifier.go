package verify

import (
	"context"
	"fmt"
	"strings"

	"metis/internal/logging"
	"metis/internal/synth"
)

// PragmaticCheck is a caller-supplied non-functional acceptance check,
// e.g. a performance threshold or a human-review hook.
type PragmaticCheck struct {
	Name string
	Run  func(ctx context.Context, report *synth.SynthesisReport) (bool, string)
}

// SemanticCheck decides whether the unified output satisfies one success
// criterion. The default is a deterministic lexical predicate so that
// re-verifying an unchanged report always yields the same outcome.
type SemanticCheck func(criterion, unified string) (bool, string)

// Verifier runs the three verification tiers in fixed order: Syntactic,
// Semantic, Pragmatic. Fail-fast by default; FullAudit runs all tiers and
// records each independently.
type Verifier struct {
	fullAudit bool
	semantic  SemanticCheck
	pragmatic []PragmaticCheck
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithFullAudit runs every tier even when an earlier one fails.
func WithFullAudit() VerifierOption {
	return func(v *Verifier) { v.fullAudit = true }
}

// WithSemanticCheck replaces the default lexical criterion predicate.
func WithSemanticCheck(check SemanticCheck) VerifierOption {
	return func(v *Verifier) { v.semantic = check }
}

// WithPragmaticChecks appends caller-supplied pragmatic checks.
func WithPragmaticChecks(checks ...PragmaticCheck) VerifierOption {
	return func(v *Verifier) { v.pragmatic = append(v.pragmatic, checks...) }
}

// NewVerifier creates a verifier.
func NewVerifier(opts ...VerifierOption) *Verifier {
	v := &Verifier{semantic: lexicalCriterion}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks a synthesis report against the run's success criteria.
//
// Confidence is 0 when the Syntactic tier fails; otherwise it is
// (1 + passed) / (1 + total) over the Semantic and Pragmatic checks,
// which lies in (0,1]. Tier failures are report outcomes, never errors.
func (v *Verifier) Verify(ctx context.Context, report *synth.SynthesisReport, criteria []string) (*VerificationReport, error) {
	timer := logging.StartTimer(logging.CategoryVerify, "Verify")
	defer timer.Stop()

	if report == nil {
		return nil, fmt.Errorf("nil synthesis report")
	}

	out := &VerificationReport{BlockingIssues: []string{}}

	syntactic := v.runSyntactic(report, criteria)
	out.Tiers = append(out.Tiers, syntactic)
	collectIssues(out, syntactic)

	shortCircuited := false
	passed, total := 0, 0

	runTier := func(run func() TierResult) {
		if (syntacticFailed(out) || shortCircuited) && !v.fullAudit {
			out.Tiers = append(out.Tiers, TierResult{Tier: tierFor(len(out.Tiers)), Outcome: OutcomeNotEvaluated})
			return
		}
		tr := run()
		out.Tiers = append(out.Tiers, tr)
		collectIssues(out, tr)
		for _, c := range tr.Checks {
			total++
			if c.Passed {
				passed++
			}
		}
		if tr.Outcome == OutcomeFail {
			shortCircuited = true
		}
	}

	runTier(func() TierResult { return v.runSemantic(report, criteria) })
	runTier(func() TierResult { return v.runPragmatic(ctx, report) })

	if syntactic.Outcome == OutcomeFail {
		out.Confidence = 0
	} else {
		out.Confidence = float64(1+passed) / float64(1+total)
	}

	out.Passed = true
	for _, tr := range out.Tiers {
		if tr.Outcome != OutcomePass {
			out.Passed = false
			break
		}
	}

	logging.Verify("verification: syntactic=%s semantic=%s pragmatic=%s confidence=%.3f",
		out.TierOutcome(TierSyntactic), out.TierOutcome(TierSemantic), out.TierOutcome(TierPragmatic), out.Confidence)

	return out, nil
}

// tierFor maps a tier slot index to its name when recording a skipped tier.
func tierFor(idx int) Tier {
	switch idx {
	case 1:
		return TierSemantic
	default:
		return TierPragmatic
	}
}

func syntacticFailed(r *VerificationReport) bool {
	return r.TierOutcome(TierSyntactic) == OutcomeFail
}

func collectIssues(out *VerificationReport, tr TierResult) {
	for _, c := range tr.Checks {
		if !c.Passed {
			out.BlockingIssues = append(out.BlockingIssues, fmt.Sprintf("%s/%s: %s", tr.Tier, c.Name, c.Detail))
		}
	}
}

// runSyntactic checks structural completeness of the synthesis report.
func (v *Verifier) runSyntactic(report *synth.SynthesisReport, criteria []string) TierResult {
	tr := TierResult{Tier: TierSyntactic}

	tr.Checks = append(tr.Checks, boolCheck("unified_present",
		strings.TrimSpace(report.Unified) != "", "unified output is empty"))
	tr.Checks = append(tr.Checks, boolCheck("criteria_present",
		len(criteria) > 0, "no success criteria supplied"))
	tr.Checks = append(tr.Checks, boolCheck("confidence_in_range",
		report.Confidence >= 0 && report.Confidence <= 1,
		fmt.Sprintf("confidence %.3f outside [0,1]", report.Confidence)))

	strategiesOK := true
	for _, c := range report.Contradictions {
		if c.Strategy == "" {
			strategiesOK = false
			break
		}
	}
	tr.Checks = append(tr.Checks, boolCheck("contradictions_resolved_or_marked",
		strategiesOK, "a contradiction has no declared resolution strategy"))

	tr.Outcome = outcomeOf(tr.Checks)
	return tr
}

// runSemantic evaluates each success criterion against the unified output.
func (v *Verifier) runSemantic(report *synth.SynthesisReport, criteria []string) TierResult {
	tr := TierResult{Tier: TierSemantic}
	for i, criterion := range criteria {
		ok, detail := v.semantic(criterion, report.Unified)
		tr.Checks = append(tr.Checks, CheckResult{
			Name:   fmt.Sprintf("criterion_%d", i+1),
			Passed: ok,
			Detail: detail,
		})
	}
	tr.Outcome = outcomeOf(tr.Checks)
	return tr
}

// runPragmatic runs the caller-supplied checks. With none configured the
// tier passes vacuously.
func (v *Verifier) runPragmatic(ctx context.Context, report *synth.SynthesisReport) TierResult {
	tr := TierResult{Tier: TierPragmatic}
	for _, check := range v.pragmatic {
		ok, detail := check.Run(ctx, report)
		tr.Checks = append(tr.Checks, CheckResult{Name: check.Name, Passed: ok, Detail: detail})
	}
	tr.Outcome = outcomeOf(tr.Checks)
	return tr
}

func boolCheck(name string, ok bool, failDetail string) CheckResult {
	c := CheckResult{Name: name, Passed: ok}
	if !ok {
		c.Detail = failDetail
	}
	return c
}

func outcomeOf(checks []CheckResult) Outcome {
	for _, c := range checks {
		if !c.Passed {
			return OutcomeFail
		}
	}
	return OutcomePass
}

// lexicalCriterion is the default semantic predicate: a criterion passes
// when at least half of its content tokens appear in the unified output.
func lexicalCriterion(criterion, unified string) (bool, string) {
	want := contentTokens(criterion)
	if len(want) == 0 {
		return true, "criterion has no content tokens"
	}
	have := contentTokens(unified)
	hits := 0
	for tok := range want {
		if have[tok] {
			hits++
		}
	}
	ratio := float64(hits) / float64(len(want))
	detail := fmt.Sprintf("%d/%d criterion tokens covered", hits, len(want))
	return ratio >= 0.5, detail
}

// contentTokens lowercases text into unique alphanumeric tokens of three
// or more characters.
func contentTokens(text string) map[string]bool {
	set := make(map[string]bool)
	var cur strings.Builder
	flush := func() {
		if cur.Len() >= 3 {
			set[cur.String()] = true
		}
		cur.Reset()
	}
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return set
}
