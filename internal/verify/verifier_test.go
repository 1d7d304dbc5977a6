package verify

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"metis/internal/synth"
)

func goodReport() *synth.SynthesisReport {
	return &synth.SynthesisReport{
		Agreements:     []synth.Agreement{},
		Contradictions: []synth.Contradiction{},
		Gaps:           []string{},
		Unified:        "the migration plan covers rollback and keeps downtime at zero",
		Confidence:     0.85,
	}
}

func TestVerify_AllTiersPass(t *testing.T) {
	v := NewVerifier()
	criteria := []string{"plan covers rollback", "downtime stays zero"}

	out, err := v.Verify(context.Background(), goodReport(), criteria)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !out.Passed {
		t.Fatalf("verification failed: %+v", out)
	}
	for _, tier := range []Tier{TierSyntactic, TierSemantic, TierPragmatic} {
		if out.TierOutcome(tier) != OutcomePass {
			t.Errorf("tier %s = %s, want /pass", tier, out.TierOutcome(tier))
		}
	}
	if out.Confidence <= 0 || out.Confidence > 1 {
		t.Errorf("confidence %v outside (0,1]", out.Confidence)
	}
}

// Tier 1 failure in fail-fast mode short-circuits tiers 2 and 3 and zeroes
// the confidence.
func TestVerify_SyntacticFailureShortCircuits(t *testing.T) {
	v := NewVerifier()
	rep := goodReport()
	rep.Unified = "   "

	out, err := v.Verify(context.Background(), rep, []string{"anything"})
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if out.Passed {
		t.Fatal("verification passed with empty unified output")
	}
	if out.TierOutcome(TierSyntactic) != OutcomeFail {
		t.Errorf("syntactic = %s, want /fail", out.TierOutcome(TierSyntactic))
	}
	if out.TierOutcome(TierSemantic) != OutcomeNotEvaluated {
		t.Errorf("semantic = %s, want /not_evaluated", out.TierOutcome(TierSemantic))
	}
	if out.TierOutcome(TierPragmatic) != OutcomeNotEvaluated {
		t.Errorf("pragmatic = %s, want /not_evaluated", out.TierOutcome(TierPragmatic))
	}
	if out.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", out.Confidence)
	}
	if len(out.BlockingIssues) == 0 {
		t.Error("no blocking issues recorded")
	}
}

func TestVerify_FullAuditRunsEverything(t *testing.T) {
	v := NewVerifier(WithFullAudit())
	rep := goodReport()
	rep.Unified = ""

	out, err := v.Verify(context.Background(), rep, []string{"rollback exists"})
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if out.TierOutcome(TierSyntactic) != OutcomeFail {
		t.Errorf("syntactic = %s, want /fail", out.TierOutcome(TierSyntactic))
	}
	for _, tier := range []Tier{TierSemantic, TierPragmatic} {
		if out.TierOutcome(tier) == OutcomeNotEvaluated {
			t.Errorf("full audit left tier %s unevaluated", tier)
		}
	}
	if out.Confidence != 0 {
		t.Errorf("confidence = %v, want 0 on syntactic failure even in full audit", out.Confidence)
	}
}

func TestVerify_SemanticFailureDrivesIteration(t *testing.T) {
	v := NewVerifier()
	out, err := v.Verify(context.Background(), goodReport(), []string{"encryption keys rotate quarterly"})
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if out.Passed {
		t.Fatal("unmet criterion passed")
	}
	if out.TierOutcome(TierSemantic) != OutcomeFail {
		t.Errorf("semantic = %s, want /fail", out.TierOutcome(TierSemantic))
	}
	if out.TierOutcome(TierPragmatic) != OutcomeNotEvaluated {
		t.Errorf("pragmatic = %s, want /not_evaluated after semantic failure", out.TierOutcome(TierPragmatic))
	}
	// Syntactic passed, so confidence stays above zero.
	if out.Confidence <= 0 {
		t.Errorf("confidence = %v, want > 0", out.Confidence)
	}
}

func TestVerify_PragmaticChecks(t *testing.T) {
	humanApproved := false
	v := NewVerifier(WithPragmaticChecks(PragmaticCheck{
		Name: "human_review",
		Run: func(ctx context.Context, report *synth.SynthesisReport) (bool, string) {
			return humanApproved, "awaiting reviewer sign-off"
		},
	}))

	out, err := v.Verify(context.Background(), goodReport(), []string{"plan covers rollback"})
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if out.Passed {
		t.Fatal("pragmatic rejection ignored")
	}
	if out.TierOutcome(TierPragmatic) != OutcomeFail {
		t.Errorf("pragmatic = %s, want /fail", out.TierOutcome(TierPragmatic))
	}

	humanApproved = true
	out, err = v.Verify(context.Background(), goodReport(), []string{"plan covers rollback"})
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !out.Passed {
		t.Errorf("verification failed after approval: %+v", out)
	}
}

// Re-verifying an unchanged report with unchanged criteria yields an
// identical VerificationReport.
func TestVerify_Idempotent(t *testing.T) {
	v := NewVerifier()
	criteria := []string{"plan covers rollback", "downtime stays zero"}

	first, err := v.Verify(context.Background(), goodReport(), criteria)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	second, err := v.Verify(context.Background(), goodReport(), criteria)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("verification not idempotent (-first +second):\n%s", diff)
	}
}

func TestVerify_ConfidenceFormula(t *testing.T) {
	v := NewVerifier()
	// One criterion passes, one fails: (1 + 1) / (1 + 2) with fail-fast
	// stopping before pragmatic checks add to the totals.
	out, err := v.Verify(context.Background(), goodReport(),
		[]string{"plan covers rollback", "encryption keys rotate quarterly"})
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	want := 2.0 / 3.0
	if out.Confidence != want {
		t.Errorf("confidence = %v, want %v", out.Confidence, want)
	}
}

func TestVerify_NilReport(t *testing.T) {
	v := NewVerifier()
	if _, err := v.Verify(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error for nil report")
	}
}
