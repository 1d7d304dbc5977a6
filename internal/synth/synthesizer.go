package synth

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"metis/internal/decompose"
	"metis/internal/engine"
	"metis/internal/logging"
	"metis/internal/solve"
)

// evidenceMargin is the minimum confidence gap for /weighted_evidence to
// pick a winner on confidence alone.
const evidenceMargin = 0.15

// gapFloor marks results too weakly supported to rely on; they appear in
// the report's gap list.
const gapFloor = 0.5

// Synthesizer merges sub-results into one report. Overlap classification
// and contradiction resolution are deterministic and local; the engine,
// when present, only drafts the unified output text.
type Synthesizer struct {
	eng              engine.Engine
	overlapThreshold float64
	discountBase     float64
	graph            *decompose.DependencyGraph
	overrides        map[string]string
	resolveByRecency bool
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithEngine lets the engine draft the unified output text.
func WithEngine(eng engine.Engine) Option {
	return func(s *Synthesizer) { s.eng = eng }
}

// WithGraph enables /scope_precedence: when one side of a contradiction
// transitively depends on the other, the downstream (integrating) side wins.
func WithGraph(g *decompose.DependencyGraph) Option {
	return func(s *Synthesizer) { s.graph = g }
}

// WithOverride declares a winner for any contradiction involving subID
// (/explicit_override). rationale is recorded verbatim.
func WithOverride(subID, rationale string) Option {
	return func(s *Synthesizer) { s.overrides[subID] = rationale }
}

// WithRecency resolves otherwise-unresolved contradictions in favor of the
// later-recorded result instead of leaving them /unresolved.
func WithRecency() Option {
	return func(s *Synthesizer) { s.resolveByRecency = true }
}

// NewSynthesizer creates a synthesizer. overlapThreshold is the minimum
// token overlap for two results to cover the same ground; discountBase is
// the per-unresolved-contradiction confidence multiplier in (0,1).
func NewSynthesizer(overlapThreshold, discountBase float64, opts ...Option) (*Synthesizer, error) {
	if overlapThreshold < 0 || overlapThreshold > 1 {
		return nil, fmt.Errorf("overlap threshold %.3f outside [0,1]", overlapThreshold)
	}
	if discountBase <= 0 || discountBase >= 1 {
		return nil, fmt.Errorf("discount base %.3f outside (0,1)", discountBase)
	}
	s := &Synthesizer{
		overlapThreshold: overlapThreshold,
		discountBase:     discountBase,
		overrides:        make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Synthesize visits every result, classifies every pair as agreement,
// contradiction or independent, resolves contradictions, and computes the
// aggregate confidence as
//
//	mean(confidences) * discountBase^unresolved
//
// which is non-increasing in the unresolved count and non-decreasing in
// any input confidence.
func (s *Synthesizer) Synthesize(ctx context.Context, results []*solve.SubResult) (*SynthesisReport, error) {
	timer := logging.StartTimer(logging.CategorySynth, "Synthesize")
	defer timer.Stop()

	if len(results) == 0 {
		return nil, fmt.Errorf("no sub-results to synthesize")
	}

	ordered := append([]*solve.SubResult(nil), results...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SubProblemID < ordered[j].SubProblemID
	})

	tokens := make([]map[string]bool, len(ordered))
	negative := make([]bool, len(ordered))
	for i, r := range ordered {
		tokens[i] = tokenSet(r.Result)
		negative[i] = polarity(r.Result)
	}

	report := &SynthesisReport{
		Agreements:     []Agreement{},
		Contradictions: []Contradiction{},
		Gaps:           []string{},
	}

	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			overlap := jaccard(tokens[i], tokens[j])
			if overlap < s.overlapThreshold {
				continue // Independent
			}
			if negative[i] == negative[j] {
				report.Agreements = append(report.Agreements, Agreement{
					LeftID:  ordered[i].SubProblemID,
					RightID: ordered[j].SubProblemID,
					Overlap: overlap,
				})
				continue
			}
			report.Contradictions = append(report.Contradictions,
				s.resolve(ordered, negative, tokens, i, j, overlap))
		}
	}

	for _, r := range ordered {
		if r.Confidence < gapFloor {
			report.Gaps = append(report.Gaps,
				fmt.Sprintf("%s: result confidence %.2f is below %.2f", r.SubProblemID, r.Confidence, gapFloor))
		}
	}

	unified, err := s.unify(ctx, ordered, report)
	if err != nil {
		return nil, err
	}
	report.Unified = unified
	report.Confidence = s.aggregateConfidence(ordered, report.Unresolved())

	logging.Synth("synthesized %d results: %d agreements, %d contradictions (%d unresolved), confidence %.3f",
		len(ordered), len(report.Agreements), len(report.Contradictions), report.Unresolved(), report.Confidence)

	return report, nil
}

// resolve picks one declared strategy per conflict, first applicable:
// explicit override, scope precedence, weighted evidence, majority vote,
// recency (opt in), otherwise unresolved.
func (s *Synthesizer) resolve(ordered []*solve.SubResult, negative []bool, tokens []map[string]bool, i, j int, overlap float64) Contradiction {
	left, right := ordered[i], ordered[j]
	c := Contradiction{
		LeftID:  left.SubProblemID,
		RightID: right.SubProblemID,
		Overlap: overlap,
	}

	if why, ok := s.overrides[left.SubProblemID]; ok {
		c.Strategy, c.WinnerID, c.Rationale = StrategyExplicitOverride, left.SubProblemID, why
		return c
	}
	if why, ok := s.overrides[right.SubProblemID]; ok {
		c.Strategy, c.WinnerID, c.Rationale = StrategyExplicitOverride, right.SubProblemID, why
		return c
	}

	if s.graph != nil {
		if winner, ok := s.scopeWinner(left.SubProblemID, right.SubProblemID); ok {
			c.Strategy, c.WinnerID = StrategyScopePrecedence, winner
			c.Rationale = fmt.Sprintf("%s integrates the other side's result downstream", winner)
			return c
		}
	}

	if gap := left.Confidence - right.Confidence; math.Abs(gap) >= evidenceMargin {
		winner := left
		if gap < 0 {
			winner = right
		}
		c.Strategy, c.WinnerID = StrategyWeightedEvidence, winner.SubProblemID
		c.Rationale = fmt.Sprintf("confidence %.2f vs %.2f", left.Confidence, right.Confidence)
		return c
	}

	if winner, votes, total, ok := majorityWinner(ordered, negative, tokens, i, j, s.overlapThreshold); ok {
		c.Strategy, c.WinnerID = StrategyMajorityVote, winner
		c.Rationale = fmt.Sprintf("%d of %d overlapping results share this polarity", votes, total)
		return c
	}

	if s.resolveByRecency {
		c.Strategy, c.WinnerID = StrategyRecency, right.SubProblemID
		c.Rationale = "later result supersedes on tie"
		return c
	}

	c.Strategy = StrategyUnresolved
	c.Rationale = "no strategy produced a decisive winner"
	return c
}

// scopeWinner returns the downstream side when one transitively depends on
// the other.
func (s *Synthesizer) scopeWinner(leftID, rightID string) (string, bool) {
	if s.graph.Reaches(leftID, rightID) {
		return leftID, true
	}
	if s.graph.Reaches(rightID, leftID) {
		return rightID, true
	}
	return "", false
}

// majorityWinner polls every result overlapping either side of the pair;
// a strict polarity majority decides.
func majorityWinner(ordered []*solve.SubResult, negative []bool, tokens []map[string]bool, i, j int, threshold float64) (string, int, int, bool) {
	pos, neg := 0, 0
	for k := range ordered {
		if k != i && k != j &&
			jaccard(tokens[k], tokens[i]) < threshold &&
			jaccard(tokens[k], tokens[j]) < threshold {
			continue
		}
		if negative[k] {
			neg++
		} else {
			pos++
		}
	}
	total := pos + neg
	if pos == neg {
		return "", 0, total, false
	}
	wantNegative := neg > pos
	votes := pos
	if wantNegative {
		votes = neg
	}
	if negative[i] == wantNegative {
		return ordered[i].SubProblemID, votes, total, true
	}
	return ordered[j].SubProblemID, votes, total, true
}

// aggregateConfidence is the documented formula:
// mean of input confidences times discountBase per unresolved contradiction.
func (s *Synthesizer) aggregateConfidence(results []*solve.SubResult, unresolved int) float64 {
	sum := 0.0
	for _, r := range results {
		sum += r.Confidence
	}
	mean := sum / float64(len(results))
	conf := mean * math.Pow(s.discountBase, float64(unresolved))
	if conf < 0 {
		return 0
	}
	if conf > 1 {
		return 1
	}
	return conf
}

// unify drafts the unified output. With an engine it drafts prose; without
// one it concatenates the surviving results deterministically.
func (s *Synthesizer) unify(ctx context.Context, ordered []*solve.SubResult, report *SynthesisReport) (string, error) {
	losers := make(map[string]bool)
	for _, c := range report.Contradictions {
		if c.WinnerID == "" {
			continue
		}
		if c.WinnerID == c.LeftID {
			losers[c.RightID] = true
		} else {
			losers[c.LeftID] = true
		}
	}

	if s.eng == nil {
		var sb strings.Builder
		for _, r := range ordered {
			if losers[r.SubProblemID] {
				continue
			}
			sb.WriteString(fmt.Sprintf("[%s] %s\n", r.SubProblemID, r.Result))
		}
		return sb.String(), nil
	}

	var sb strings.Builder
	for _, r := range ordered {
		status := "kept"
		if losers[r.SubProblemID] {
			status = "superseded"
		}
		sb.WriteString(fmt.Sprintf("- %s (%s, confidence %.2f): %s\n", r.SubProblemID, status, r.Confidence, r.Result))
	}
	for _, c := range report.Contradictions {
		sb.WriteString(fmt.Sprintf("- conflict %s vs %s resolved by %s: %s\n", c.LeftID, c.RightID, c.Strategy, c.Rationale))
	}

	prompt := fmt.Sprintf(`Merge these sub-results into one coherent answer. Prefer kept results,
drop superseded ones, and flag unresolved conflicts explicitly.

%s
Output the unified answer as plain prose:`, sb.String())

	unified, err := s.eng.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to draft unified output: %w", err)
	}
	return strings.TrimSpace(unified), nil
}
