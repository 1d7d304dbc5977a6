package synth

// Strategy names how a contradiction between two sub-results was resolved.
type Strategy string

const (
	StrategyWeightedEvidence Strategy = "/weighted_evidence"
	StrategyMajorityVote     Strategy = "/majority_vote"
	StrategyRecency          Strategy = "/recency"
	StrategyScopePrecedence  Strategy = "/scope_precedence"
	StrategyExplicitOverride Strategy = "/explicit_override"
	StrategyUnresolved       Strategy = "/unresolved"
)

// Agreement records two sub-results that cover the same ground and agree.
type Agreement struct {
	LeftID  string  `json:"left_id"`
	RightID string  `json:"right_id"`
	Overlap float64 `json:"overlap"`
}

// Contradiction records two sub-results that cover the same ground and
// conflict, plus how (or whether) the conflict was resolved. WinnerID is
// empty when the strategy is /unresolved.
type Contradiction struct {
	LeftID    string   `json:"left_id"`
	RightID   string   `json:"right_id"`
	Overlap   float64  `json:"overlap"`
	Strategy  Strategy `json:"strategy"`
	WinnerID  string   `json:"winner_id,omitempty"`
	Rationale string   `json:"rationale"`
}

// SynthesisReport is the unified view over all sub-results of one iteration.
type SynthesisReport struct {
	Agreements     []Agreement     `json:"agreements"`
	Contradictions []Contradiction `json:"contradictions"`
	Gaps           []string        `json:"gaps"`
	Unified        string          `json:"unified"`
	Confidence     float64         `json:"confidence"`
}

// Unresolved counts contradictions left without a winner.
func (r *SynthesisReport) Unresolved() int {
	n := 0
	for _, c := range r.Contradictions {
		if c.Strategy == StrategyUnresolved {
			n++
		}
	}
	return n
}
