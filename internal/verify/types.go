package verify

// Tier names one verification tier. Tiers run in fixed order.
type Tier string

const (
	TierSyntactic Tier = "/syntactic"
	TierSemantic  Tier = "/semantic"
	TierPragmatic Tier = "/pragmatic"
)

// Outcome is the result of one tier.
type Outcome string

const (
	OutcomePass         Outcome = "/pass"
	OutcomeFail         Outcome = "/fail"
	OutcomeNotEvaluated Outcome = "/not_evaluated"
)

// CheckResult is one individual check within a tier.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// TierResult is the outcome of one tier plus its individual checks.
type TierResult struct {
	Tier    Tier          `json:"tier"`
	Outcome Outcome       `json:"outcome"`
	Checks  []CheckResult `json:"checks,omitempty"`
}

// VerificationReport is the terminal artifact of one pipeline iteration.
// Passed is true only when every evaluated tier passed and none was
// short-circuited.
type VerificationReport struct {
	Tiers          []TierResult `json:"tiers"`
	Confidence     float64      `json:"confidence"`
	BlockingIssues []string     `json:"blocking_issues"`
	Passed         bool         `json:"passed"`
}

// TierOutcome returns the recorded outcome for a tier, or OutcomeNotEvaluated
// when the tier is absent.
func (r *VerificationReport) TierOutcome(t Tier) Outcome {
	for _, tr := range r.Tiers {
		if tr.Tier == t {
			return tr.Outcome
		}
	}
	return OutcomeNotEvaluated
}
