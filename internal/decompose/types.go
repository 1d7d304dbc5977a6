// Package decompose turns a problem statement into a validated dependency
// graph of sub-problems through engine + logic-kernel collaboration.
package decompose

// Complexity labels a sub-problem for the caller's benefit. It is
// informational: nothing in the pipeline computes behavior from it except
// the solver's decision to recurse on high-complexity sub-problems.
type Complexity string

const (
	ComplexityUnset  Complexity = ""
	ComplexityLow    Complexity = "/low"
	ComplexityMedium Complexity = "/medium"
	ComplexityHigh   Complexity = "/high"
)

// Problem is the immutable input of one pipeline run.
type Problem struct {
	Statement       string   `json:"statement"`
	Constraints     []string `json:"constraints,omitempty"`
	SuccessCriteria []string `json:"success_criteria"`
}

// SubProblem is one node of a decomposition.
type SubProblem struct {
	ID               string     `json:"id"`
	Description      string     `json:"description"`
	DependsOn        []string   `json:"depends_on,omitempty"`
	Complexity       Complexity `json:"complexity,omitempty"`
	SuccessCriterion string     `json:"success_criterion"`
}

// PlanIssue is an informational finding from the plan audit.
type PlanIssue struct {
	SubProblemID string `json:"sub_problem_id"`
	IssueType    string `json:"issue_type"` // /missing_dependency, /self_dependency, /circular_dependency, /missing_criterion
}

// Decomposition is the validated output of Decompose.
type Decomposition struct {
	PlanID      string       `json:"plan_id"`
	Complexity  Complexity   `json:"complexity"`
	SubProblems []SubProblem `json:"sub_problems"`
	AuditIssues []PlanIssue  `json:"audit_issues"`

	Graph *DependencyGraph `json:"-"`
}

// SubProblem returns the sub-problem with the given id.
func (d *Decomposition) SubProblem(id string) (SubProblem, bool) {
	for _, s := range d.SubProblems {
		if s.ID == id {
			return s, true
		}
	}
	return SubProblem{}, false
}
