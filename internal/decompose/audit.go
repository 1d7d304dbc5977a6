package decompose

import (
	"fmt"

	"metis/internal/logic"
	"metis/internal/logging"
)

// planRules derive plan_issue facts from a decomposition's fact base.
// Acyclicity is enforced structurally by NewDependencyGraph; the kernel
// audit re-derives the same findings plus criterion gaps so callers get a
// uniform issue list.
const planRules = `
Decl subproblem(Id).
Decl has_criterion(Id).
Decl dependency(Id, Dep).

reaches(X, Y) :- dependency(X, Y).
reaches(X, Z) :- dependency(X, Y), reaches(Y, Z).

plan_issue(Id, /self_dependency) :- dependency(Id, Id).
plan_issue(Id, /circular_dependency) :- reaches(Id, Id).
plan_issue(Id, /missing_dependency) :- dependency(Id, Dep), !subproblem(Dep).
plan_issue(Id, /missing_criterion) :- subproblem(Id), !has_criterion(Id).
`

// AuditPlan loads a decomposition into the logic kernel and reads back the
// derived plan_issue facts.
func AuditPlan(subs []SubProblem) ([]PlanIssue, error) {
	kernel := logic.NewKernel(planRules)

	facts := make([]logic.Fact, 0, len(subs)*2)
	for _, sp := range subs {
		facts = append(facts, logic.Fact{
			Predicate: "subproblem",
			Args:      []interface{}{sp.ID},
		})
		if sp.SuccessCriterion != "" {
			facts = append(facts, logic.Fact{
				Predicate: "has_criterion",
				Args:      []interface{}{sp.ID},
			})
		}
		for _, dep := range sp.DependsOn {
			facts = append(facts, logic.Fact{
				Predicate: "dependency",
				Args:      []interface{}{sp.ID, dep},
			})
		}
	}

	if err := kernel.LoadFacts(facts); err != nil {
		return nil, fmt.Errorf("plan audit failed: %w", err)
	}

	derived, err := kernel.Query("plan_issue")
	if err != nil {
		return nil, fmt.Errorf("plan audit query failed: %w", err)
	}

	issues := make([]PlanIssue, 0, len(derived))
	for _, f := range derived {
		if len(f.Args) < 2 {
			continue
		}
		issues = append(issues, PlanIssue{
			SubProblemID: fmt.Sprintf("%v", f.Args[0]),
			IssueType:    fmt.Sprintf("%v", f.Args[1]),
		})
	}

	logging.PlanDebug("plan audit: %d facts, %d issues", len(facts), len(issues))
	return issues, nil
}
