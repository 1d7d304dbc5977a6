package decompose

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"metis/internal/engine"
	"metis/internal/logging"
)

// Decomposer proposes decompositions through the reasoning engine and
// validates them before returning.
type Decomposer struct {
	eng engine.Engine
}

// NewDecomposer creates a new decomposer.
func NewDecomposer(eng engine.Engine) *Decomposer {
	return &Decomposer{eng: eng}
}

// rawPlan is the engine's proposed plan structure.
type rawPlan struct {
	Complexity  string          `json:"complexity"`
	SubProblems []rawSubProblem `json:"subproblems"`
}

// rawSubProblem is one proposed sub-problem. depends_on holds indices of
// earlier entries in the same plan; forward references are dropped.
type rawSubProblem struct {
	Description      string `json:"description"`
	Complexity       string `json:"complexity"`
	SuccessCriterion string `json:"success_criterion"`
	DependsOn        []int  `json:"depends_on"`
}

// Decompose turns a problem into a validated dependency graph of
// sub-problems. feedback carries accumulated verification feedback from
// earlier iterations of the same run.
//
// Fails with ErrAmbiguousScope when the problem has no identifiable success
// criterion, and with ErrCyclicDependency when the proposed plan survives
// refinement with a cycle intact.
func (d *Decomposer) Decompose(ctx context.Context, problem Problem, feedback []string) (*Decomposition, error) {
	timer := logging.StartTimer(logging.CategoryPlan, "Decompose")
	defer timer.Stop()

	if !hasSuccessCriterion(problem) {
		return nil, ErrAmbiguousScope
	}

	planTag := uuid.New().String()[:8]
	planID := fmt.Sprintf("/plan_%s", planTag)

	plan, err := d.proposePlan(ctx, problem, feedback)
	if err != nil {
		return nil, fmt.Errorf("failed to propose plan: %w", err)
	}

	subs := buildSubProblems(planTag, plan)
	issues, err := AuditPlan(subs)
	if err != nil {
		return nil, err
	}

	// One refinement round when the audit finds defects.
	if len(issues) > 0 {
		logging.Plan("plan %s has %d audit issues, refining", planID, len(issues))
		refined, rerr := d.refinePlan(ctx, plan, issues)
		if rerr == nil && refined != nil {
			subs = buildSubProblems(planTag, refined)
			issues, err = AuditPlan(subs)
			if err != nil {
				return nil, err
			}
		}
	}

	graph, err := NewDependencyGraph(subs)
	if err != nil {
		return nil, err
	}

	logging.Plan("plan %s: %d sub-problems, %d edges of feedback applied, %d residual issues",
		planID, len(subs), len(feedback), len(issues))

	return &Decomposition{
		PlanID:      planID,
		Complexity:  normalizeComplexity(plan.Complexity),
		SubProblems: subs,
		AuditIssues: issues,
		Graph:       graph,
	}, nil
}

// FromSubProblems builds a validated Decomposition from caller-supplied
// sub-problems, bypassing the engine. Used for nested pipelines and tests.
func FromSubProblems(subs []SubProblem) (*Decomposition, error) {
	graph, err := NewDependencyGraph(subs)
	if err != nil {
		return nil, err
	}
	issues, err := AuditPlan(subs)
	if err != nil {
		return nil, err
	}
	return &Decomposition{
		PlanID:      fmt.Sprintf("/plan_%s", uuid.New().String()[:8]),
		SubProblems: subs,
		AuditIssues: issues,
		Graph:       graph,
	}, nil
}

var criterionMarkers = regexp.MustCompile(`(?i)\b(must|should|until|so that|succeed|success|verif|criteri|ensure|prove|pass)\b`)

// hasSuccessCriterion reports whether a problem carries an identifiable
// success criterion: explicit criteria, or criterion-bearing phrasing in
// the statement.
func hasSuccessCriterion(p Problem) bool {
	for _, c := range p.SuccessCriteria {
		if strings.TrimSpace(c) != "" {
			return true
		}
	}
	return criterionMarkers.MatchString(p.Statement)
}

// proposePlan asks the engine to propose a decomposition.
func (d *Decomposer) proposePlan(ctx context.Context, problem Problem, feedback []string) (*rawPlan, error) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("PROBLEM: %s\n\n", problem.Statement))

	if len(problem.Constraints) > 0 {
		sb.WriteString("CONSTRAINTS:\n")
		for _, c := range problem.Constraints {
			sb.WriteString(fmt.Sprintf("- %s\n", c))
		}
		sb.WriteString("\n")
	}

	if len(problem.SuccessCriteria) > 0 {
		sb.WriteString("SUCCESS CRITERIA:\n")
		for _, c := range problem.SuccessCriteria {
			sb.WriteString(fmt.Sprintf("- %s\n", c))
		}
		sb.WriteString("\n")
	}

	if len(feedback) > 0 {
		sb.WriteString("FEEDBACK FROM PRIOR ITERATIONS (fix these):\n")
		for _, f := range feedback {
			sb.WriteString(fmt.Sprintf("- %s\n", f))
		}
		sb.WriteString("\n")
	}

	prompt := fmt.Sprintf(`You are a problem decomposition expert. Split the problem into
independently describable sub-problems forming a dependency DAG.

%s
Rules:
- Each sub-problem needs a short description and a verifiable success criterion.
- depends_on lists indices of EARLIER sub-problems only. No cycles.
- Tag complexity as /low, /medium or /high. /high sub-problems may be decomposed again downstream.

Output JSON:
{
  "complexity": "/low|/medium|/high",
  "subproblems": [
    {
      "description": "what this sub-problem resolves",
      "complexity": "/low|/medium|/high",
      "success_criterion": "how to tell it is done",
      "depends_on": [earlier_indices]
    }
  ]
}

Output ONLY valid JSON:`, sb.String())

	resp, err := d.eng.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	resp = engine.CleanJSONResponse(resp)
	var plan rawPlan
	if err := json.Unmarshal([]byte(resp), &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan JSON: %w", err)
	}
	if len(plan.SubProblems) == 0 {
		return nil, fmt.Errorf("engine proposed an empty plan")
	}

	return &plan, nil
}

// refinePlan asks the engine to fix audit issues in a proposed plan.
func (d *Decomposer) refinePlan(ctx context.Context, plan *rawPlan, issues []PlanIssue) (*rawPlan, error) {
	if len(issues) == 0 {
		return plan, nil
	}

	var issuesSummary strings.Builder
	for _, issue := range issues {
		issuesSummary.WriteString(fmt.Sprintf("- [%s] %s\n", issue.IssueType, issue.SubProblemID))
	}

	planJSON, _ := json.MarshalIndent(plan, "", "  ")

	prompt := fmt.Sprintf(`The following decomposition has validation issues:

CURRENT PLAN:
%s

ISSUES:
%s

Fix them and output the corrected plan as JSON.
- For circular or self dependencies: adjust depends_on to reference earlier indices only
- For missing criteria: add a verifiable success_criterion

Output ONLY valid JSON with the same structure as the input:`, string(planJSON), issuesSummary.String())

	resp, err := d.eng.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	resp = engine.CleanJSONResponse(resp)
	var refined rawPlan
	if err := json.Unmarshal([]byte(resp), &refined); err != nil {
		return nil, fmt.Errorf("failed to parse refined plan: %w", err)
	}

	return &refined, nil
}

// buildSubProblems converts a raw plan to sub-problems with stable ids.
// Only backward index references survive, which keeps engine output inside
// the declared-earlier invariant.
func buildSubProblems(planTag string, plan *rawPlan) []SubProblem {
	subs := make([]SubProblem, 0, len(plan.SubProblems))
	for i, raw := range plan.SubProblems {
		sp := SubProblem{
			ID:               fmt.Sprintf("/sub_%s_%d", planTag, i),
			Description:      raw.Description,
			Complexity:       normalizeComplexity(raw.Complexity),
			SuccessCriterion: raw.SuccessCriterion,
		}
		for _, depIdx := range raw.DependsOn {
			if depIdx >= 0 && depIdx < i {
				sp.DependsOn = append(sp.DependsOn, fmt.Sprintf("/sub_%s_%d", planTag, depIdx))
			}
		}
		subs = append(subs, sp)
	}
	return subs
}

// normalizeComplexity coerces complexity strings into canonical /atom form.
// Unknown values stay unset: the tag is informational, not invented.
func normalizeComplexity(raw string) Complexity {
	c := strings.TrimSpace(strings.ToLower(raw))
	if c != "" && !strings.HasPrefix(c, "/") {
		c = "/" + c
	}
	switch Complexity(c) {
	case ComplexityLow, ComplexityMedium, ComplexityHigh:
		return Complexity(c)
	default:
		return ComplexityUnset
	}
}
