package decompose

import "testing"

func findIssue(issues []PlanIssue, subID, kind string) bool {
	for _, i := range issues {
		if i.SubProblemID == subID && i.IssueType == kind {
			return true
		}
	}
	return false
}

func TestAuditPlan_CleanPlan(t *testing.T) {
	issues, err := AuditPlan([]SubProblem{
		sub("/a"),
		sub("/b", "/a"),
	})
	if err != nil {
		t.Fatalf("AuditPlan failed: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("clean plan produced issues: %v", issues)
	}
}

func TestAuditPlan_SelfDependency(t *testing.T) {
	issues, err := AuditPlan([]SubProblem{sub("/a", "/a")})
	if err != nil {
		t.Fatalf("AuditPlan failed: %v", err)
	}
	if !findIssue(issues, "/a", "/self_dependency") {
		t.Errorf("expected /self_dependency for /a, got %v", issues)
	}
	if !findIssue(issues, "/a", "/circular_dependency") {
		t.Errorf("expected /circular_dependency for /a, got %v", issues)
	}
}

func TestAuditPlan_CircularDependency(t *testing.T) {
	issues, err := AuditPlan([]SubProblem{
		sub("/a", "/b"),
		sub("/b", "/a"),
	})
	if err != nil {
		t.Fatalf("AuditPlan failed: %v", err)
	}
	if !findIssue(issues, "/a", "/circular_dependency") || !findIssue(issues, "/b", "/circular_dependency") {
		t.Errorf("expected circular_dependency on both nodes, got %v", issues)
	}
}

func TestAuditPlan_MissingDependency(t *testing.T) {
	issues, err := AuditPlan([]SubProblem{sub("/a", "/ghost")})
	if err != nil {
		t.Fatalf("AuditPlan failed: %v", err)
	}
	if !findIssue(issues, "/a", "/missing_dependency") {
		t.Errorf("expected /missing_dependency for /a, got %v", issues)
	}
}

func TestAuditPlan_MissingCriterion(t *testing.T) {
	s := sub("/a")
	s.SuccessCriterion = ""
	issues, err := AuditPlan([]SubProblem{s})
	if err != nil {
		t.Fatalf("AuditPlan failed: %v", err)
	}
	if !findIssue(issues, "/a", "/missing_criterion") {
		t.Errorf("expected /missing_criterion for /a, got %v", issues)
	}
}
