package decompose

import (
	"errors"
	"testing"
)

func sub(id string, deps ...string) SubProblem {
	return SubProblem{
		ID:               id,
		Description:      "work on " + id,
		DependsOn:        deps,
		SuccessCriterion: id + " is done",
	}
}

func TestNewDependencyGraph_Valid(t *testing.T) {
	g, err := NewDependencyGraph([]SubProblem{
		sub("/a"),
		sub("/b", "/a"),
		sub("/c", "/a"),
		sub("/d", "/b", "/c"),
	})
	if err != nil {
		t.Fatalf("NewDependencyGraph failed: %v", err)
	}
	if g.Len() != 4 {
		t.Errorf("Len = %d, want 4", g.Len())
	}
	if !g.Contains("/c") {
		t.Error("graph should contain /c")
	}

	order := g.TopoOrder()
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for _, edge := range [][2]string{{"/a", "/b"}, {"/a", "/c"}, {"/b", "/d"}, {"/c", "/d"}} {
		if pos[edge[0]] >= pos[edge[1]] {
			t.Errorf("topo order places %s after %s", edge[0], edge[1])
		}
	}
}

func TestNewDependencyGraph_Cycle(t *testing.T) {
	_, err := NewDependencyGraph([]SubProblem{
		sub("/a", "/c"),
		sub("/b", "/a"),
		sub("/c", "/b"),
	})
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if !errors.Is(err, ErrCyclicDependency) {
		t.Errorf("error = %v, want ErrCyclicDependency", err)
	}
}

func TestNewDependencyGraph_SelfLoop(t *testing.T) {
	_, err := NewDependencyGraph([]SubProblem{sub("/a", "/a")})
	if !errors.Is(err, ErrCyclicDependency) {
		t.Errorf("error = %v, want ErrCyclicDependency", err)
	}
}

func TestNewDependencyGraph_UnknownDependency(t *testing.T) {
	_, err := NewDependencyGraph([]SubProblem{sub("/a", "/ghost")})
	if !errors.Is(err, ErrUnknownDependency) {
		t.Errorf("error = %v, want ErrUnknownDependency", err)
	}
}

func TestNewDependencyGraph_DuplicateID(t *testing.T) {
	_, err := NewDependencyGraph([]SubProblem{sub("/a"), sub("/a")})
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("error = %v, want ErrDuplicateID", err)
	}
}

func TestGraph_Ready(t *testing.T) {
	g, err := NewDependencyGraph([]SubProblem{
		sub("/a"),
		sub("/b"),
		sub("/c", "/a", "/b"),
	})
	if err != nil {
		t.Fatalf("NewDependencyGraph failed: %v", err)
	}

	ready := g.Ready(nil, nil)
	if len(ready) != 2 || ready[0] != "/a" || ready[1] != "/b" {
		t.Fatalf("Ready = %v, want [/a /b]", ready)
	}

	ready = g.Ready(map[string]bool{"/a": true}, nil)
	if len(ready) != 1 || ready[0] != "/b" {
		t.Fatalf("Ready after /a = %v, want [/b]", ready)
	}

	ready = g.Ready(map[string]bool{"/a": true, "/b": true}, nil)
	if len(ready) != 1 || ready[0] != "/c" {
		t.Fatalf("Ready after /a,/b = %v, want [/c]", ready)
	}

	ready = g.Ready(map[string]bool{"/a": true, "/b": true}, map[string]bool{"/c": true})
	if len(ready) != 0 {
		t.Fatalf("Ready with /c in flight = %v, want none", ready)
	}
}

func TestGraph_Reaches(t *testing.T) {
	g, err := NewDependencyGraph([]SubProblem{
		sub("/a"),
		sub("/b", "/a"),
		sub("/c", "/b"),
		sub("/d"),
	})
	if err != nil {
		t.Fatalf("NewDependencyGraph failed: %v", err)
	}

	if !g.Reaches("/c", "/a") {
		t.Error("/c should transitively depend on /a")
	}
	if g.Reaches("/a", "/c") {
		t.Error("/a should not depend on /c")
	}
	if g.Reaches("/d", "/a") {
		t.Error("/d has no dependencies")
	}
	if g.Reaches("/c", "/missing") {
		t.Error("unknown target should not be reachable")
	}
}

func TestGraph_CycleWitnessIsDeterministic(t *testing.T) {
	build := func() error {
		_, err := NewDependencyGraph([]SubProblem{
			sub("/a", "/b"),
			sub("/b", "/a"),
			sub("/c"),
		})
		return err
	}
	first := build()
	if first == nil {
		t.Fatal("expected cycle error")
	}
	for i := 0; i < 5; i++ {
		if got := build(); got.Error() != first.Error() {
			t.Fatalf("cycle witness changed between runs: %q vs %q", first, got)
		}
	}
}
