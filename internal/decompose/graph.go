package decompose

import (
	"container/heap"
	"sort"
)

// DependencyGraph is an immutable, validated DAG over sub-problem ids.
// Edges point from a dependency to the sub-problems that need it.
//
// It is safe for concurrent read access.
type DependencyGraph struct {
	ids      []string // declaration order
	index    map[string]int
	outgoing [][]int // dependency -> dependents, sorted ascending
	incoming [][]int // dependents -> dependencies, sorted ascending
	indeg    []int
	depth    []int // topological depth per node
}

// NewDependencyGraph builds and validates a graph from sub-problems.
//
// Validation rejects duplicate ids, dependencies on undeclared ids, and any
// cycle (with a deterministic witness path in the error).
func NewDependencyGraph(subs []SubProblem) (*DependencyGraph, error) {
	index := make(map[string]int, len(subs))
	ids := make([]string, 0, len(subs))
	for i, sp := range subs {
		if _, exists := index[sp.ID]; exists {
			return nil, duplicateIDError(sp.ID)
		}
		index[sp.ID] = i
		ids = append(ids, sp.ID)
	}

	n := len(subs)
	outgoing := make([][]int, n)
	incoming := make([][]int, n)
	indeg := make([]int, n)

	for i, sp := range subs {
		seen := make(map[int]struct{}, len(sp.DependsOn))
		for _, dep := range sp.DependsOn {
			j, ok := index[dep]
			if !ok {
				return nil, unknownDepError(sp.ID, dep)
			}
			if j == i {
				return nil, cycleError([]string{sp.ID, sp.ID})
			}
			if _, dup := seen[j]; dup {
				continue
			}
			seen[j] = struct{}{}
			outgoing[j] = append(outgoing[j], i)
			incoming[i] = append(incoming[i], j)
			indeg[i]++
		}
	}
	for i := range outgoing {
		sort.Ints(outgoing[i])
	}
	for i := range incoming {
		sort.Ints(incoming[i])
	}

	g := &DependencyGraph{
		ids:      ids,
		index:    index,
		outgoing: outgoing,
		incoming: incoming,
		indeg:    indeg,
	}

	if err := g.validateAcyclic(); err != nil {
		return nil, err
	}
	g.computeDepths()

	return g, nil
}

// validateAcyclic proves the graph has no cycles using Kahn's algorithm.
// If a cycle exists, it deterministically extracts one cycle path.
func (g *DependencyGraph) validateAcyclic() error {
	order := g.topoOrderIndices()
	if len(order) == len(g.ids) {
		return nil
	}
	return cycleError(g.findCycleDeterministic())
}

type intMinHeap []int

func (h intMinHeap) Len() int           { return len(h) }
func (h intMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intMinHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topoOrderIndices returns a deterministic topological ordering of node
// indices. The ready queue is a min-heap by declaration index.
func (g *DependencyGraph) topoOrderIndices() []int {
	indeg := make([]int, len(g.indeg))
	copy(indeg, g.indeg)

	ready := &intMinHeap{}
	heap.Init(ready)
	for i := range indeg {
		if indeg[i] == 0 {
			heap.Push(ready, i)
		}
	}

	out := make([]int, 0, len(indeg))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		out = append(out, n)
		for _, m := range g.outgoing[n] {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	return out
}

// findCycleDeterministic performs a deterministic DFS over declaration
// indices to extract one cycle path. It returns a single stable witness,
// not every cycle.
func (g *DependencyGraph) findCycleDeterministic() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make([]int, len(g.ids))
	parent := make([]int, len(g.ids))
	for i := range parent {
		parent[i] = -1
	}

	var cycle []int
	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		for _, v := range g.outgoing[u] {
			if color[v] == white {
				parent[v] = u
				if dfs(v) {
					return true
				}
			} else if color[v] == gray {
				// Walk back from u to v to recover the path.
				cycle = []int{v}
				for x := u; x != v && x != -1; x = parent[x] {
					cycle = append(cycle, x)
				}
				// Reverse into forward order and close the loop.
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}

	for i := range g.ids {
		if color[i] == white && dfs(i) {
			break
		}
	}

	path := make([]string, 0, len(cycle))
	for _, idx := range cycle {
		path = append(path, g.ids[idx])
	}
	return path
}

// computeDepths assigns each node its topological depth (longest distance
// from any root).
func (g *DependencyGraph) computeDepths() {
	g.depth = make([]int, len(g.ids))
	for _, i := range g.topoOrderIndices() {
		d := 0
		for _, p := range g.incoming[i] {
			if g.depth[p]+1 > d {
				d = g.depth[p] + 1
			}
		}
		g.depth[i] = d
	}
}

// Len returns the number of sub-problems in the graph.
func (g *DependencyGraph) Len() int { return len(g.ids) }

// IDs returns the sub-problem ids in declaration order.
func (g *DependencyGraph) IDs() []string {
	out := make([]string, len(g.ids))
	copy(out, g.ids)
	return out
}

// Contains reports whether the id is a node of the graph.
func (g *DependencyGraph) Contains(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Dependencies returns the dependency ids of a sub-problem, in declaration
// order of the dependencies.
func (g *DependencyGraph) Dependencies(id string) []string {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.incoming[i]))
	for _, p := range g.incoming[i] {
		out = append(out, g.ids[p])
	}
	return out
}

// Dependents returns the ids that depend on the given sub-problem.
func (g *DependencyGraph) Dependents(id string) []string {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.outgoing[i]))
	for _, c := range g.outgoing[i] {
		out = append(out, g.ids[c])
	}
	return out
}

// Depth returns the topological depth of a sub-problem.
func (g *DependencyGraph) Depth(id string) (int, bool) {
	i, ok := g.index[id]
	if !ok {
		return 0, false
	}
	return g.depth[i], true
}

// TopoOrder returns the ids in a deterministic topological order.
func (g *DependencyGraph) TopoOrder() []string {
	order := g.topoOrderIndices()
	out := make([]string, 0, len(order))
	for _, i := range order {
		out = append(out, g.ids[i])
	}
	return out
}

// Reaches reports whether id transitively depends on target.
func (g *DependencyGraph) Reaches(id, target string) bool {
	start, ok := g.index[id]
	if !ok {
		return false
	}
	goal, ok := g.index[target]
	if !ok {
		return false
	}
	seen := make(map[int]bool)
	stack := []int{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, p := range g.incoming[n] {
			if p == goal {
				return true
			}
			if !seen[p] {
				seen[p] = true
				stack = append(stack, p)
			}
		}
	}
	return false
}

// Ready returns the deterministically ordered ids that are eligible to
// solve: not yet done, with every dependency in done.
//
// The returned list is sorted by (topological depth asc, id asc).
// This function is pure: it does not mutate the graph.
func (g *DependencyGraph) Ready(done map[string]bool, inFlight map[string]bool) []string {
	ready := make([]string, 0)
	for i, id := range g.ids {
		if done[id] || inFlight[id] {
			continue
		}
		depsOK := true
		for _, p := range g.incoming[i] {
			if !done[g.ids[p]] {
				depsOK = false
				break
			}
		}
		if depsOK {
			ready = append(ready, id)
		}
	}

	sort.Slice(ready, func(i, j int) bool {
		a, b := ready[i], ready[j]
		ad := g.depth[g.index[a]]
		bd := g.depth[g.index[b]]
		if ad != bd {
			return ad < bd
		}
		return a < b
	})

	return ready
}
