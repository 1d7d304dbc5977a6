// Package logic wraps the google/mangle engine behind a small fact-oriented
// kernel. The decomposer loads plan facts into it and reads back derived
// plan_issue facts; rules are compiled in rather than discovered on disk.
package logic

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
)

// Fact represents a single logical fact (atom) in the EDB.
type Fact struct {
	Predicate string
	Args      []interface{}
}

// String returns the Datalog string representation of the fact.
func (f Fact) String() string {
	var args []string
	for _, arg := range f.Args {
		switch v := arg.(type) {
		case string:
			// Handle Mangle name constants (start with /)
			if strings.HasPrefix(v, "/") {
				args = append(args, v)
			} else {
				args = append(args, fmt.Sprintf("%q", v))
			}
		case int:
			args = append(args, fmt.Sprintf("%d", v))
		case int64:
			args = append(args, fmt.Sprintf("%d", v))
		case float64:
			args = append(args, fmt.Sprintf("%f", v))
		case bool:
			if v {
				args = append(args, "/true")
			} else {
				args = append(args, "/false")
			}
		default:
			args = append(args, fmt.Sprintf("%v", v))
		}
	}
	return fmt.Sprintf("%s(%s).", f.Predicate, strings.Join(args, ", "))
}

// Kernel evaluates a fixed rule set over a mutable EDB.
type Kernel struct {
	mu          sync.RWMutex
	facts       []Fact
	store       factstore.FactStore
	programInfo *analysis.ProgramInfo
	rules       string
	initialized bool
}

// NewKernel creates a kernel with the given rule program (IDB).
func NewKernel(rules string) *Kernel {
	return &Kernel{
		facts: make([]Fact, 0),
		store: factstore.NewSimpleInMemoryStore(),
		rules: rules,
	}
}

// LoadFacts adds facts to the EDB and re-evaluates to fixpoint.
func (k *Kernel) LoadFacts(facts []Fact) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.facts = append(k.facts, facts...)
	return k.rebuild()
}

// Retract removes all facts of a given predicate and re-evaluates.
func (k *Kernel) Retract(predicate string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	filtered := make([]Fact, 0, len(k.facts))
	for _, f := range k.facts {
		if f.Predicate != predicate {
			filtered = append(filtered, f)
		}
	}
	k.facts = filtered
	return k.rebuild()
}

// Clear resets the kernel to empty state.
func (k *Kernel) Clear() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.facts = make([]Fact, 0)
	k.store = factstore.NewSimpleInMemoryStore()
	k.initialized = false
}

// FactCount returns the number of EDB facts loaded.
func (k *Kernel) FactCount() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.facts)
}

// rebuild reconstructs the program and evaluates to fixpoint.
func (k *Kernel) rebuild() error {
	var sb strings.Builder

	// Facts (EDB)
	for _, f := range k.facts {
		sb.WriteString(f.String())
		sb.WriteString("\n")
	}

	// Rules (IDB)
	sb.WriteString(k.rules)

	parsed, err := parse.Unit(strings.NewReader(sb.String()))
	if err != nil {
		return fmt.Errorf("failed to parse program: %w", err)
	}

	programInfo, err := analysis.AnalyzeOneUnit(parsed, nil)
	if err != nil {
		return fmt.Errorf("failed to analyze program: %w", err)
	}
	k.programInfo = programInfo

	k.store = factstore.NewSimpleInMemoryStore()

	if _, err := engine.EvalProgramWithStats(programInfo, k.store); err != nil {
		return fmt.Errorf("failed to evaluate program: %w", err)
	}

	k.initialized = true
	return nil
}

// Query retrieves all facts matching a predicate pattern.
func (k *Kernel) Query(predicate string) ([]Fact, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if !k.initialized {
		return nil, fmt.Errorf("kernel not initialized")
	}

	results := make([]Fact, 0)
	if k.programInfo == nil {
		return results, nil
	}

	for pred := range k.programInfo.Decls {
		if pred.Symbol == predicate {
			k.store.GetFacts(ast.NewQuery(pred), func(a ast.Atom) error {
				results = append(results, atomToFact(a))
				return nil
			})
			break
		}
	}

	return results, nil
}

// atomToFact converts a Mangle AST Atom back to our Fact type.
func atomToFact(a ast.Atom) Fact {
	args := make([]interface{}, len(a.Args))
	for i, term := range a.Args {
		args[i] = baseTermToValue(term)
	}
	return Fact{
		Predicate: a.Predicate.Symbol,
		Args:      args,
	}
}

// baseTermToValue extracts the Go value from a Mangle BaseTerm.
func baseTermToValue(term ast.BaseTerm) interface{} {
	switch t := term.(type) {
	case ast.Constant:
		switch t.Type {
		case ast.NameType:
			return t.Symbol
		case ast.StringType:
			return t.Symbol
		case ast.NumberType:
			return t.NumValue
		case ast.Float64Type:
			return t.Float64Value
		default:
			return t.Symbol
		}
	case ast.Variable:
		return fmt.Sprintf("?%s", t.Symbol)
	default:
		return fmt.Sprintf("%v", term)
	}
}
