package pipeline

// State is the orchestrator's position in one run.
type State string

const (
	StateInit         State = "/init"
	StateDistilling   State = "/distilling"
	StateDecomposing  State = "/decomposing"
	StateSolving      State = "/solving"
	StateSynthesizing State = "/synthesizing"
	StateVerifying    State = "/verifying"
	StateIterating    State = "/iterating"
	StateDone         State = "/done"
)

// IterationRecord is appended every time the run leaves Verifying. The
// sequence is append-only and ordered by Index.
type IterationRecord struct {
	Index      int      `json:"index"`
	Passed     bool     `json:"passed"`
	Confidence float64  `json:"confidence"`
	Feedback   []string `json:"feedback,omitempty"` // applied to this iteration's decompose
}
