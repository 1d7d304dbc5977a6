package solve

// SubResult is the outcome of solving one sub-problem. Write-once: the
// pipeline records at most one SubResult per sub-problem id.
type SubResult struct {
	SubProblemID string  `json:"sub_problem_id"`
	Approach     string  `json:"approach"`
	Result       string  `json:"result"`
	Confidence   float64 `json:"confidence"` // in [0,1]
}
