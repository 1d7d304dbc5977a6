// Package distill reduces a corpus of addressable chunks to the subset
// relevant to a query. The subset is always a strict selection by chunk id;
// content is never fabricated, and every exclusion is accounted for.
package distill

import (
	"context"
	"fmt"
	"sort"

	"metis/internal/logging"
)

// Chunk is one addressable unit of a corpus.
type Chunk struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// CoverageNote records why a chunk was excluded from the subset.
type CoverageNote struct {
	ChunkID string `json:"chunk_id"`
	Score   int    `json:"score"`
	Reason  string `json:"reason"`
}

// Distillation is the reproducible result of one distill call.
// The same (corpus, query, threshold) triple always yields the same subset.
type Distillation struct {
	Query     string         `json:"query"`
	Threshold int            `json:"threshold"`
	Subset    []Chunk        `json:"subset"`
	Coverage  []CoverageNote `json:"coverage"`
}

// Distiller scores corpus chunks against a query and keeps those at or
// above the threshold.
type Distiller struct {
	scorer    Scorer
	threshold int
}

// NewDistiller creates a distiller. A nil scorer falls back to the
// deterministic lexical scorer.
func NewDistiller(scorer Scorer, threshold int) (*Distiller, error) {
	if threshold < 0 || threshold > MaxScore {
		return nil, fmt.Errorf("distill threshold must be in [0,%d], got %d", MaxScore, threshold)
	}
	if scorer == nil {
		scorer = LexicalScorer{}
	}
	return &Distiller{scorer: scorer, threshold: threshold}, nil
}

// Threshold returns the ordinal cutoff the distiller applies.
func (d *Distiller) Threshold() int { return d.threshold }

// Distill selects the subset of corpus chunks relevant to the query.
//
// Every input chunk is either in the subset or accounted for in the
// coverage notes; no chunk is invented and none silently dropped.
func (d *Distiller) Distill(ctx context.Context, corpus []Chunk, query string) (*Distillation, error) {
	timer := logging.StartTimer(logging.CategoryDistill, "Distill")
	defer timer.Stop()

	seen := make(map[string]struct{}, len(corpus))
	subset := make([]Chunk, 0, len(corpus))
	coverage := make([]CoverageNote, 0)

	for _, chunk := range corpus {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if chunk.ID == "" {
			return nil, fmt.Errorf("corpus chunk without id")
		}
		if _, dup := seen[chunk.ID]; dup {
			return nil, fmt.Errorf("duplicate chunk id %q", chunk.ID)
		}
		seen[chunk.ID] = struct{}{}

		score := d.scorer.Score(chunk, query)
		if score < 0 {
			score = 0
		} else if score > MaxScore {
			score = MaxScore
		}

		if score >= d.threshold {
			subset = append(subset, chunk)
		} else {
			coverage = append(coverage, CoverageNote{
				ChunkID: chunk.ID,
				Score:   score,
				Reason:  fmt.Sprintf("relevance %d below threshold %d", score, d.threshold),
			})
		}
	}

	sort.Slice(subset, func(i, j int) bool { return subset[i].ID < subset[j].ID })
	sort.Slice(coverage, func(i, j int) bool { return coverage[i].ChunkID < coverage[j].ChunkID })

	logging.Distill("distilled %d/%d chunks at threshold %d for query %q",
		len(subset), len(corpus), d.threshold, query)

	return &Distillation{
		Query:     query,
		Threshold: d.threshold,
		Subset:    subset,
		Coverage:  coverage,
	}, nil
}
