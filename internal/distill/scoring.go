package distill

import (
	"regexp"
	"strings"
)

// MaxScore is the top of the ordinal relevance scale.
const MaxScore = 3

// Scorer assigns an ordinal relevance score (0 = irrelevant .. 3 = core)
// to a chunk, given a query. Implementations must be deterministic so a
// distillation can be reproduced from (corpus, query, threshold).
type Scorer interface {
	Score(chunk Chunk, query string) int
}

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// LexicalScorer is the default deterministic scorer. It maps the fraction
// of query tokens present in the chunk onto the 0-3 scale:
//
//	0: no query token appears
//	1: under a third of the tokens appear
//	2: under two thirds appear
//	3: two thirds or more appear
type LexicalScorer struct{}

func (LexicalScorer) Score(chunk Chunk, query string) int {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return 0
	}

	content := tokenSet(chunk.Content)
	hits := 0
	for _, t := range queryTokens {
		if _, ok := content[t]; ok {
			hits++
		}
	}
	if hits == 0 {
		return 0
	}

	ratio := float64(hits) / float64(len(queryTokens))
	switch {
	case ratio >= 2.0/3.0:
		return 3
	case ratio >= 1.0/3.0:
		return 2
	default:
		return 1
	}
}

// tokenize lowercases and splits text into unique alphanumeric tokens of
// three or more characters, preserving first-seen order.
func tokenize(text string) []string {
	matches := tokenPattern.FindAllString(strings.ToLower(text), -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if len(m) < 3 {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range tokenize(text) {
		set[t] = struct{}{}
	}
	return set
}
