package synth

import "strings"

// negationMarkers flip the polarity of a result text. A pair of
// overlapping results with differing polarity is read as a contradiction.
var negationMarkers = map[string]bool{
	"not":        true,
	"no":         true,
	"never":      true,
	"cannot":     true,
	"without":    true,
	"fails":      true,
	"failed":     true,
	"false":      true,
	"impossible": true,
	"invalid":    true,
}

// tokenSet lowercases text and extracts unique alphanumeric tokens of
// three or more characters.
func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	var cur strings.Builder
	flush := func() {
		if cur.Len() >= 3 {
			set[cur.String()] = true
		}
		cur.Reset()
	}
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return set
}

// jaccard is |a ∩ b| / |a ∪ b| over token sets. Zero when either is empty.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if b[tok] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// polarity reports whether text asserts negatively. It scans whole words,
// so "note" does not count as "not".
func polarity(text string) bool {
	var cur strings.Builder
	check := func() bool {
		word := cur.String()
		cur.Reset()
		return negationMarkers[word]
	}
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || r == '\'' {
			cur.WriteRune(r)
		} else if check() {
			return true
		}
	}
	return check()
}
