package distill

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var testCorpus = []Chunk{
	{ID: "/docs/cache", Content: "The cache layer uses an LRU eviction policy with sharded locks."},
	{ID: "/docs/deploy", Content: "Deployment happens through the blue green rollout script."},
	{ID: "/docs/schema", Content: "Database schema migrations run through the migration runner with locks."},
}

func TestDistill_SubsetAndCoverage(t *testing.T) {
	d, err := NewDistiller(nil, 2)
	if err != nil {
		t.Fatalf("NewDistiller failed: %v", err)
	}

	result, err := d.Distill(context.Background(), testCorpus, "cache eviction policy")
	if err != nil {
		t.Fatalf("Distill failed: %v", err)
	}

	if len(result.Subset) != 1 || result.Subset[0].ID != "/docs/cache" {
		t.Fatalf("subset = %v, want only /docs/cache", result.Subset)
	}

	// Every excluded chunk is accounted for.
	if len(result.Subset)+len(result.Coverage) != len(testCorpus) {
		t.Errorf("subset (%d) + coverage (%d) != corpus (%d)",
			len(result.Subset), len(result.Coverage), len(testCorpus))
	}
	for _, note := range result.Coverage {
		if note.Reason == "" {
			t.Errorf("coverage note for %s has no reason", note.ChunkID)
		}
		if note.ChunkID == "/docs/cache" {
			t.Error("kept chunk appears in coverage notes")
		}
	}
}

func TestDistill_NeverFabricates(t *testing.T) {
	d, err := NewDistiller(nil, 0)
	if err != nil {
		t.Fatalf("NewDistiller failed: %v", err)
	}
	result, err := d.Distill(context.Background(), testCorpus, "anything at all")
	if err != nil {
		t.Fatalf("Distill failed: %v", err)
	}

	known := make(map[string]bool)
	for _, c := range testCorpus {
		known[c.ID] = true
	}
	for _, c := range result.Subset {
		if !known[c.ID] {
			t.Errorf("subset contains fabricated chunk %s", c.ID)
		}
	}
}

func TestDistill_Deterministic(t *testing.T) {
	d, err := NewDistiller(nil, 1)
	if err != nil {
		t.Fatalf("NewDistiller failed: %v", err)
	}

	first, err := d.Distill(context.Background(), testCorpus, "schema migrations with locks")
	if err != nil {
		t.Fatalf("Distill failed: %v", err)
	}
	second, err := d.Distill(context.Background(), testCorpus, "schema migrations with locks")
	if err != nil {
		t.Fatalf("Distill failed: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("same inputs, different distillation (-first +second):\n%s", diff)
	}
}

func TestDistill_DuplicateID(t *testing.T) {
	d, _ := NewDistiller(nil, 1)
	dup := []Chunk{{ID: "/x", Content: "a"}, {ID: "/x", Content: "b"}}
	if _, err := d.Distill(context.Background(), dup, "q"); err == nil {
		t.Fatal("expected duplicate chunk id error")
	}
}

func TestNewDistiller_ThresholdBounds(t *testing.T) {
	for _, bad := range []int{-1, 4} {
		if _, err := NewDistiller(nil, bad); err == nil {
			t.Errorf("threshold %d accepted", bad)
		}
	}
	for thr := 0; thr <= MaxScore; thr++ {
		if _, err := NewDistiller(nil, thr); err != nil {
			t.Errorf("threshold %d rejected: %v", thr, err)
		}
	}
}

func TestLexicalScorer_Scale(t *testing.T) {
	s := LexicalScorer{}
	tests := []struct {
		name    string
		content string
		query   string
		want    int
	}{
		{"no overlap", "completely unrelated text", "cache eviction policy", 0},
		{"full overlap", "cache eviction policy explained", "cache eviction policy", 3},
		{"quarter overlap", "the cache is important here", "cache eviction policy design", 1},
		{"half overlap", "cache discussed here", "cache policy", 2},
	}
	for _, tt := range tests {
		got := s.Score(Chunk{ID: "/c", Content: tt.content}, tt.query)
		if got != tt.want {
			t.Errorf("%s: score = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestLexicalScorer_ShortTokensIgnored(t *testing.T) {
	s := LexicalScorer{}
	// "is", "a" are under three characters and never counted.
	if got := s.Score(Chunk{ID: "/c", Content: "is a"}, "is a"); got != 0 {
		t.Errorf("score = %d, want 0 for short-token-only query", got)
	}
}

func TestDistill_CancelledContext(t *testing.T) {
	d, _ := NewDistiller(nil, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Distill(ctx, testCorpus, "cache"); err == nil {
		t.Fatal("expected context error")
	}
}

func TestDistill_LargeCorpusSorted(t *testing.T) {
	d, _ := NewDistiller(nil, 0)
	result, err := d.Distill(context.Background(), testCorpus, "locks")
	if err != nil {
		t.Fatalf("Distill failed: %v", err)
	}
	for i := 1; i < len(result.Subset); i++ {
		if strings.Compare(result.Subset[i-1].ID, result.Subset[i].ID) > 0 {
			t.Fatal("subset not sorted by chunk id")
		}
	}
}
