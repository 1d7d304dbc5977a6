package memory

import (
	"context"
	"path/filepath"
	"testing"

	"metis/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *LessonStore {
	t.Helper()
	store, err := NewLessonStore(filepath.Join(t.TempDir(), "lessons.db"))
	if err != nil {
		t.Fatalf("NewLessonStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLessonStore_RecordAndRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	lessons := []pipeline.Lesson{
		{RunID: "/run_1", Problem: "first problem", Passed: false, Iterations: 3, Confidence: 0.2, Summary: "gave up"},
		{RunID: "/run_2", Problem: "second problem", Passed: true, Iterations: 1, Confidence: 0.95, Summary: "clean pass"},
	}
	for _, l := range lessons {
		if err := store.RecordLesson(ctx, l); err != nil {
			t.Fatalf("RecordLesson failed: %v", err)
		}
	}

	recent, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("recent = %d, want 2", len(recent))
	}
	// Most recent first.
	if recent[0].RunID != "/run_2" || recent[1].RunID != "/run_1" {
		t.Errorf("order = [%s %s], want newest first", recent[0].RunID, recent[1].RunID)
	}
	if !recent[0].Passed || recent[1].Passed {
		t.Error("passed flag lost through storage")
	}
	if recent[0].Confidence != 0.95 {
		t.Errorf("confidence = %v, want 0.95", recent[0].Confidence)
	}
}

func TestLessonStore_RecentLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := store.RecordLesson(ctx, pipeline.Lesson{RunID: "/run_x", Problem: "p"}); err != nil {
			t.Fatalf("RecordLesson failed: %v", err)
		}
	}
	recent, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("recent = %d, want limit 2", len(recent))
	}
}

func TestLessonStore_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "lessons.db")
	ctx := context.Background()

	store, err := NewLessonStore(dbPath)
	require.NoError(t, err)
	err = store.RecordLesson(ctx, pipeline.Lesson{
		RunID: "/run_keep", Problem: "survives restart", Passed: true, Iterations: 2, Confidence: 0.8, Summary: "done",
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewLessonStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	recent, err := reopened.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "/run_keep", recent[0].RunID)
	assert.Equal(t, "survives restart", recent[0].Problem)
	assert.True(t, recent[0].Passed)
}

func TestLessonStore_EmptyRecent(t *testing.T) {
	store := openTestStore(t)
	recent, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 0 {
		t.Errorf("recent = %v, want empty", recent)
	}
}
