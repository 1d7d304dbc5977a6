// Package memory persists lessons learned from finished runs. It is a
// write-mostly sink: the pipeline records fire-and-forget, and the CLI can
// list what past runs taught.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"metis/internal/logging"
	"metis/internal/pipeline"
)

// LessonStore keeps lessons in a local SQLite database.
type LessonStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// StoredLesson is one persisted lesson row.
type StoredLesson struct {
	ID         int64
	RunID      string
	Problem    string
	Passed     bool
	Iterations int
	Confidence float64
	Summary    string
	CreatedAt  time.Time
}

// NewLessonStore opens (or creates) the lesson database at path.
func NewLessonStore(path string) (*LessonStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open lesson database: %w", err)
	}

	store := &LessonStore{db: db, dbPath: path}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *LessonStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS lessons (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		problem TEXT NOT NULL,
		passed INTEGER NOT NULL,
		iterations INTEGER NOT NULL,
		confidence REAL NOT NULL,
		summary TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_lessons_run ON lessons(run_id);`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create lessons table: %w", err)
	}
	return nil
}

// RecordLesson implements pipeline.LessonSink.
func (s *LessonStore) RecordLesson(ctx context.Context, lesson pipeline.Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lessons (run_id, problem, passed, iterations, confidence, summary)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		lesson.RunID, lesson.Problem, boolToInt(lesson.Passed),
		lesson.Iterations, lesson.Confidence, lesson.Summary)
	if err != nil {
		return fmt.Errorf("failed to record lesson: %w", err)
	}

	logging.Memory("recorded lesson for run %s (passed=%v)", lesson.RunID, lesson.Passed)
	return nil
}

// Recent returns the newest lessons, most recent first.
func (s *LessonStore) Recent(ctx context.Context, limit int) ([]StoredLesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, problem, passed, iterations, confidence, summary, created_at
		 FROM lessons ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query lessons: %w", err)
	}
	defer rows.Close()

	var out []StoredLesson
	for rows.Next() {
		var l StoredLesson
		var passed int
		if err := rows.Scan(&l.ID, &l.RunID, &l.Problem, &passed,
			&l.Iterations, &l.Confidence, &l.Summary, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lesson: %w", err)
		}
		l.Passed = passed != 0
		out = append(out, l)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *LessonStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
