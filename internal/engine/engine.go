// Package engine abstracts the reasoning capability every pipeline stage
// calls through. The pipeline never inspects how a completion was produced;
// it only records what came back.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Engine defines the interface for reasoning providers.
type Engine interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// CleanJSONResponse removes markdown code fences from a JSON response.
func CleanJSONResponse(resp string) string {
	resp = strings.TrimSpace(resp)
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimPrefix(resp, "```")
	resp = strings.TrimSuffix(resp, "```")
	return strings.TrimSpace(resp)
}

// Scripted replays canned completions in order. It is the test double used
// throughout the repo and the backing engine for `--dry-run` style usage.
type Scripted struct {
	mu        sync.Mutex
	responses []string
	next      int

	// Calls records every prompt received, for assertions.
	Calls []string
}

// NewScripted creates a scripted engine that replays responses in order.
// Once exhausted it keeps returning the final response.
func NewScripted(responses ...string) *Scripted {
	return &Scripted{responses: responses}
}

func (s *Scripted) Complete(ctx context.Context, prompt string) (string, error) {
	return s.CompleteWithSystem(ctx, "", prompt)
}

func (s *Scripted) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.Calls = append(s.Calls, userPrompt)

	if len(s.responses) == 0 {
		return "", fmt.Errorf("scripted engine has no responses")
	}
	idx := s.next
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	} else {
		s.next++
	}
	return s.responses[idx], nil
}
