package engine

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"metis/internal/logging"
)

// GeminiEngine produces completions through the Google GenAI API.
type GeminiEngine struct {
	client *genai.Client
	model  string
}

// NewGeminiEngine creates a Gemini-backed engine.
func NewGeminiEngine(ctx context.Context, apiKey, model string) (*GeminiEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiEngine{client: client, model: model}, nil
}

func (e *GeminiEngine) Complete(ctx context.Context, prompt string) (string, error) {
	return e.CompleteWithSystem(ctx, "", prompt)
}

func (e *GeminiEngine) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	timer := logging.StartTimer(logging.CategoryEngine, "gemini completion")
	defer timer.Stop()

	cfg := &genai.GenerateContentConfig{
		// Low temperature for structured output
		Temperature: genai.Ptr[float32](0.1),
	}
	if systemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	result, err := e.client.Models.GenerateContent(ctx, e.model, genai.Text(userPrompt), cfg)
	if err != nil {
		logging.EngineError("gemini completion failed: %v", err)
		return "", fmt.Errorf("GenAI completion failed: %w", err)
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("no completion returned")
	}

	logging.EngineDebug("gemini completion: %d chars in, %d chars out", len(userPrompt), len(text))
	return text, nil
}
