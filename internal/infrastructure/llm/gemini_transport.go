package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"scaffoldgen/internal/domain/entity"
	"scaffoldgen/internal/domain/repository"
	"scaffoldgen/internal/infrastructure/metrics"
)

// GeminiTransport calls Google's Gemini API through the genai SDK.
type GeminiTransport struct {
	client *genai.Client
	model  string
}

var _ repository.Transport = (*GeminiTransport)(nil)

func NewGeminiTransport(ctx context.Context, apiKey, model string) (*GeminiTransport, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiTransport{client: client, model: model}, nil
}

func (t *GeminiTransport) Name() string { return t.model }

func (t *GeminiTransport) Call(ctx context.Context, prompt string, tokenBudget int) (repository.Completion, error) {
	cfg := &genai.GenerateContentConfig{}
	if tokenBudget > 0 {
		cfg.MaxOutputTokens = int32(tokenBudget)
	}

	resp, err := t.client.Models.GenerateContent(ctx, t.model, genai.Text(prompt), cfg)
	if err != nil {
		if isResourceExhausted(err) {
			metrics.IncError("llm", "rate_limited")
			return repository.Completion{}, &entity.RateLimitError{StatusCode: 429, Message: err.Error()}
		}
		metrics.IncError("llm", "gemini_generate")
		return repository.Completion{}, fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		metrics.IncError("llm", "parse_response")
		return repository.Completion{}, errors.New("gemini returned empty content")
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return repository.Completion{Output: text, TokensUsed: tokens}, nil
}

func isResourceExhausted(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}
