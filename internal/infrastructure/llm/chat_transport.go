package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"scaffoldgen/internal/domain/entity"
	"scaffoldgen/internal/domain/repository"
	"scaffoldgen/internal/infrastructure/metrics"
)

// ChatConfig configures an OpenAI-compatible chat completions endpoint.
// Amvera expects the key in X-Auth-Token, most other gateways in
// Authorization.
type ChatConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	AuthHeader  string
	Temperature float64
	Timeout     time.Duration
}

type ChatTransport struct {
	apiKey      string
	baseURL     string
	model       string
	authHeader  string
	temperature float64
	client      *http.Client
}

var _ repository.Transport = (*ChatTransport)(nil)

func NewChatTransport(cfg ChatConfig) *ChatTransport {
	if cfg.AuthHeader == "" {
		cfg.AuthHeader = "Authorization"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &ChatTransport{
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		authHeader:  cfg.AuthHeader,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: cfg.Timeout},
	}
}

func (t *ChatTransport) Name() string { return t.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (t *ChatTransport) Call(ctx context.Context, prompt string, tokenBudget int) (repository.Completion, error) {
	request := chatRequest{
		Model:       t.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   tokenBudget,
		Temperature: t.temperature,
	}

	response, err := t.makeRequest(ctx, request)
	if err != nil {
		return repository.Completion{}, err
	}

	content, err := parseChatResponse(response)
	if err != nil {
		metrics.IncError("llm", "parse_response")
		return repository.Completion{}, fmt.Errorf("failed to parse chat response: %w", err)
	}

	tokens := response.Usage.TotalTokens
	if tokens == 0 {
		tokens = response.Usage.PromptTokens + response.Usage.CompletionTokens
	}
	return repository.Completion{Output: content, TokensUsed: tokens}, nil
}

func (t *ChatTransport) makeRequest(ctx context.Context, request chatRequest) (*chatResponse, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		metrics.IncError("llm", "marshal_request")
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		metrics.IncError("llm", "create_request")
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set(t.authHeader, "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		metrics.IncError("llm", "http_do")
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		err := resp.Body.Close()
		if err != nil {
			log.Printf("close body err: %s", err)
		}
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(resp.Body)
		metrics.IncError("llm", "rate_limited")
		return nil, &entity.RateLimitError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		metrics.IncError("llm", fmt.Sprintf("api_error_%d", resp.StatusCode))
		return nil, fmt.Errorf("chat api error: %d - %s", resp.StatusCode, string(body))
	}

	var response chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		metrics.IncError("llm", "decode_response")
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &response, nil
}

func parseChatResponse(response *chatResponse) (string, error) {
	if len(response.Choices) == 0 {
		return "", errors.New("invalid response format: no choices")
	}
	content := response.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", errors.New("invalid response format: empty content")
	}
	return content, nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
