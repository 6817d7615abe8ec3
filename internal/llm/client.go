// Package llm talks to an OpenAI-compatible chat-completions endpoint
// (Groq in production). Every call carries exactly one user-role message:
// the model sees no conversation history, so all context must be embedded
// in the prompt text itself.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shipchat/shipchat/internal/observability"
)

// SupportedModels is the fixed set of model names callers may select.
var SupportedModels = []string{
	"llama3-8b-8192",
	"mixtral-8x7b-32768",
	"gemma-7b-it",
	"llama3-70b-8192",
}

func IsSupportedModel(name string) bool {
	for _, candidate := range SupportedModels {
		if candidate == name {
			return true
		}
	}
	return false
}

// StatusError carries the provider's HTTP status so callers can map
// transport failures to category-specific user messages.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion failed status=%d body=%s", e.Status, e.Body)
}

type Client interface {
	Complete(ctx context.Context, prompt, model string) (string, error)
}

type GroqConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type GroqClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewGroqClient(cfg GroqConfig) (*GroqClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GroqClient{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (c *GroqClient) Complete(ctx context.Context, prompt, model string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt is required")
	}
	if !IsSupportedModel(model) {
		return "", fmt.Errorf("unsupported model %q", model)
	}

	payload := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request chat completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	observability.ObserveCompletionLatency(time.Since(start))

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", &StatusError{Status: resp.StatusCode, Body: string(rawRespBody)}
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return "", fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty chat completion choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
