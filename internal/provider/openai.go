package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/SAM252003/Nehoris/internal/logging"
)

// OpenAIConfig configures an OpenAI-compatible chat-completions adapter.
type OpenAIConfig struct {
	Name    string // registry name; defaults to "openai"
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// DefaultOpenAIConfig returns sensible defaults for the OpenAI API.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		Name:    "openai",
		APIKey:  apiKey,
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
		Timeout: 2 * time.Minute,
	}
}

// DefaultPerplexityConfig targets Perplexity's OpenAI-compatible endpoint.
func DefaultPerplexityConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		Name:    "perplexity",
		APIKey:  apiKey,
		BaseURL: "https://api.perplexity.ai",
		Model:   "sonar",
		Timeout: 2 * time.Minute,
	}
}

// OpenAIClient implements Provider for any OpenAI-compatible API.
type OpenAIClient struct {
	name       string
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOpenAIClient creates an adapter from config.
func NewOpenAIClient(config OpenAIConfig) *OpenAIClient {
	if config.Name == "" {
		config.Name = "openai"
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Minute
	}
	return &OpenAIClient{
		name:       config.Name,
		apiKey:     config.APIKey,
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		model:      config.Model,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

func (c *OpenAIClient) Name() string { return c.name }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Call sends one chat completion request.
func (c *OpenAIClient) Call(ctx context.Context, prompt, model string, temperature float64) (string, error) {
	if c.apiKey == "" {
		return "", &Error{Provider: c.name, Kind: KindAuth, Err: fmt.Errorf("API key not configured")}
	}
	if model == "" {
		model = c.model
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	start := time.Now()
	body, err := json.Marshal(openAIRequest{
		Model:       model,
		Messages:    []openAIMessage{{Role: "user", Content: prompt}},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", wrapErr(c.name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", wrapErr(c.name, fmt.Errorf("failed to read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", &Error{Provider: c.name, Kind: KindAuth, Err: fmt.Errorf("status %d: %s", resp.StatusCode, data)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &Error{Provider: c.name, Kind: KindRateLimit, Err: fmt.Errorf("rate limit exceeded (429)")}
	case resp.StatusCode != http.StatusOK:
		return "", &Error{Provider: c.name, Kind: KindInternal, Err: fmt.Errorf("status %d: %s", resp.StatusCode, data)}
	}

	var parsed openAIResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", &Error{Provider: c.name, Kind: KindInternal, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if parsed.Error != nil {
		return "", &Error{Provider: c.name, Kind: KindInternal, Err: fmt.Errorf("API error: %s", parsed.Error.Message)}
	}
	if len(parsed.Choices) == 0 {
		return "", &Error{Provider: c.name, Kind: KindInternal, Err: fmt.Errorf("no completion returned")}
	}

	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	logging.API("[%s] completed in %v response_len=%d", c.name, time.Since(start), len(text))
	return text, nil
}
