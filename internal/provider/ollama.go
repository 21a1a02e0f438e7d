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

// OllamaConfig configures the local Ollama adapter.
type OllamaConfig struct {
	Host    string
	Model   string
	Timeout time.Duration
}

// DefaultOllamaConfig returns defaults for a local daemon.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:    "http://localhost:11434",
		Model:   "llama3.1",
		Timeout: 3 * time.Minute,
	}
}

// OllamaClient implements Provider against a local Ollama daemon. The chat
// endpoint is tried first with a fallback to generate for older daemons.
type OllamaClient struct {
	host       string
	model      string
	httpClient *http.Client
}

// NewOllamaClient creates an adapter from config.
func NewOllamaClient(config OllamaConfig) *OllamaClient {
	if config.Host == "" {
		config.Host = DefaultOllamaConfig().Host
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultOllamaConfig().Timeout
	}
	return &OllamaClient{
		host:       strings.TrimRight(config.Host, "/"),
		model:      config.Model,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

func (c *OllamaClient) Name() string { return "ollama" }

// Call sends one prompt through /api/chat, falling back to /api/generate.
func (c *OllamaClient) Call(ctx context.Context, prompt, model string, temperature float64) (string, error) {
	if model == "" {
		model = c.model
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	start := time.Now()
	text, chatErr := c.chat(ctx, prompt, model, temperature)
	if chatErr == nil && text != "" {
		logging.API("[ollama] chat completed in %v response_len=%d", time.Since(start), len(text))
		return text, nil
	}

	text, genErr := c.generate(ctx, prompt, model, temperature)
	if genErr != nil {
		return "", wrapErr("ollama", fmt.Errorf("chat: %v, generate: %w", chatErr, genErr))
	}
	logging.API("[ollama] generate completed in %v response_len=%d", time.Since(start), len(text))
	return text, nil
}

// Ping reports whether the daemon is reachable.
func (c *OllamaClient) Ping(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *OllamaClient) chat(ctx context.Context, prompt, model string, temperature float64) (string, error) {
	payload := map[string]interface{}{
		"model":    model,
		"messages": []map[string]string{{"role": "user", "content": prompt}},
		"options":  map[string]interface{}{"temperature": temperature},
		"stream":   false,
	}
	data, err := c.post(ctx, "/api/chat", payload)
	if err != nil {
		return "", err
	}
	var parsed struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse chat response: %w", err)
	}
	return strings.TrimSpace(parsed.Message.Content), nil
}

func (c *OllamaClient) generate(ctx context.Context, prompt, model string, temperature float64) (string, error) {
	payload := map[string]interface{}{
		"model":   model,
		"prompt":  prompt,
		"options": map[string]interface{}{"temperature": temperature},
		"stream":  false,
	}
	data, err := c.post(ctx, "/api/generate", payload)
	if err != nil {
		return "", err
	}
	var parsed struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse generate response: %w", err)
	}
	return strings.TrimSpace(parsed.Response), nil
}

func (c *OllamaClient) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, data)
	}
	return data, nil
}
