package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/SAM252003/Nehoris/internal/logging"
)

// GeminiConfig configures the Gemini adapter.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// GeminiClient implements Provider over the Google GenAI SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini adapter.
func NewGeminiClient(ctx context.Context, config GeminiConfig) (*GeminiClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if config.Model == "" {
		config.Model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: config.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiClient{client: client, model: config.Model}, nil
}

func (c *GeminiClient) Name() string { return "gemini" }

// Call sends one prompt and returns the concatenated candidate text.
func (c *GeminiClient) Call(ctx context.Context, prompt, model string, temperature float64) (string, error) {
	if model == "" {
		model = c.model
	}
	start := time.Now()

	temp := float32(temperature)
	result, err := c.client.Models.GenerateContent(ctx, model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{Temperature: &temp},
	)
	if err != nil {
		return "", wrapErr("gemini", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", &Error{Provider: "gemini", Kind: KindInternal, Err: fmt.Errorf("no completion returned")}
	}
	logging.API("[gemini] completed in %v response_len=%d", time.Since(start), len(text))
	return text, nil
}
