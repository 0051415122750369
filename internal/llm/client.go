// Package llm provides the narration client backed by Google's Gemini API,
// plus a deterministic offline client for environments without an API key.
package llm

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"sourcepilot/internal/logging"
	"sourcepilot/internal/types"
)

const defaultModel = "gemini-2.0-flash"

// Client generates narrative text using Google's Gemini API. It implements
// types.LLMClient.
type Client struct {
	client          *genai.Client
	model           string
	timeout         time.Duration
	maxOutputTokens int
}

// Options configure the Gemini client. Zero values fall back to defaults.
type Options struct {
	APIKey          string
	Model           string
	Timeout         time.Duration
	MaxOutputTokens int
}

// NewClient creates a Gemini-backed narration client.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: opts.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Client{
		client:          client,
		model:           opts.Model,
		timeout:         opts.Timeout,
		maxOutputTokens: opts.MaxOutputTokens,
	}, nil
}

// Complete sends the prompt and returns the response text with token usage.
// Usage is reported even when the call fails.
func (c *Client) Complete(ctx context.Context, prompt string) (string, types.Usage, error) {
	timer := logging.StartTimer(logging.CategoryLLM, "complete")
	defer timer.Stop()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	temperature := float32(0.2)
	cfg := &genai.GenerateContentConfig{
		Temperature: &temperature,
	}
	if c.maxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(c.maxOutputTokens)
	}
	result, err := c.client.Models.GenerateContent(ctx, c.model,
		genai.Text(prompt), cfg)
	if err != nil {
		return "", types.Usage{InputTokens: estimateTokens(prompt)},
			fmt.Errorf("GenAI completion failed: %w", err)
	}

	text := result.Text()
	usage := types.Usage{
		InputTokens:  estimateTokens(prompt),
		OutputTokens: estimateTokens(text),
	}
	if result.UsageMetadata != nil {
		usage.InputTokens = int(result.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int(result.UsageMetadata.CandidatesTokenCount)
	}

	logging.LLM("model=%s tokens_in=%d tokens_out=%d", c.model, usage.InputTokens, usage.OutputTokens)
	return text, usage, nil
}

// estimateTokens approximates token count at four characters per token, used
// when the API does not report usage.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}
