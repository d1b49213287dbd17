package llmclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/pmukeshreddy/rlm-engine/internal/retry"
)

// AnthropicClient completes prompts against Anthropic's Messages API.
type AnthropicClient struct {
	client       anthropic.Client
	defaultModel string
	maxTokens    int64
}

// AnthropicConfig configures an AnthropicClient.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxTokens    int64
}

// NewAnthropicClient builds a client from config, defaulting MaxTokens to
// 4096 and DefaultModel to "claude-sonnet-4-20250514" when unset.
func NewAnthropicClient(config AnthropicConfig) *AnthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	defaultModel := config.DefaultModel
	if defaultModel == "" {
		defaultModel = "claude-sonnet-4-20250514"
	}
	return &AnthropicClient{
		client:       anthropic.NewClient(opts...),
		defaultModel: defaultModel,
		maxTokens:    maxTokens,
	}
}

// Complete implements Client.
func (c *AnthropicClient) Complete(ctx context.Context, model, system, prompt string) (string, Usage, error) {
	if model == "" {
		model = c.defaultModel
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		wrapped := fmt.Errorf("anthropic: %w", err)
		if !anthropicRetryable(err) {
			return "", Usage{}, retry.Permanent(wrapped)
		}
		return "", Usage{}, wrapped
	}

	var text string
	for _, block := range msg.Content {
		text += block.Text
	}
	usage := Usage{
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}
	return text, usage, nil
}

// anthropicRetryable reports whether err is worth retrying: rate limits and
// server-side failures (429, 500, 502, 503, 504) are transient, everything
// else — bad API keys, malformed requests, unknown models — fails the same
// way every time, so burning the remaining retry attempts on it only adds
// latency before the inevitable error.
func anthropicRetryable(err error) bool {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return true
	}
	switch apiErr.StatusCode {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
