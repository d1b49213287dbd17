package llmclient

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pmukeshreddy/rlm-engine/internal/retry"
)

// OpenAIClient completes prompts against the OpenAI chat completions API.
type OpenAIClient struct {
	client       *openai.Client
	defaultModel string
}

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// NewOpenAIClient builds a client from config, defaulting DefaultModel to
// "gpt-4o" when unset.
func NewOpenAIClient(config OpenAIConfig) *OpenAIClient {
	cfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cfg.BaseURL = config.BaseURL
	}
	defaultModel := config.DefaultModel
	if defaultModel == "" {
		defaultModel = "gpt-4o"
	}
	return &OpenAIClient{
		client:       openai.NewClientWithConfig(cfg),
		defaultModel: defaultModel,
	}
}

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, model, system, prompt string) (string, Usage, error) {
	if model == "" {
		model = c.defaultModel
	}
	var messages []openai.ChatCompletionMessage
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		wrapped := fmt.Errorf("openai: %w", err)
		if !openaiRetryable(err) {
			return "", Usage{}, retry.Permanent(wrapped)
		}
		return "", Usage{}, wrapped
	}
	if len(resp.Choices) == 0 {
		// A 200 with no choices is a persistent response-shape problem, not
		// a transient failure — retrying the same request won't produce
		// choices next time.
		return "", Usage{}, retry.Permanent(fmt.Errorf("openai: empty response"))
	}
	usage := Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	return resp.Choices[0].Message.Content, usage, nil
}

// openaiRetryable reports whether err is worth retrying: rate limits and
// server-side failures (429, 500, 502, 503, 504) are transient, everything
// else — bad API keys, malformed requests, unknown models — fails the same
// way every time, so burning the remaining retry attempts on it only adds
// latency before the inevitable error.
func openaiRetryable(err error) bool {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return true
	}
	switch apiErr.HTTPStatusCode {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
