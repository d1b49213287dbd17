package llmclient

import (
	"context"
	"errors"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"

	"github.com/pmukeshreddy/rlm-engine/internal/retry"
)

func TestAnthropicRetryableClassifiesStatusCodes(t *testing.T) {
	cases := []struct {
		status int
		want   bool
	}{
		{429, true},
		{500, true},
		{502, true},
		{503, true},
		{504, true},
		{400, false},
		{401, false},
		{403, false},
		{404, false},
	}
	for _, tc := range cases {
		err := &anthropic.Error{StatusCode: tc.status}
		if got := anthropicRetryable(err); got != tc.want {
			t.Errorf("status %d: anthropicRetryable() = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestAnthropicRetryableDefaultsTrueForUnrecognizedErrors(t *testing.T) {
	if !anthropicRetryable(errors.New("dial tcp: connection refused")) {
		t.Fatalf("expected non-API errors (network failures) to default to retryable")
	}
}

func TestOpenAIRetryableClassifiesStatusCodes(t *testing.T) {
	cases := []struct {
		status int
		want   bool
	}{
		{429, true},
		{500, true},
		{502, true},
		{503, true},
		{504, true},
		{400, false},
		{401, false},
		{403, false},
		{404, false},
	}
	for _, tc := range cases {
		err := &openai.APIError{HTTPStatusCode: tc.status}
		if got := openaiRetryable(err); got != tc.want {
			t.Errorf("status %d: openaiRetryable() = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestOpenAIRetryableDefaultsTrueForUnrecognizedErrors(t *testing.T) {
	if !openaiRetryable(errors.New("connection reset by peer")) {
		t.Fatalf("expected non-API errors (network failures) to default to retryable")
	}
}

func TestRetryingFailsFastOnPermanentProviderError(t *testing.T) {
	stub := &stubClient{err: retry.Permanent(&openai.APIError{HTTPStatusCode: 401, Message: "invalid api key"})}
	rc := NewRetrying(stub)
	_, _, err := rc.Complete(context.Background(), "gpt-4o", "", "hi")
	if err == nil {
		t.Fatalf("expected error")
	}
	if stub.calls != 1 {
		t.Fatalf("expected exactly one attempt for a permanent error, got %d", stub.calls)
	}
}
