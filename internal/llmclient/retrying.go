package llmclient

import (
	"context"

	"github.com/pmukeshreddy/rlm-engine/internal/errs"
	"github.com/pmukeshreddy/rlm-engine/internal/retry"
)

// Retrying wraps a Client with the base=1s, factor=2, jitter ±25%, 3
// total attempts policy every LM call uses.
type Retrying struct {
	inner  Client
	config retry.Config
}

// NewRetrying wraps inner with the default retry policy.
func NewRetrying(inner Client) *Retrying {
	return &Retrying{inner: inner, config: retry.DefaultConfig()}
}

// Complete implements Client, retrying transient failures from inner.
func (r *Retrying) Complete(ctx context.Context, model, system, prompt string) (string, Usage, error) {
	var text string
	var usage Usage
	result := retry.Do(ctx, r.config, func() error {
		t, u, err := r.inner.Complete(ctx, model, system, prompt)
		if err != nil {
			return err
		}
		text, usage = t, u
		return nil
	})
	if result.Err != nil {
		return "", Usage{}, errs.Wrap(errs.KindProviderError, "LM provider call failed after retries", result.Err)
	}
	return text, usage, nil
}
