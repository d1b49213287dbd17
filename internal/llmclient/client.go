// Package llmclient wires the agent loop to real foundation-model
// providers. A Client is the synchronous `Complete` boundary the agent
// loop calls once per node — there is no streaming here, because a
// sandboxed program's `llm_query` is a blocking call and the agent loop
// needs the full response text before it can extract and run a program
// from it.
package llmclient

import "context"

// Usage reports token counts for a single completion.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Client completes a single prompt against model and returns the raw
// response text plus token usage.
type Client interface {
	Complete(ctx context.Context, model string, system string, prompt string) (text string, usage Usage, err error)
}

// Router dispatches to the right underlying Client based on model name,
// so the orchestrator can treat "claude-*" and "gpt-*" identically.
type Router struct {
	byPrefix []prefixRoute
	fallback Client
}

type prefixRoute struct {
	prefix string
	client Client
}

// NewRouter builds an empty Router; register clients with Register and
// set a default with SetFallback.
func NewRouter() *Router {
	return &Router{}
}

// Register routes any model beginning with prefix to client.
func (r *Router) Register(prefix string, client Client) {
	r.byPrefix = append(r.byPrefix, prefixRoute{prefix: prefix, client: client})
}

// SetFallback sets the client used when no prefix matches.
func (r *Router) SetFallback(client Client) {
	r.fallback = client
}

func (r *Router) resolve(model string) Client {
	for _, route := range r.byPrefix {
		if len(model) >= len(route.prefix) && model[:len(route.prefix)] == route.prefix {
			return route.client
		}
	}
	return r.fallback
}

// Complete implements Client by routing to the matching provider.
func (r *Router) Complete(ctx context.Context, model string, system string, prompt string) (string, Usage, error) {
	client := r.resolve(model)
	if client == nil {
		return "", Usage{}, errNoProvider(model)
	}
	return client.Complete(ctx, model, system, prompt)
}

type noProviderError struct{ model string }

func (e *noProviderError) Error() string {
	return "no provider registered for model " + e.model
}

func errNoProvider(model string) error { return &noProviderError{model: model} }
