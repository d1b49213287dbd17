// Package events implements the per-execution progress event bus: the
// fixed set of event kinds published as an execution runs, streamed out
// over SSE by internal/httpapi.
package events

import "time"

// Kind identifies the kind of a published Event. This is the complete,
// fixed set — nothing else is ever published.
type Kind string

const (
	KindExecutionStarted   Kind = "execution_started"
	KindNodeStarted        Kind = "node_started"
	KindNodeCode           Kind = "node_code"
	KindNodeOutput         Kind = "node_output"
	KindNodeFailed         Kind = "node_failed"
	KindExecutionCompleted Kind = "execution_completed"
	KindExecutionFailed    Kind = "execution_failed"
)

// Event is one tagged record on the bus. Every event carries ExecutionID,
// NodeID (empty for execution-level events), and Time; Fields holds the
// kind-specific payload.
type Event struct {
	Kind        Kind
	ExecutionID string
	NodeID      string
	Time        time.Time
	Fields      map[string]any
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// PreviewPrompt truncates prompt to the 200-char preview a node_started
// event carries.
func PreviewPrompt(prompt string) string { return truncate(prompt, 200) }

// PreviewOutput truncates output to the 500-char preview a node_output
// event carries.
func PreviewOutput(output string) string { return truncate(output, 500) }

// NewExecutionStarted builds an execution_started event.
func NewExecutionStarted(executionID, query string, contextSize int, model string) Event {
	return Event{
		Kind:        KindExecutionStarted,
		ExecutionID: executionID,
		Fields: map[string]any{
			"query":        query,
			"context_size": contextSize,
			"model":        model,
		},
	}
}

// NewNodeStarted builds a node_started event.
func NewNodeStarted(executionID, nodeID, parentID string, depth, sequence int, nodeType, promptPreview string) Event {
	return Event{
		Kind:        KindNodeStarted,
		ExecutionID: executionID,
		NodeID:      nodeID,
		Fields: map[string]any{
			"parent_id":      parentID,
			"depth":          depth,
			"sequence":       sequence,
			"node_type":      nodeType,
			"prompt_preview": PreviewPrompt(promptPreview),
		},
	}
}

// NewNodeCode builds a node_code event, carrying the program extracted
// from a node's LM response (any node can recurse, so any node can emit
// one of these).
func NewNodeCode(executionID, nodeID, code string) Event {
	return Event{
		Kind:        KindNodeCode,
		ExecutionID: executionID,
		NodeID:      nodeID,
		Fields:      map[string]any{"code": code},
	}
}

// NewNodeOutput builds a node_output event.
func NewNodeOutput(executionID, nodeID, output string, inputTokens, outputTokens int, costUSD float64) Event {
	return Event{
		Kind:        KindNodeOutput,
		ExecutionID: executionID,
		NodeID:      nodeID,
		Fields: map[string]any{
			"output_preview": PreviewOutput(output),
			"input_tokens":   inputTokens,
			"output_tokens":  outputTokens,
			"cost_usd":       costUSD,
		},
	}
}

// NewNodeFailed builds a node_failed event.
func NewNodeFailed(executionID, nodeID, errKind, errMessage string) Event {
	return Event{
		Kind:        KindNodeFailed,
		ExecutionID: executionID,
		NodeID:      nodeID,
		Fields: map[string]any{
			"error_kind":    errKind,
			"error_message": errMessage,
		},
	}
}

// NewExecutionCompleted builds an execution_completed event.
func NewExecutionCompleted(executionID, finalResult string, totals map[string]any) Event {
	return Event{
		Kind:        KindExecutionCompleted,
		ExecutionID: executionID,
		Fields: map[string]any{
			"final_result_preview": truncate(finalResult, 500),
			"totals":               totals,
		},
	}
}

// NewExecutionFailed builds an execution_failed event.
func NewExecutionFailed(executionID, errKind, errMessage string) Event {
	return Event{
		Kind:        KindExecutionFailed,
		ExecutionID: executionID,
		Fields: map[string]any{
			"error_kind":    errKind,
			"error_message": errMessage,
		},
	}
}
