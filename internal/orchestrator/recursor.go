package orchestrator

import (
	"context"

	"github.com/pmukeshreddy/rlm-engine/internal/errs"
)

// recursionRequest is one llm_query call, carrying the calling node's own
// identity (id, depth, context, memory, model) so the recursion server can
// compute the child's depth and deadline without tracking per-node state
// itself.
type recursionRequest struct {
	parentNodeID string
	parentDepth  int
	parentCtx    string
	memory       map[string]any
	model        string
	prompt       string
	reply        chan recursionReply
}

type recursionReply struct {
	output string
	err    error
}

// recursor implements msl.Host for one node's sandbox: every llm_query call
// that node's program makes is forwarded here, tagged with that node's own
// id/depth/context/memory, and relayed to the execution's recursion server
// over requests. A fresh recursor is handed to each node the recursion
// server spawns, so a child calling llm_query is attributed to its own
// depth rather than its ancestor's.
type recursor struct {
	nodeID   string
	depth    int
	context  string
	memory   map[string]any
	model    string
	requests chan<- recursionRequest
}

func (r *recursor) LLMQuery(ctx context.Context, prompt string) (string, error) {
	reply := make(chan recursionReply, 1)
	req := recursionRequest{
		parentNodeID: r.nodeID,
		parentDepth:  r.depth,
		parentCtx:    r.context,
		memory:       r.memory,
		model:        r.model,
		prompt:       prompt,
		reply:        reply,
	}
	select {
	case r.requests <- req:
	case <-ctx.Done():
		return "", errs.Wrap(errs.KindDeadlineExceeded, "execution deadline exceeded while queuing llm_query", ctx.Err())
	}
	select {
	case rep := <-reply:
		return rep.output, rep.err
	case <-ctx.Done():
		return "", errs.Wrap(errs.KindDeadlineExceeded, "execution deadline exceeded awaiting llm_query", ctx.Err())
	}
}
