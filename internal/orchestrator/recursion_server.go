package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pmukeshreddy/rlm-engine/internal/agentloop"
	"github.com/pmukeshreddy/rlm-engine/internal/errs"
	"github.com/pmukeshreddy/rlm-engine/internal/models"
	"github.com/pmukeshreddy/rlm-engine/internal/trace"
)

// recursionServer is the per-execution goroutine that services every
// llm_query call issued anywhere in the execution's node tree: it applies
// the depth cap and deadline check, then spawns a nested Agent Loop
// invocation for the calling node's child. Now that any node's program can
// itself call llm_query, a grandchild's request has to reach this server
// while its parent's own s.loop.Run call is still blocked waiting on that
// same server — handling requests inline in the select loop would deadlock
// the moment recursion goes two levels deep. Dispatching each request onto
// its own goroutine keeps the server free to keep reading requests while
// earlier calls are still in flight.
type recursionServer struct {
	executionID string
	tree        *trace.Tree
	deadline    time.Time
	loop        *agentloop.Loop

	requests chan recursionRequest
	done     <-chan struct{}
}

func (o *Orchestrator) serveRecursion(ctx context.Context, s recursionServer) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case req := <-s.requests:
			go o.handleRecursionRequest(ctx, s, req)
		}
	}
}

func (o *Orchestrator) handleRecursionRequest(ctx context.Context, s recursionServer, req recursionRequest) {
	childDepth := req.parentDepth + 1
	if childDepth > o.Limits.MaxRecursionDepth {
		req.reply <- recursionReply{err: errs.New(errs.KindRecursionLimit, "max_recursion_depth exceeded")}
		return
	}
	remaining := time.Until(s.deadline)
	if remaining <= 0 {
		req.reply <- recursionReply{err: errs.New(errs.KindDeadlineExceeded, "execution deadline exceeded")}
		return
	}

	childDeadline := s.deadline
	if nodeCap := time.Now().Add(perNodeCap); nodeCap.Before(childDeadline) {
		childDeadline = nodeCap
	}

	childNodeID := uuid.NewString()
	seq := s.tree.NextSequence(req.parentNodeID)
	out := s.loop.Run(ctx, agentloop.Input{
		ExecutionID:  s.executionID,
		NodeID:       childNodeID,
		ParentNodeID: req.parentNodeID,
		NodeType:     models.NodeTypeChild,
		Depth:        childDepth,
		SequenceNum:  seq,
		Query:        req.prompt,
		Context:      req.parentCtx,
		Model:        req.model,
		Memory:       req.memory,
		Deadline:     childDeadline,
		Recursor: &recursor{
			nodeID:   childNodeID,
			depth:    childDepth,
			context:  req.parentCtx,
			memory:   req.memory,
			model:    req.model,
			requests: s.requests,
		},
	})

	if out.Node.Status != models.NodeCompleted {
		req.reply <- recursionReply{err: errs.New(errs.Kind(out.Node.ErrorKind), out.Node.ErrorMessage)}
		return
	}
	req.reply <- recursionReply{output: out.Node.Output}
}
