// Package orchestrator is the top-level entry point that turns a (query,
// context, session?) triple into a completed Execution, wiring the
// sandbox's llm_query primitive back to recursive Agent Loop invocations
// subject to a depth cap and a global deadline.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pmukeshreddy/rlm-engine/internal/agentloop"
	"github.com/pmukeshreddy/rlm-engine/internal/config"
	"github.com/pmukeshreddy/rlm-engine/internal/errs"
	"github.com/pmukeshreddy/rlm-engine/internal/events"
	"github.com/pmukeshreddy/rlm-engine/internal/llmclient"
	"github.com/pmukeshreddy/rlm-engine/internal/models"
	"github.com/pmukeshreddy/rlm-engine/internal/pricing"
	"github.com/pmukeshreddy/rlm-engine/internal/session"
	"github.com/pmukeshreddy/rlm-engine/internal/trace"
)

// perNodeCap bounds any single node's LM call plus sandbox run,
// independent of how much of the global execution deadline remains, so one
// slow node can't silently eat the whole execution's time budget.
const perNodeCap = 120 * time.Second

// Orchestrator holds the collaborators shared across every execution.
// Each Run call builds its own trace.Tree and Execution record; the LM
// client, pricing table, event bus, and session manager are shared
// process-wide.
type Orchestrator struct {
	LLM      llmclient.Client
	Pricing  *pricing.Table
	Bus      *events.Bus
	Sessions *session.Manager
	Limits   config.Limits

	mu        sync.RWMutex
	trees     map[string]*trace.Tree
	execution map[string]*models.Execution
}

// New builds an Orchestrator from its collaborators.
func New(llm llmclient.Client, priceTable *pricing.Table, bus *events.Bus, sessions *session.Manager, limits config.Limits) *Orchestrator {
	return &Orchestrator{
		LLM:       llm,
		Pricing:   priceTable,
		Bus:       bus,
		Sessions:  sessions,
		Limits:    limits,
		trees:     make(map[string]*trace.Tree),
		execution: make(map[string]*models.Execution),
	}
}

// Tree returns the execution tree for executionID, if it exists.
func (o *Orchestrator) Tree(executionID string) (*trace.Tree, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	t, ok := o.trees[executionID]
	return t, ok
}

// Execution returns the (possibly still-running) Execution record.
func (o *Orchestrator) Execution(executionID string) (*models.Execution, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	e, ok := o.execution[executionID]
	return e, ok
}

// Run is the top-level entry point. sessionID may be empty (no session).
// model may be empty to use the configured default. Run blocks until the
// execution reaches a terminal status.
func (o *Orchestrator) Run(ctx context.Context, query, contextStr, sessionID, model string) (*models.Execution, error) {
	_, done, err := o.Start(ctx, query, contextStr, sessionID, model)
	if err != nil {
		return nil, err
	}
	return <-done, nil
}

// Start validates the request and registers the Execution/trace.Tree
// synchronously, then runs the execution in a new goroutine, returning its
// id immediately. This lets internal/httpapi's SSE handler obtain the
// execution id and subscribe to its event stream before (or shortly after)
// events start flowing. Start does not wait for a subscriber, and events
// published before a subscriber attaches are not replayed to it (the SSE
// handler subscribes without a catch-up snapshot). done receives the
// completed Execution exactly once.
func (o *Orchestrator) Start(ctx context.Context, query, contextStr, sessionID, model string) (execID string, done <-chan *models.Execution, err error) {
	if model == "" {
		model = o.Limits.DefaultModel
	}
	if len(contextStr) > o.Limits.MaxContextSize {
		return "", nil, errs.New(errs.KindContextTooLarge, "context exceeds max_context_size")
	}

	memory := map[string]any{}
	if sessionID != "" {
		if _, mem, ok := o.Sessions.Get(sessionID); ok {
			memory = mem
		}
	}

	exec := &models.Execution{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Query:       query,
		ContextSize: len(contextStr),
		Status:      models.ExecutionRunning,
		StartedAt:   time.Now(),
	}
	tree := trace.NewTree()

	o.mu.Lock()
	o.trees[exec.ID] = tree
	o.execution[exec.ID] = exec
	o.mu.Unlock()

	resultCh := make(chan *models.Execution, 1)
	go func() {
		o.runExecution(ctx, exec, tree, query, contextStr, sessionID, model, memory)
		resultCh <- exec
		close(resultCh)
	}()

	return exec.ID, resultCh, nil
}

func (o *Orchestrator) runExecution(ctx context.Context, exec *models.Execution, tree *trace.Tree, query, contextStr, sessionID, model string, memory map[string]any) {
	o.Bus.Publish(events.NewExecutionStarted(exec.ID, query, len(contextStr), model))

	deadline := time.Now().Add(o.Limits.ExecutionTimeout)
	execCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	rootNodeID := uuid.NewString()
	requests := make(chan recursionRequest)
	serverDone := make(chan struct{})
	loop := agentloop.New(o.LLM, o.Pricing, o.Bus, tree)
	go o.serveRecursion(execCtx, recursionServer{
		executionID: exec.ID,
		tree:        tree,
		deadline:    deadline,
		loop:        loop,
		requests:    requests,
		done:        serverDone,
	})

	out := loop.Run(execCtx, agentloop.Input{
		ExecutionID: exec.ID,
		NodeID:      rootNodeID,
		NodeType:    models.NodeTypeRoot,
		Depth:       0,
		SequenceNum: tree.NextSequence(""),
		Query:       query,
		Context:     contextStr,
		Model:       model,
		Memory:      memory,
		ChunkSize:   o.Limits.DefaultChunkSize,
		Deadline:    minTime(deadline, time.Now().Add(perNodeCap)),
		Recursor: &recursor{
			nodeID:   rootNodeID,
			depth:    0,
			context:  contextStr,
			memory:   memory,
			model:    model,
			requests: requests,
		},
	})
	close(serverDone)

	o.finalize(exec, tree, out, execCtx)

	if sessionID != "" {
		o.Sessions.MergeMemory(sessionID, out.MemoryAfter)
	}
}

func (o *Orchestrator) finalize(exec *models.Execution, tree *trace.Tree, out agentloop.Output, execCtx context.Context) {
	exec.CompletedAt = time.Now()
	in, outT, cost := tree.Totals()
	exec.TotalInputTokens = in
	exec.TotalOutputTokens = outT
	exec.TotalCostUSD = cost

	switch out.Node.Status {
	case models.NodeCompleted:
		exec.Status = models.ExecutionCompleted
		exec.FinalResult = out.Node.Output
		o.Bus.Publish(events.NewExecutionCompleted(exec.ID, exec.FinalResult, map[string]any{
			"input_tokens":  in,
			"output_tokens": outT,
			"cost_usd":      cost,
		}))
	default:
		exec.Status = models.ExecutionFailed
		exec.ErrorKind = out.Node.ErrorKind
		exec.ErrorMessage = out.Node.ErrorMessage
		if exec.ErrorKind == "" && execCtx.Err() != nil {
			exec.ErrorKind = string(errs.KindDeadlineExceeded)
			exec.ErrorMessage = "execution deadline exceeded"
		}
		o.Bus.Publish(events.NewExecutionFailed(exec.ID, exec.ErrorKind, exec.ErrorMessage))
	}

	// Deadline expiry walks the parent chain of the root agent loop's node,
	// marking every still-running node on it failed with DeadlineExceeded.
	// That chain is the root node alone; descendant nodes are not visited
	// by this walk.
	if execCtx.Err() != nil {
		for _, id := range tree.ParentChain(out.Node.ID) {
			tree.Update(id, func(n *models.ExecutionNode) {
				if !n.Status.Terminal() {
					n.Status = models.NodeFailed
					n.ErrorKind = string(errs.KindDeadlineExceeded)
					n.ErrorMessage = "ancestor execution deadline exceeded"
					n.CompletedAt = time.Now()
				}
			})
		}
	}
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
