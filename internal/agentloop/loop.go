package agentloop

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/pmukeshreddy/rlm-engine/internal/errs"
	"github.com/pmukeshreddy/rlm-engine/internal/events"
	"github.com/pmukeshreddy/rlm-engine/internal/llmclient"
	"github.com/pmukeshreddy/rlm-engine/internal/models"
	"github.com/pmukeshreddy/rlm-engine/internal/msl"
	"github.com/pmukeshreddy/rlm-engine/internal/pricing"
	"github.com/pmukeshreddy/rlm-engine/internal/session"
	"github.com/pmukeshreddy/rlm-engine/internal/trace"
)

// Input is everything one Agent Loop invocation needs: the query to send
// the LM, the context the generated program can chunk over, where this
// node sits in the execution tree, which model to call, and the memory
// dict it starts from.
type Input struct {
	ExecutionID  string
	NodeID       string // pre-allocated by the caller so events can reference it from the start
	ParentNodeID string // "" for the root
	NodeType     models.NodeType
	Depth        int
	SequenceNum  int

	Query   string // the node's prompt-shaping query: original user query (root) or the llm_query argument (child)
	Context string // full context string, bound into the sandbox whenever the node runs a program
	Model   string
	Memory  map[string]any

	ChunkSize int // guidance only, root nodes

	// Deadline is this node's LM-call-and-sandbox deadline:
	// min(remaining execution deadline, per-node cap).
	Deadline time.Time

	// Recursor services llm_query calls made by this node's program,
	// invoking a nested Agent Loop through the Orchestrator for each one.
	// Every node gets its own Recursor, since any node's response can turn
	// out to be a program that recurses further.
	Recursor msl.Host
}

// Output is the fully-populated node record plus the memory snapshot the
// caller (Orchestrator) should propagate upward.
type Output struct {
	Node        *models.ExecutionNode
	MemoryAfter map[string]any
}

// Loop drives one node's lifecycle. The orchestrator builds one Loop per
// execution and shares it across every node of that execution's tree; it
// holds that execution's Tree but no per-node state.
type Loop struct {
	LLM     llmclient.Client
	Pricing *pricing.Table
	Bus     *events.Bus
	Tree    *trace.Tree
}

// New builds a Loop from its collaborators.
func New(llm llmclient.Client, priceTable *pricing.Table, bus *events.Bus, tree *trace.Tree) *Loop {
	return &Loop{LLM: llm, Pricing: priceTable, Bus: bus, Tree: tree}
}

const defaultMaxSteps = 2_000_000

// Run drives a single node end to end: create it, prompt the LM, take a
// child's plain-text response as its output or interpret the response as a
// program, record the outcome. All mutation of the node
// record after its initial creation flows through Tree.Update, never a
// direct field write, so totals folding (which keys off the node's status
// transition) stays correct under the tree's lock.
func (l *Loop) Run(ctx context.Context, in Input) Output {
	l.Tree.Add(&models.ExecutionNode{
		ID:             in.NodeID,
		ExecutionID:    in.ExecutionID,
		ParentNodeID:   in.ParentNodeID,
		NodeType:       in.NodeType,
		Depth:          in.Depth,
		SequenceNumber: in.SequenceNum,
		Status:         models.NodeRunning,
		StartedAt:      time.Now(),
		Model:          in.Model,
		MemoryBefore:   models.CloneMemory(in.Memory),
	})

	l.Bus.Publish(events.NewNodeStarted(
		in.ExecutionID, in.NodeID, in.ParentNodeID, in.Depth, in.SequenceNum,
		string(in.NodeType), events.PreviewPrompt(in.Query),
	))

	prompt := l.composePrompt(in)

	callCtx := ctx
	var cancel context.CancelFunc
	if !in.Deadline.IsZero() {
		callCtx, cancel = context.WithDeadline(ctx, in.Deadline)
		defer cancel()
	}

	text, usage, err := l.LLM.Complete(callCtx, in.Model, systemPrompt, prompt)
	if err != nil {
		return l.fail(in, prompt, classifyProviderErr(err), err.Error())
	}

	// A child's response without a fenced code block is a plain-text answer
	// and becomes the node's output verbatim. The root's response, and any
	// fenced child response, is interpreted as a program: MAX_RECURSION_DEPTH
	// is what actually bounds how deep llm_query calls can nest, not the
	// node's position in the tree, so a child's fenced response can itself
	// be a program that recurses further.
	memDict := dictFrom(in.Memory)
	var source string
	var outcome msl.Outcome
	if in.NodeType != models.NodeTypeRoot && !strings.Contains(text, "```") {
		outcome = msl.Outcome{Kind: msl.OutcomeFinal, Value: text}
	} else {
		source = extractProgram(text)
		l.Bus.Publish(events.NewNodeCode(in.ExecutionID, in.NodeID, source))
		program, perr := msl.Parse(source)
		if perr != nil {
			outcome = msl.Outcome{Kind: msl.OutcomeError, ErrKind: errs.KindSandboxViolation, ErrMessage: perr.Error()}
		} else {
			interp := msl.NewInterpreter(in.Recursor, msl.Limits{MaxSteps: defaultMaxSteps, Deadline: in.Deadline}, msl.String(in.Context), memDict)
			outcome = interp.Run(callCtx, program)
		}
	}

	var status models.NodeStatus
	var output, errKind, errMessage string
	switch outcome.Kind {
	case msl.OutcomeFinal:
		status = models.NodeCompleted
		output = outcome.Value
	case msl.OutcomeTimeout:
		status = models.NodeTimeout
		errKind = string(errs.KindDeadlineExceeded)
		errMessage = "node exceeded its deadline"
	case msl.OutcomeError:
		status = models.NodeFailed
		errKind = string(outcome.ErrKind)
		errMessage = outcome.ErrMessage
	}

	costUSD, known := l.Pricing.Cost(in.Model, usage.InputTokens, usage.OutputTokens)
	if !known && errMessage == "" {
		errMessage = "warning: no pricing entry for model " + in.Model
	}

	memoryAfter := in.Memory
	if m, ok := msl.ToGo(memDict).(map[string]any); ok {
		memoryAfter = m
	}
	memoryAfterCopy := models.CloneMemory(memoryAfter)
	completedAt := time.Now()

	var finalNode *models.ExecutionNode
	l.Tree.Update(in.NodeID, func(n *models.ExecutionNode) {
		n.Prompt = prompt
		n.GeneratedSource = source
		n.Status = status
		n.Output = output
		n.ErrorKind = errKind
		n.ErrorMessage = errMessage
		n.InputTokens = usage.InputTokens
		n.OutputTokens = usage.OutputTokens
		n.CostUSD = costUSD
		n.MemoryAfter = memoryAfterCopy
		n.CompletedAt = completedAt
		finalNode = n
	})

	if status == models.NodeCompleted {
		l.Bus.Publish(events.NewNodeOutput(in.ExecutionID, in.NodeID, events.PreviewOutput(output), usage.InputTokens, usage.OutputTokens, costUSD))
	} else {
		l.Bus.Publish(events.NewNodeFailed(in.ExecutionID, in.NodeID, errKind, errMessage))
	}

	return Output{Node: finalNode, MemoryAfter: memoryAfter}
}

func (l *Loop) composePrompt(in Input) string {
	if in.NodeType == models.NodeTypeRoot {
		sum := sha256.Sum256([]byte(in.Context))
		meta := session.ContextMeta{Size: len(in.Context), SHA256: hex.EncodeToString(sum[:])}
		sample := contextSample(in.Context, 200)
		return rootUserMessage(in.Query, meta, sample, in.ChunkSize)
	}
	return childUserMessage(in.Query)
}

func (l *Loop) fail(in Input, prompt string, kind errs.Kind, message string) Output {
	completedAt := time.Now()
	memoryAfterCopy := models.CloneMemory(in.Memory)

	var finalNode *models.ExecutionNode
	l.Tree.Update(in.NodeID, func(n *models.ExecutionNode) {
		n.Prompt = prompt
		n.Status = models.NodeFailed
		n.ErrorKind = string(kind)
		n.ErrorMessage = message
		n.CompletedAt = completedAt
		n.MemoryAfter = memoryAfterCopy
		finalNode = n
	})
	l.Bus.Publish(events.NewNodeFailed(in.ExecutionID, in.NodeID, string(kind), message))
	return Output{Node: finalNode, MemoryAfter: in.Memory}
}

func classifyProviderErr(err error) errs.Kind {
	var e *errs.Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.KindDeadlineExceeded
	}
	return errs.KindProviderError
}

func dictFrom(m map[string]any) *msl.Dict {
	v := msl.FromGo(m)
	d, ok := v.(*msl.Dict)
	if !ok {
		return msl.NewDict()
	}
	return d
}
