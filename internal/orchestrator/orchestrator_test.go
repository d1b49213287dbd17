package orchestrator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pmukeshreddy/rlm-engine/internal/config"
	"github.com/pmukeshreddy/rlm-engine/internal/errs"
	"github.com/pmukeshreddy/rlm-engine/internal/events"
	"github.com/pmukeshreddy/rlm-engine/internal/llmclient"
	"github.com/pmukeshreddy/rlm-engine/internal/models"
	"github.com/pmukeshreddy/rlm-engine/internal/pricing"
	"github.com/pmukeshreddy/rlm-engine/internal/session"
)

// scriptedLLM returns a fixed response for the root call and another for
// every subsequent (child) call, mimicking a root program that fans out
// over llm_query.
type scriptedLLM struct {
	rootResponse  string
	childResponse string
	calls         int
}

func (s *scriptedLLM) Complete(ctx context.Context, model, system, prompt string) (string, llmclient.Usage, error) {
	s.calls++
	if s.calls == 1 {
		return s.rootResponse, llmclient.Usage{InputTokens: 20, OutputTokens: 10}, nil
	}
	return s.childResponse, llmclient.Usage{InputTokens: 5, OutputTokens: 5}, nil
}

func testLimits() config.Limits {
	return config.Limits{
		MaxContextSize:    500_000,
		DefaultChunkSize:  50_000,
		MaxRecursionDepth: 10,
		ExecutionTimeout:  5 * time.Second,
		DefaultModel:      "claude-sonnet-4-20250514",
	}
}

func newOrchestrator(llm llmclient.Client) *Orchestrator {
	return New(llm, pricing.NewTable(nil), events.NewBus(), session.NewManager(), testLimits())
}

func TestRunSimpleRootOnlyProgramCompletes(t *testing.T) {
	o := newOrchestrator(&scriptedLLM{rootResponse: "```\nFINAL(\"hi \" + context)\n```"})

	exec, err := o.Run(context.Background(), "greet", "world", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.Status != models.ExecutionCompleted {
		t.Fatalf("status = %v (%s: %s)", exec.Status, exec.ErrorKind, exec.ErrorMessage)
	}
	if exec.FinalResult != "hi world" {
		t.Fatalf("final result = %q", exec.FinalResult)
	}
	if exec.TotalInputTokens != 20 || exec.TotalOutputTokens != 10 {
		t.Fatalf("totals not recorded: %+v", exec)
	}

	tree, ok := o.Tree(exec.ID)
	if !ok {
		t.Fatalf("expected a tree for the execution")
	}
	root := tree.Materialize()
	if root == nil || root.Status != models.NodeCompleted {
		t.Fatalf("materialized root = %+v", root)
	}
}

func TestRunRecursesViaLLMQueryIntoChildNode(t *testing.T) {
	o := newOrchestrator(&scriptedLLM{
		rootResponse:  "```\nresult = llm_query(\"tell me about \" + context)\nFINAL(result)\n```",
		childResponse: "```\nFINAL(\"a child answer\")\n```",
	})

	exec, err := o.Run(context.Background(), "ask", "go", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.Status != models.ExecutionCompleted {
		t.Fatalf("status = %v (%s: %s)", exec.Status, exec.ErrorKind, exec.ErrorMessage)
	}
	if exec.FinalResult != "a child answer" {
		t.Fatalf("final result = %q", exec.FinalResult)
	}

	tree, _ := o.Tree(exec.ID)
	root := tree.Materialize()
	if len(root.Children) != 1 {
		t.Fatalf("expected exactly one child node, got %d", len(root.Children))
	}
	child := root.Children[0]
	if child.NodeType != models.NodeTypeChild || child.Depth != 1 || child.Output != "a child answer" {
		t.Fatalf("unexpected child node: %+v", child)
	}
	if child.GeneratedSource == "" {
		t.Fatalf("child node's LM response is a program too, and should have a recorded GeneratedSource")
	}
}

// sequencedLLM returns responses in call order, repeating the last entry
// once exhausted — used to script a different program per recursion depth.
type sequencedLLM struct {
	responses []string
	calls     int
}

func (s *sequencedLLM) Complete(ctx context.Context, model, system, prompt string) (string, llmclient.Usage, error) {
	i := s.calls
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	s.calls++
	return s.responses[i], llmclient.Usage{InputTokens: 5, OutputTokens: 5}, nil
}

func TestRunRecursesPastDepthOneWhenChildProgramRecursesAgain(t *testing.T) {
	recurse := "```\nresult = llm_query(\"go deeper\")\nFINAL(result)\n```"
	bottom := "```\nFINAL(\"bottom\")\n```"
	o := newOrchestrator(&sequencedLLM{responses: []string{recurse, recurse, bottom}})
	limits := testLimits()
	limits.MaxRecursionDepth = 2
	o.Limits = limits

	exec, err := o.Run(context.Background(), "q", "ctx", "", "")
	if err != nil {
		t.Fatalf("unexpected top-level error: %v", err)
	}
	if exec.Status != models.ExecutionCompleted {
		t.Fatalf("status = %v (%s: %s)", exec.Status, exec.ErrorKind, exec.ErrorMessage)
	}
	if exec.FinalResult != "bottom" {
		t.Fatalf("final result = %q", exec.FinalResult)
	}

	tree, _ := o.Tree(exec.ID)
	root := tree.Materialize()
	if len(root.Children) != 1 || len(root.Children[0].Children) != 1 {
		t.Fatalf("expected a depth-0 -> depth-1 -> depth-2 chain, got %+v", root)
	}
	grandchild := root.Children[0].Children[0]
	if grandchild.Depth != 2 {
		t.Fatalf("expected the leaf node at depth 2, got depth %d", grandchild.Depth)
	}
}

func TestRunFailsWithRecursionLimitOneLevelPastTheCap(t *testing.T) {
	recurse := "```\nresult = llm_query(\"go deeper\")\nFINAL(result)\n```"
	o := newOrchestrator(&sequencedLLM{responses: []string{recurse, recurse, recurse}})
	limits := testLimits()
	limits.MaxRecursionDepth = 2
	o.Limits = limits

	exec, err := o.Run(context.Background(), "q", "ctx", "", "")
	if err != nil {
		t.Fatalf("unexpected top-level error: %v", err)
	}
	if exec.Status != models.ExecutionFailed {
		t.Fatalf("status = %v, want failed", exec.Status)
	}
	if exec.ErrorKind != string(errs.KindRecursionLimit) {
		t.Fatalf("error kind = %q, want %q", exec.ErrorKind, errs.KindRecursionLimit)
	}
}

func TestRunRejectsContextLargerThanMaxContextSize(t *testing.T) {
	o := newOrchestrator(&scriptedLLM{})
	limits := testLimits()
	limits.MaxContextSize = 3
	o.Limits = limits

	_, err := o.Run(context.Background(), "q", "way too long", "", "")
	if err == nil {
		t.Fatalf("expected an error for oversized context")
	}
}

func TestRunMergesMemoryBackIntoSession(t *testing.T) {
	o := newOrchestrator(&scriptedLLM{rootResponse: "```\nmemory[\"seen\"] = True\nFINAL(\"ok\")\n```"})
	sess := o.Sessions.Create("demo", "ctx")

	exec, err := o.Run(context.Background(), "q", "ctx", sess.ID, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.Status != models.ExecutionCompleted {
		t.Fatalf("status = %v (%s)", exec.Status, exec.ErrorMessage)
	}

	_, mem, ok := o.Sessions.Get(sess.ID)
	if !ok {
		t.Fatalf("session disappeared")
	}
	if mem["seen"] != true {
		t.Fatalf("expected merged memory to contain seen=true, got %+v", mem)
	}
}

func TestRunRejectsRecursionBeyondDepthCap(t *testing.T) {
	o := newOrchestrator(&scriptedLLM{
		rootResponse:  "```\nresult = llm_query(\"go deeper\")\nFINAL(result)\n```",
		childResponse: "irrelevant",
	})
	limits := testLimits()
	limits.MaxRecursionDepth = 0
	o.Limits = limits

	exec, err := o.Run(context.Background(), "q", "ctx", "", "")
	if err != nil {
		t.Fatalf("unexpected top-level error: %v", err)
	}
	if exec.Status != models.ExecutionFailed {
		t.Fatalf("status = %v, want failed", exec.Status)
	}
}

// slowLLM blocks until ctx is cancelled, to exercise deadline expiry.
type slowLLM struct{}

func (slowLLM) Complete(ctx context.Context, model, system, prompt string) (string, llmclient.Usage, error) {
	<-ctx.Done()
	return "", llmclient.Usage{}, fmt.Errorf("context done: %w", ctx.Err())
}

func TestRunFailsExecutionOnDeadlineExpiry(t *testing.T) {
	o := newOrchestrator(slowLLM{})
	limits := testLimits()
	limits.ExecutionTimeout = 20 * time.Millisecond
	o.Limits = limits

	exec, err := o.Run(context.Background(), "q", "ctx", "", "")
	if err != nil {
		t.Fatalf("unexpected top-level error: %v", err)
	}
	if exec.Status != models.ExecutionFailed {
		t.Fatalf("status = %v, want failed", exec.Status)
	}
}
