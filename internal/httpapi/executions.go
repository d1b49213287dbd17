package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pmukeshreddy/rlm-engine/internal/models"
	"github.com/pmukeshreddy/rlm-engine/internal/storage"
	"github.com/pmukeshreddy/rlm-engine/internal/trace"
)

// executionJSON is the wire shape of an Execution.
type executionJSON struct {
	ID                string  `json:"id"`
	SessionID         string  `json:"session_id,omitempty"`
	Query             string  `json:"query"`
	ContextSize       int     `json:"context_size"`
	Status            string  `json:"status"`
	StartedAt         string  `json:"started_at"`
	CompletedAt       string  `json:"completed_at,omitempty"`
	TotalInputTokens  int     `json:"total_input_tokens"`
	TotalOutputTokens int     `json:"total_output_tokens"`
	TotalCostUSD      float64 `json:"total_cost_usd"`
	FinalResult       string  `json:"final_result,omitempty"`
	ErrorMessage      string  `json:"error_message,omitempty"`
	ErrorKind         string  `json:"error_kind,omitempty"`
}

func executionToJSON(e *models.Execution) executionJSON {
	out := executionJSON{
		ID:                e.ID,
		SessionID:         e.SessionID,
		Query:             e.Query,
		ContextSize:       e.ContextSize,
		Status:            string(e.Status),
		StartedAt:         e.StartedAt.Format(http.TimeFormat),
		TotalInputTokens:  e.TotalInputTokens,
		TotalOutputTokens: e.TotalOutputTokens,
		TotalCostUSD:      e.TotalCostUSD,
		FinalResult:       e.FinalResult,
		ErrorMessage:      e.ErrorMessage,
		ErrorKind:         e.ErrorKind,
	}
	if !e.CompletedAt.IsZero() {
		out.CompletedAt = e.CompletedAt.Format(http.TimeFormat)
	}
	return out
}

// handleGetExecution looks up an execution, preferring the in-memory
// record (accurate for still-running executions) and falling back to
// durable storage once it has aged out of the orchestrator's map — which
// today never happens, since the orchestrator keeps every execution it
// has ever run; the fallback exists for a future eviction policy.
func (s *Server) handleGetExecution(c *gin.Context) {
	id := c.Param("id")

	if exec, ok := s.Orchestrator.Execution(id); ok {
		c.JSON(http.StatusOK, executionToJSON(exec))
		return
	}

	if s.Executions != nil {
		exec, err := s.Executions.GetExecution(c.Request.Context(), id)
		if err == nil {
			c.JSON(http.StatusOK, executionToJSON(exec))
			return
		}
		if !errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "execution not found"})
}

// handleGetExecutionTree returns the materialized node tree.
func (s *Server) handleGetExecutionTree(c *gin.Context) {
	id := c.Param("id")

	tree, ok := s.Orchestrator.Tree(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "execution not found"})
		return
	}
	root := tree.Materialize()
	if root == nil {
		c.JSON(http.StatusOK, gin.H{"root": nil})
		return
	}
	c.JSON(http.StatusOK, nodeToJSON(root))
}

type nodeJSON struct {
	ID              string     `json:"id"`
	ParentNodeID    string     `json:"parent_node_id,omitempty"`
	NodeType        string     `json:"node_type"`
	Depth           int        `json:"depth"`
	SequenceNumber  int        `json:"sequence_number"`
	Prompt          string     `json:"prompt"`
	GeneratedSource string     `json:"generated_source,omitempty"`
	Status          string     `json:"status"`
	Model           string     `json:"model"`
	InputTokens     int        `json:"input_tokens"`
	OutputTokens    int        `json:"output_tokens"`
	CostUSD         float64    `json:"cost_usd"`
	Output          string     `json:"output,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	ErrorKind       string     `json:"error_kind,omitempty"`
	Children        []nodeJSON `json:"children,omitempty"`
}

func nodeToJSON(n *trace.Node) nodeJSON {
	out := nodeJSON{
		ID:              n.ID,
		ParentNodeID:    n.ParentNodeID,
		NodeType:        string(n.NodeType),
		Depth:           n.Depth,
		SequenceNumber:  n.SequenceNumber,
		Prompt:          n.Prompt,
		GeneratedSource: n.GeneratedSource,
		Status:          string(n.Status),
		Model:           n.Model,
		InputTokens:     n.InputTokens,
		OutputTokens:    n.OutputTokens,
		CostUSD:         n.CostUSD,
		Output:          n.Output,
		ErrorMessage:    n.ErrorMessage,
		ErrorKind:       n.ErrorKind,
	}
	for _, child := range n.Children {
		out.Children = append(out.Children, nodeToJSON(child))
	}
	return out
}

// persistExecution copies the completed execution and its tree into
// durable storage, called only from handleExecute after a run finishes.
func (s *Server) persistExecution(ctx context.Context, executionID string) error {
	exec, ok := s.Orchestrator.Execution(executionID)
	if !ok {
		return nil
	}
	if err := s.Executions.SaveExecution(ctx, exec); err != nil {
		return err
	}
	tree, ok := s.Orchestrator.Tree(executionID)
	if !ok {
		return nil
	}
	return s.Executions.SaveNodes(ctx, flattenTree(tree.Materialize()))
}

func flattenTree(root *trace.Node) []*models.ExecutionNode {
	if root == nil {
		return nil
	}
	var out []*models.ExecutionNode
	var walk func(n *trace.Node)
	walk = func(n *trace.Node) {
		out = append(out, n.ExecutionNode)
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(root)
	return out
}
