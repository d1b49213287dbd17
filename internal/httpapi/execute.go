package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pmukeshreddy/rlm-engine/internal/errs"
	"github.com/pmukeshreddy/rlm-engine/internal/events"
)

// executeRequest is the body of POST /api/execute and POST
// /api/execute/stream.
type executeRequest struct {
	Query     string `json:"query" binding:"required"`
	Context   string `json:"context"`
	SessionID string `json:"session_id"`
	Model     string `json:"model"`
}

// handleExecute runs an execution to completion and returns its final
// record — the synchronous counterpart to handleExecuteStream.
func (s *Server) handleExecute(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	exec, err := s.Orchestrator.Run(c.Request.Context(), req.Query, req.Context, req.SessionID, req.Model)
	if err != nil {
		writeErr(c, err)
		return
	}

	if s.Executions != nil {
		if err := s.persistExecution(c, exec.ID); err != nil {
			// Persistence failure doesn't change the execution's outcome —
			// the caller already has the in-memory result.
			c.Error(err)
		}
	}

	c.JSON(http.StatusOK, executionToJSON(exec))
}

// handleExecuteStream starts an execution asynchronously and streams its
// progress as server-sent events, subscribing to internal/events.Bus for
// the execution id Orchestrator.Start hands back immediately. Events
// published in the brief window before Subscribe attaches are accepted as
// lost — this handler always subscribes with an empty catchup set since
// it is itself the first (and only) subscriber racing the execution's
// start.
func (s *Server) handleExecuteStream(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	execID, done, err := s.Orchestrator.Start(c.Request.Context(), req.Query, req.Context, req.SessionID, req.Model)
	if err != nil {
		writeErr(c, err)
		return
	}

	sub := s.Orchestrator.Bus.Subscribe(execID, nil)
	defer sub.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	writeSSE(c.Writer, "execution_id", execID)
	c.Writer.Flush()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-done:
			done = nil
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			payload, marshalErr := json.Marshal(ev.Fields)
			if marshalErr != nil {
				payload = []byte(`{}`)
			}
			writeSSE(c.Writer, string(ev.Kind), string(payload))
			c.Writer.Flush()
			if ev.Kind == events.KindExecutionCompleted || ev.Kind == events.KindExecutionFailed {
				return
			}
		}
	}
}

func writeSSE(w interface{ Write([]byte) (int, error) }, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

func writeErr(c *gin.Context, err error) {
	var e *errs.Error
	if errors.As(err, &e) {
		status := http.StatusBadRequest
		if e.Kind == errs.KindProviderError || e.Kind == errs.KindDeadlineExceeded {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{"error": e.Message, "kind": string(e.Kind)})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
