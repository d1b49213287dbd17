package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pmukeshreddy/rlm-engine/internal/session"
)

// Session/memory endpoints are a thin pass-through to internal/session.Manager
// — sessions are an external collaborator the orchestrator reads and
// writes, not part of the execution core itself.

type createSessionRequest struct {
	Name    string `json:"name"`
	Context string `json:"context"`
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess := s.Sessions.Create(req.Name, req.Context)
	c.JSON(http.StatusOK, sessionToJSON(sess))
}

func (s *Server) handleListSessions(c *gin.Context) {
	sessions := s.Sessions.List()
	out := make([]sessionJSON, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionToJSON(sess))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetSession(c *gin.Context) {
	id := c.Param("id")
	ctx, memory, ok := s.Sessions.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":      id,
		"context": ctx,
		"memory":  memory,
	})
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	id := c.Param("id")
	if !s.Sessions.Delete(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) handleGetMemory(c *gin.Context) {
	id := c.Param("id")
	_, memory, ok := s.Sessions.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, memory)
}

func (s *Server) handleMergeMemory(c *gin.Context) {
	id := c.Param("id")
	var updates map[string]any
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !s.Sessions.MergeMemory(id, updates) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "merged"})
}

type sessionJSON struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func sessionToJSON(s *session.Session) sessionJSON {
	return sessionJSON{
		ID:        s.ID,
		Name:      s.Name,
		CreatedAt: s.CreatedAt.Format(http.TimeFormat),
		UpdatedAt: s.UpdatedAt.Format(http.TimeFormat),
	}
}
