// Package httpapi implements the HTTP surface with gin: execution
// submission (blocking and SSE streaming variants), execution/tree
// lookup, and a thin session/memory CRUD pass-through to
// internal/session.Manager. None of this is the orchestration core
// itself; it is the boundary callers drive that core through.
package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/pmukeshreddy/rlm-engine/internal/config"
	"github.com/pmukeshreddy/rlm-engine/internal/orchestrator"
	"github.com/pmukeshreddy/rlm-engine/internal/pricing"
	"github.com/pmukeshreddy/rlm-engine/internal/session"
	"github.com/pmukeshreddy/rlm-engine/internal/storage"
)

// Server wires the orchestrator and its collaborators to gin routes.
type Server struct {
	Orchestrator *orchestrator.Orchestrator
	Sessions     *session.Manager
	Executions   storage.ExecutionRepository // optional: nil means no durable persistence
	Pricing      *pricing.Table
	Limits       config.Limits

	engine *gin.Engine
}

// NewServer builds a Server and registers its routes.
func NewServer(orch *orchestrator.Orchestrator, sessions *session.Manager, execs storage.ExecutionRepository, priceTable *pricing.Table, limits config.Limits) *Server {
	s := &Server{
		Orchestrator: orch,
		Sessions:     sessions,
		Executions:   execs,
		Pricing:      priceTable,
		Limits:       limits,
	}
	s.engine = gin.Default()
	s.setupRoutes()
	return s
}

// Engine returns the underlying gin.Engine, e.g. for http.Server.Handler or
// httptest.NewServer.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) setupRoutes() {
	s.engine.GET("/api/health", s.handleHealth)

	s.engine.POST("/api/execute", s.handleExecute)
	s.engine.POST("/api/execute/stream", s.handleExecuteStream)
	s.engine.GET("/api/executions/:id", s.handleGetExecution)
	s.engine.GET("/api/executions/:id/tree", s.handleGetExecutionTree)

	s.engine.POST("/api/sessions", s.handleCreateSession)
	s.engine.GET("/api/sessions", s.handleListSessions)
	s.engine.GET("/api/sessions/:id", s.handleGetSession)
	s.engine.DELETE("/api/sessions/:id", s.handleDeleteSession)
	s.engine.GET("/api/sessions/:id/memory", s.handleGetMemory)
	s.engine.PATCH("/api/sessions/:id/memory", s.handleMergeMemory)
}
