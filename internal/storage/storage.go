// Package storage defines the durable persistence boundary: one row per
// Execution, one row per ExecutionNode (with parent_node_id), and
// session context+memory as JSON. The orchestrator and session.Manager run
// entirely in-process against trace.Tree/session.Manager; repositories here
// are consulted only at the API boundary (internal/httpapi), so a
// completed run can be persisted and later listed or replayed without the
// in-process hot path ever blocking on a database round trip.
package storage

import (
	"context"
	"errors"

	"github.com/pmukeshreddy/rlm-engine/internal/models"
	"github.com/pmukeshreddy/rlm-engine/internal/session"
)

// ErrNotFound is returned by Get-style methods when no row matches.
var ErrNotFound = errors.New("storage: not found")

// ExecutionRepository persists Executions and their ExecutionNodes.
type ExecutionRepository interface {
	SaveExecution(ctx context.Context, exec *models.Execution) error
	GetExecution(ctx context.Context, id string) (*models.Execution, error)
	ListExecutions(ctx context.Context, limit int) ([]*models.Execution, error)

	SaveNodes(ctx context.Context, nodes []*models.ExecutionNode) error
	NodesByExecution(ctx context.Context, executionID string) ([]*models.ExecutionNode, error)
}

// SessionRepository persists named sessions (context + memory).
type SessionRepository interface {
	SaveSession(ctx context.Context, s *session.Session) error
	GetSession(ctx context.Context, id string) (*session.Session, error)
	ListSessions(ctx context.Context) ([]*session.Session, error)
	DeleteSession(ctx context.Context, id string) error
}
