package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/pmukeshreddy/rlm-engine/internal/models"
	"github.com/pmukeshreddy/rlm-engine/internal/session"
)

// InMemory is the default ExecutionRepository/SessionRepository: a process
// lifetime, lock-guarded map store. Used in tests and in runs whose
// storage driver is not Postgres.
type InMemory struct {
	mu         sync.RWMutex
	executions map[string]*models.Execution
	nodes      map[string][]*models.ExecutionNode // executionID -> nodes
	sessions   map[string]*session.Session
}

// NewInMemory builds an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{
		executions: make(map[string]*models.Execution),
		nodes:      make(map[string][]*models.ExecutionNode),
		sessions:   make(map[string]*session.Session),
	}
}

func (s *InMemory) SaveExecution(_ context.Context, exec *models.Execution) error {
	cp := *exec
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[exec.ID] = &cp
	return nil
}

func (s *InMemory) GetExecution(_ context.Context, id string) (*models.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exec, ok := s.executions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *exec
	return &cp, nil
}

func (s *InMemory) ListExecutions(_ context.Context, limit int) ([]*models.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Execution, 0, len(s.executions))
	for _, exec := range s.executions {
		cp := *exec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemory) SaveNodes(_ context.Context, nodes []*models.ExecutionNode) error {
	if len(nodes) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byExec := make(map[string][]*models.ExecutionNode)
	for _, n := range nodes {
		cp := *n
		byExec[n.ExecutionID] = append(byExec[n.ExecutionID], &cp)
	}
	for execID, ns := range byExec {
		existing := make(map[string]*models.ExecutionNode, len(s.nodes[execID]))
		for _, n := range s.nodes[execID] {
			existing[n.ID] = n
		}
		for _, n := range ns {
			existing[n.ID] = n
		}
		merged := make([]*models.ExecutionNode, 0, len(existing))
		for _, n := range existing {
			merged = append(merged, n)
		}
		s.nodes[execID] = merged
	}
	return nil
}

func (s *InMemory) NodesByExecution(_ context.Context, executionID string) ([]*models.ExecutionNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.nodes[executionID]
	out := make([]*models.ExecutionNode, len(src))
	for i, n := range src {
		cp := *n
		out[i] = &cp
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Depth != out[j].Depth {
			return out[i].Depth < out[j].Depth
		}
		return out[i].SequenceNumber < out[j].SequenceNumber
	})
	return out, nil
}

func (s *InMemory) SaveSession(_ context.Context, sess *session.Session) error {
	cp := *sess
	cp.Memory = models.CloneMemory(sess.Memory)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *InMemory) GetSession(_ context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sess
	cp.Memory = models.CloneMemory(sess.Memory)
	return &cp, nil
}

func (s *InMemory) ListSessions(_ context.Context) ([]*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		cp := *sess
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}
