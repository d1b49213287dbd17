// Package session holds the optional Session external collaborator: a
// named, persisted context+memory pair the orchestrator reads once at
// the start of an execution and merges back once at the end, under the
// Manager's lock (one lock shared by all sessions).
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pmukeshreddy/rlm-engine/internal/models"
)

// ContextMeta is the {size, sha256} metadata the code-generation prompt
// uses instead of the full context blob, so the prompt stays small even
// when the underlying context is hundreds of thousands of characters.
type ContextMeta struct {
	Size   int
	SHA256 string
}

// Session is a named, persisted context+memory pair.
type Session struct {
	ID        string
	Name      string
	Context   string
	Memory    map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Meta computes this session's ContextMeta.
func (s *Session) Meta() ContextMeta {
	sum := sha256.Sum256([]byte(s.Context))
	return ContextMeta{Size: len(s.Context), SHA256: hex.EncodeToString(sum[:])}
}

// Manager holds sessions in memory, each guarded implicitly by Manager's
// own lock: session memory is only ever touched through this type, never
// mutated directly by callers, so two executions sharing a session can't
// race on its Context/Memory fields. Manager is the only session store the
// server wires; internal/storage.SessionRepository adapters match its
// shape but nothing connects them to it.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager builds an empty in-memory session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Create makes a new named session with optional initial context.
func (m *Manager) Create(name, context string) *Session {
	now := time.Now()
	s := &Session{
		ID:        uuid.NewString(),
		Name:      name,
		Context:   context,
		Memory:    map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get returns a deep copy of the session's context and memory — the
// "owned copy" the orchestrator passes down its recursion — or false if
// no session with that id exists.
func (m *Manager) Get(id string) (context string, memory map[string]any, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, found := m.sessions[id]
	if !found {
		return "", nil, false
	}
	return s.Context, models.CloneMemory(s.Memory), true
}

// MergeMemory atomically merges updates into the session's stored memory
// (last-writer-wins per key), called once after the root execution
// completes.
func (m *Manager) MergeMemory(id string, updates map[string]any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return false
	}
	for k, v := range updates {
		s.Memory[k] = v
	}
	s.UpdatedAt = time.Now()
	return true
}

// List returns a snapshot of every session (context/memory omitted —
// callers needing those should use Get).
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		copied := *s
		copied.Context = ""
		copied.Memory = nil
		out = append(out, &copied)
	}
	return out
}

// Delete removes a session.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}
