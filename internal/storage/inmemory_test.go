package storage

import (
	"context"
	"testing"
	"time"

	"github.com/pmukeshreddy/rlm-engine/internal/models"
	"github.com/pmukeshreddy/rlm-engine/internal/session"
)

func TestInMemorySaveAndGetExecutionRoundTrips(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	exec := &models.Execution{ID: "e1", Query: "q", Status: models.ExecutionRunning, StartedAt: time.Now()}

	if err := s.SaveExecution(ctx, exec); err != nil {
		t.Fatalf("SaveExecution: %v", err)
	}
	exec.Status = models.ExecutionCompleted // mutating the caller's struct must not leak back

	got, err := s.GetExecution(ctx, "e1")
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if got.Status != models.ExecutionRunning {
		t.Fatalf("stored copy observed caller mutation: status = %v", got.Status)
	}
}

func TestInMemoryGetExecutionUnknownReturnsNotFound(t *testing.T) {
	s := NewInMemory()
	if _, err := s.GetExecution(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInMemoryListExecutionsOrderedNewestFirstAndLimited(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	base := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		_ = s.SaveExecution(ctx, &models.Execution{ID: id, StartedAt: base.Add(time.Duration(i) * time.Second)})
	}

	out, err := s.ListExecutions(ctx, 2)
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(out) != 2 || out[0].ID != "c" || out[1].ID != "b" {
		t.Fatalf("unexpected order/limit: %+v", out)
	}
}

func TestInMemoryNodesByExecutionOrderedByDepthThenSequence(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	nodes := []*models.ExecutionNode{
		{ID: "n2", ExecutionID: "e1", Depth: 1, SequenceNumber: 0},
		{ID: "n1", ExecutionID: "e1", Depth: 0, SequenceNumber: 0},
		{ID: "n3", ExecutionID: "e1", Depth: 1, SequenceNumber: 1},
	}
	if err := s.SaveNodes(ctx, nodes); err != nil {
		t.Fatalf("SaveNodes: %v", err)
	}

	out, err := s.NodesByExecution(ctx, "e1")
	if err != nil {
		t.Fatalf("NodesByExecution: %v", err)
	}
	if len(out) != 3 || out[0].ID != "n1" || out[1].ID != "n2" || out[2].ID != "n3" {
		t.Fatalf("unexpected order: %+v", out)
	}
}

func TestInMemorySaveNodesUpsertsByID(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	_ = s.SaveNodes(ctx, []*models.ExecutionNode{{ID: "n1", ExecutionID: "e1", Status: models.NodeRunning}})
	_ = s.SaveNodes(ctx, []*models.ExecutionNode{{ID: "n1", ExecutionID: "e1", Status: models.NodeCompleted}})

	out, _ := s.NodesByExecution(ctx, "e1")
	if len(out) != 1 || out[0].Status != models.NodeCompleted {
		t.Fatalf("expected a single upserted node, got %+v", out)
	}
}

func TestInMemorySessionRoundTripAndDelete(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	sess := &session.Session{ID: "s1", Name: "demo", Context: "ctx", Memory: map[string]any{"a": 1.0}}

	if err := s.SaveSession(ctx, sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	sess.Memory["a"] = 2.0 // mutating the caller's map must not leak into the store

	got, err := s.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Memory["a"] != 1.0 {
		t.Fatalf("stored session observed caller mutation: memory = %+v", got.Memory)
	}

	list, err := s.ListSessions(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListSessions: %v, %+v", err, list)
	}

	if err := s.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := s.GetSession(ctx, "s1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteSession(ctx, "s1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
}
