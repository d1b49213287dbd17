package session

import "testing"

func TestCreateAndGetReturnsOwnedCopy(t *testing.T) {
	m := NewManager()
	s := m.Create("demo", "hello world")

	ctx, mem, ok := m.Get(s.ID)
	if !ok || ctx != "hello world" {
		t.Fatalf("Get returned %q, %v", ctx, ok)
	}
	mem["injected"] = "value"

	_, mem2, _ := m.Get(s.ID)
	if _, present := mem2["injected"]; present {
		t.Fatalf("mutating the returned memory copy leaked into the session")
	}
}

func TestMergeMemoryIsLastWriterWinsPerKey(t *testing.T) {
	m := NewManager()
	s := m.Create("demo", "")
	if !m.MergeMemory(s.ID, map[string]any{"a": 1.0, "b": "x"}) {
		t.Fatalf("expected merge to succeed")
	}
	if !m.MergeMemory(s.ID, map[string]any{"a": 2.0}) {
		t.Fatalf("expected merge to succeed")
	}
	_, mem, _ := m.Get(s.ID)
	if mem["a"] != 2.0 || mem["b"] != "x" {
		t.Fatalf("unexpected merged memory: %+v", mem)
	}
}

func TestMergeMemoryUnknownSessionFails(t *testing.T) {
	m := NewManager()
	if m.MergeMemory("does-not-exist", map[string]any{"a": 1.0}) {
		t.Fatalf("expected merge into unknown session to fail")
	}
}

func TestMetaComputesSizeAndHash(t *testing.T) {
	m := NewManager()
	s := m.Create("demo", "hello")
	meta := s.Meta()
	if meta.Size != 5 {
		t.Fatalf("Size = %d, want 5", meta.Size)
	}
	if meta.SHA256 == "" {
		t.Fatalf("expected non-empty hash")
	}
}

func TestDeleteRemovesSession(t *testing.T) {
	m := NewManager()
	s := m.Create("demo", "")
	if !m.Delete(s.ID) {
		t.Fatalf("expected delete to succeed")
	}
	if _, _, ok := m.Get(s.ID); ok {
		t.Fatalf("expected session to be gone")
	}
	if m.Delete(s.ID) {
		t.Fatalf("expected second delete to fail")
	}
}
