package store

import (
	"context"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestGetMissingKey(t *testing.T) {
	s := newTestStore(t)

	value, ok, err := s.Get(context.Background(), "chat:session:nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Errorf("expected missing key, got value %q", value)
	}
}

func TestSetOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k", "v1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set(ctx, "k", "v2"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, ok, err := s.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get failed: ok=%v err=%v", ok, err)
	}
	if value != "v2" {
		t.Errorf("expected v2, got %q", value)
	}
}

func TestSetManyWritesAllPairs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pairs := map[string]string{
		"chat:session:abc":         `{"session_id":"abc"}`,
		"chat:session:abc:touched": "2026-08-31T10:00:00Z",
	}
	if err := s.SetMany(ctx, pairs); err != nil {
		t.Fatalf("SetMany failed: %v", err)
	}

	for key, want := range pairs {
		got, ok, err := s.Get(ctx, key)
		if err != nil || !ok {
			t.Fatalf("Get %s failed: ok=%v err=%v", key, ok, err)
		}
		if got != want {
			t.Errorf("key %s: expected %q, got %q", key, want, got)
		}
	}
}

func TestDeleteRemovesAllKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetMany(ctx, map[string]string{"a": "1", "b": "2"}); err != nil {
		t.Fatalf("SetMany failed: %v", err)
	}
	if err := s.Delete(ctx, "a", "b", "never-existed"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	for _, key := range []string{"a", "b"} {
		if _, ok, err := s.Get(ctx, key); err != nil {
			t.Fatalf("Get failed: %v", err)
		} else if ok {
			t.Errorf("key %s should have been deleted", key)
		}
	}
}

func TestDeleteNoKeysIsNoOp(t *testing.T) {
	s := newTestStore(t)

	if err := s.Delete(context.Background()); err != nil {
		t.Fatalf("Delete with no keys failed: %v", err)
	}
}
