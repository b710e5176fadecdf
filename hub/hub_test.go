package hub

import (
	"encoding/json"
	"testing"
	"time"
)

func recvOrFail(t *testing.T, ch chan []byte) []byte {
	t.Helper()
	select {
	case data := <-ch:
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast")
		return nil
	}
}

func TestBroadcastReachesSessionConnectionsOnly(t *testing.T) {
	h := NewHub()
	go h.Run()

	a := h.NewConnection(nil, "session-a")
	b := h.NewConnection(nil, "session-a")
	other := h.NewConnection(nil, "session-b")
	for _, c := range []*Connection{a, b, other} {
		h.Register(c)
	}

	h.Broadcast("session-a", []byte("update"))

	if got := recvOrFail(t, a.Send); string(got) != "update" {
		t.Errorf("connection a: expected update, got %q", got)
	}
	if n := h.ConnectionCount(); n != 3 {
		t.Errorf("expected 3 connections, got %d", n)
	}
	if got := recvOrFail(t, b.Send); string(got) != "update" {
		t.Errorf("connection b: expected update, got %q", got)
	}
	select {
	case data := <-other.Send:
		t.Errorf("session-b connection received foreign broadcast: %q", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnregisterClosesSendChannel(t *testing.T) {
	h := NewHub()
	go h.Run()

	conn := h.NewConnection(nil, "session-a")
	h.Register(conn)
	h.Unregister(conn)

	select {
	case _, ok := <-conn.Send:
		if ok {
			t.Error("expected closed send channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}

	// Broadcasting to a session with no connections must not block.
	h.Broadcast("session-a", []byte("late"))
}

func TestBroadcastJSON(t *testing.T) {
	h := NewHub()
	go h.Run()

	conn := h.NewConnection(nil, "session-a")
	h.Register(conn)

	if err := h.BroadcastJSON("session-a", map[string]string{"mode": "idle"}); err != nil {
		t.Fatalf("BroadcastJSON failed: %v", err)
	}

	var got map[string]string
	if err := json.Unmarshal(recvOrFail(t, conn.Send), &got); err != nil {
		t.Fatalf("failed to decode broadcast: %v", err)
	}
	if got["mode"] != "idle" {
		t.Errorf("expected mode idle, got %q", got["mode"])
	}
}
