package repository

import (
	"context"
	"testing"
	"time"
)

func TestSessionsIsolateTasks(t *testing.T) {
	reg := NewSessions()
	a := reg.Start()
	b := reg.Start()
	if a.ID == b.ID {
		t.Fatalf("session ids must differ")
	}

	if _, err := a.Store.Create(context.Background(), sampleTask("", "only in a")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.Store.Len() != 0 {
		t.Fatalf("session b sees session a's tasks")
	}

	got, ok := reg.Lookup(a.ID)
	if !ok || got.Store.Len() != 1 {
		t.Fatalf("lookup of session a failed")
	}
	if _, ok := reg.Lookup("not-a-uuid"); ok {
		t.Fatalf("invalid ids must not resolve")
	}
}

func TestSessionsDiscardAndReap(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	reg := NewSessions()
	reg.now = func() time.Time { return now }

	idle := reg.Start()
	active := reg.Start()
	gone := reg.Start()

	if !reg.Discard(gone.ID) {
		t.Fatalf("expected discard to report existing session")
	}
	if reg.Discard(gone.ID) {
		t.Fatalf("second discard should report nothing removed")
	}

	now = now.Add(45 * time.Minute)
	reg.Lookup(active.ID)
	now = now.Add(30 * time.Minute)

	if n := reg.Reap(time.Hour); n != 1 {
		t.Fatalf("expected 1 reaped session; got %d", n)
	}
	if _, ok := reg.Lookup(idle.ID); ok {
		t.Fatalf("idle session should be gone")
	}
	if _, ok := reg.Lookup(active.ID); !ok {
		t.Fatalf("active session should survive")
	}
	if reg.Len() != 1 {
		t.Fatalf("expected 1 live session; got %d", reg.Len())
	}
}
