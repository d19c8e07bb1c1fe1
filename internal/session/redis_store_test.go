package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"marginalia/api/internal/store"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	sessions, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return sessions, s
}

func TestSaveAndLookup(t *testing.T) {
	sessions, s := setupTestRedis(t)
	defer sessions.Close()
	defer s.Close()

	ctx := context.Background()
	actor := store.Actor{ID: "actor-1", Name: "Avery", Email: "avery@example.com", Role: "commenter", Color: "#7c4dff"}

	if err := sessions.Save(ctx, "hash-1", actor, time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := sessions.Lookup(ctx, "hash-1")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got != actor {
		t.Errorf("Lookup = %+v, want %+v", got, actor)
	}
}

func TestLookupExpiredSession(t *testing.T) {
	sessions, s := setupTestRedis(t)
	defer sessions.Close()
	defer s.Close()

	ctx := context.Background()
	actor := store.Actor{ID: "actor-2", Name: "Blake"}
	if err := sessions.Save(ctx, "hash-2", actor, time.Now().Add(time.Millisecond)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	s.FastForward(2 * time.Millisecond)

	if _, err := sessions.Lookup(ctx, "hash-2"); err == nil {
		t.Error("expected error for expired session, got nil")
	}
}

func TestLookupNonExistentSession(t *testing.T) {
	sessions, s := setupTestRedis(t)
	defer sessions.Close()
	defer s.Close()

	if _, err := sessions.Lookup(context.Background(), "missing"); err == nil {
		t.Error("expected error for missing session, got nil")
	}
}

func TestRevoke(t *testing.T) {
	sessions, s := setupTestRedis(t)
	defer sessions.Close()
	defer s.Close()

	ctx := context.Background()
	actor := store.Actor{ID: "actor-3", Name: "Casey"}
	if err := sessions.Save(ctx, "hash-3", actor, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := sessions.Lookup(ctx, "hash-3"); err != nil {
		t.Fatalf("Lookup before revoke failed: %v", err)
	}

	if err := sessions.Revoke(ctx, "hash-3"); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if _, err := sessions.Lookup(ctx, "hash-3"); err == nil {
		t.Error("expected error after revoke, got nil")
	}
}
