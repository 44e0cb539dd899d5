package session

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"admin-console/internal/token_store"
)

func TestRegistryResolve(t *testing.T) {
	ctx := context.Background()
	store := token_store.NewMemoryStore()
	r := NewRegistry(store, newFakeProfiles(), time.Hour, zap.NewNop())

	m, created := r.Resolve(ctx, "")
	if !created || m.ID() == "" {
		t.Fatalf("expected a new session id, got %q created=%v", m.ID(), created)
	}
	same, created := r.Resolve(ctx, m.ID())
	if created || same != m {
		t.Fatalf("expected the same manager for a known id")
	}
	other, created := r.Resolve(ctx, "not-a-uuid")
	if !created || other == m {
		t.Fatalf("expected a fresh session for a malformed id")
	}

	planted := "22222222-2222-2222-2222-222222222222"
	fresh, created := r.Resolve(ctx, planted)
	if !created || fresh.ID() == planted {
		t.Fatalf("an unknown id without stored tokens must not be adopted, got %q created=%v", fresh.ID(), created)
	}

	stored := "33333333-3333-3333-3333-333333333333"
	if err := store.Set(ctx, stored, token_store.SlotAccess, "token"); err != nil {
		t.Fatalf("set: %v", err)
	}
	resumed, created := r.Resolve(ctx, stored)
	if created || resumed.ID() != stored {
		t.Fatalf("an unknown id with stored tokens resumes, got %q created=%v", resumed.ID(), created)
	}
	if r.Len() != 4 {
		t.Fatalf("expected 4 sessions, got %d", r.Len())
	}
}

func TestRegistryRotate(t *testing.T) {
	ctx := context.Background()
	store := token_store.NewMemoryStore()
	r := NewRegistry(store, newFakeProfiles(), time.Hour, zap.NewNop())

	old, _ := r.Resolve(ctx, "")
	if err := store.Set(ctx, old.ID(), token_store.SlotAccess, "token"); err != nil {
		t.Fatalf("set: %v", err)
	}

	m := r.Rotate(ctx, old)
	if m == old || m.ID() == old.ID() {
		t.Fatalf("expected a new session, got %q", m.ID())
	}
	if r.Len() != 1 {
		t.Fatalf("expected the old session to be dropped, got %d sessions", r.Len())
	}
	if _, err := store.Get(ctx, old.ID(), token_store.SlotAccess); err == nil {
		t.Fatalf("expected the old session's tokens to be cleared")
	}
	if !old.State().Initialized || old.State().IsAuthenticated() {
		t.Fatalf("old manager must be signed out, got %+v", old.State())
	}
	again, created := r.Resolve(ctx, old.ID())
	if !created || again.ID() == old.ID() {
		t.Fatalf("the old id must not come back, got %q", again.ID())
	}
	if same, _ := r.Resolve(ctx, m.ID()); same != m {
		t.Fatalf("expected the rotated manager for the new id")
	}
}

func TestRegistryEvict(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRegistry(token_store.NewMemoryStore(), newFakeProfiles(), time.Hour, zap.NewNop())
	r.now = func() time.Time { return now }

	var evicted []string
	r.OnEvict = func(id string) { evicted = append(evicted, id) }

	idle, _ := r.Resolve(ctx, "")
	now = now.Add(30 * time.Minute)
	active, _ := r.Resolve(ctx, "")
	now = now.Add(45 * time.Minute)

	if n := r.Evict(); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if len(evicted) != 1 || evicted[0] != idle.ID() {
		t.Fatalf("expected %s evicted, got %v", idle.ID(), evicted)
	}
	if again, _ := r.Resolve(ctx, active.ID()); again != active {
		t.Fatalf("active session must survive")
	}
}

func TestRegistryExpireTokens(t *testing.T) {
	ctx := context.Background()
	store := token_store.NewMemoryStore()
	r := NewRegistry(store, newFakeProfiles(), time.Hour, zap.NewNop())

	if err := store.Set(ctx, "s1", token_store.SlotAccess, "token"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if n, err := r.ExpireTokens(ctx); err != nil || n != 0 {
		t.Fatalf("without a retention nothing expires, got %d %v", n, err)
	}

	r.TokenRetention = time.Hour
	r.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if n, err := r.ExpireTokens(ctx); err != nil || n != 1 {
		t.Fatalf("expected 1 expired slot, got %d %v", n, err)
	}
	if _, err := store.Get(ctx, "s1", token_store.SlotAccess); err == nil {
		t.Fatalf("expected the token to be gone")
	}
}
