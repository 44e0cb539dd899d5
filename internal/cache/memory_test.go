package cache

import (
	"context"
	"testing"
	"time"
)

func set(t *testing.T, c Cache, scope, group, key, value string) {
	t.Helper()
	ctx := context.Background()
	v, err := c.Version(ctx, scope, group)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if err := c.Set(ctx, scope, group, key, v, []byte(value)); err != nil {
		t.Fatalf("set: %v", err)
	}
}

func TestMemoryCacheScopesAndGroups(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)

	set(t, c, "s1", "users", "users/?page=1", "one")
	set(t, c, "s1", "staff", "staff/", "staff")
	set(t, c, "s2", "users", "users/?page=1", "other")

	if v, ok, _ := c.Get(ctx, "s1", "users", "users/?page=1"); !ok || string(v) != "one" {
		t.Fatalf("expected hit, got %q ok=%v", v, ok)
	}

	if err := c.Invalidate(ctx, "s1", "users"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "s1", "users", "users/?page=1"); ok {
		t.Fatalf("expected miss after invalidation")
	}
	if _, ok, _ := c.Get(ctx, "s1", "staff", "staff/"); !ok {
		t.Fatalf("invalidation must not touch other groups")
	}
	if _, ok, _ := c.Get(ctx, "s2", "users", "users/?page=1"); !ok {
		t.Fatalf("invalidation must not touch other scopes")
	}

	if err := c.Purge(ctx, "s1"); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "s1", "staff", "staff/"); ok {
		t.Fatalf("expected purge to drop the scope")
	}
}

func TestMemoryCacheDropsStaleWrites(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)

	tests := []struct {
		name   string
		change func()
	}{
		{name: "invalidated", change: func() { c.Invalidate(ctx, "s1", "users") }},
		{name: "purged", change: func() { c.Purge(ctx, "s1") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, _ := c.Version(ctx, "s1", "users")
			tt.change()
			if err := c.Set(ctx, "s1", "users", "users/", before, []byte("stale")); err != nil {
				t.Fatalf("set: %v", err)
			}
			if _, ok, _ := c.Get(ctx, "s1", "users", "users/"); ok {
				t.Fatalf("a write older than the last change must be dropped")
			}

			set(t, c, "s1", "users", "users/", "fresh")
			if v, ok, _ := c.Get(ctx, "s1", "users", "users/"); !ok || string(v) != "fresh" {
				t.Fatalf("expected fresh hit, got %q ok=%v", v, ok)
			}
		})
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemory(time.Minute)
	c.now = func() time.Time { return now }

	set(t, c, "s1", "users", "k", "v")
	now = now.Add(59 * time.Second)
	if _, ok, _ := c.Get(ctx, "s1", "users", "k"); !ok {
		t.Fatalf("expected hit before ttl")
	}
	now = now.Add(time.Second)
	if _, ok, _ := c.Get(ctx, "s1", "users", "k"); ok {
		t.Fatalf("expected miss at ttl")
	}
}
