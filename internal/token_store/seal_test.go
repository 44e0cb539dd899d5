package token_store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func newSealed(t *testing.T, inner Store) *Sealed {
	t.Helper()
	encoded, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	key, err := ParseKey(encoded)
	if err != nil {
		t.Fatalf("parse key: %v", err)
	}
	sealed, err := NewSealed(inner, key)
	if err != nil {
		t.Fatalf("new sealed: %v", err)
	}
	return sealed
}

func TestSealedStoreRoundTrip(t *testing.T) {
	exerciseStore(t, newSealed(t, NewMemoryStore()))
}

func TestSealedStoreHidesPlaintext(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	sealed := newSealed(t, inner)

	if err := sealed.Set(ctx, "s1", SlotAccess, "eyJ.secret.token"); err != nil {
		t.Fatalf("set: %v", err)
	}
	raw, err := inner.Get(ctx, "s1", SlotAccess)
	if err != nil {
		t.Fatalf("inner get: %v", err)
	}
	if strings.Contains(raw, "secret") {
		t.Fatalf("inner store holds plaintext: %q", raw)
	}
}

func TestSealedStoreBindsSlot(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	sealed := newSealed(t, inner)

	if err := sealed.Set(ctx, "s1", SlotRefresh, "refresh"); err != nil {
		t.Fatalf("set: %v", err)
	}
	raw, _ := inner.Get(ctx, "s1", SlotRefresh)
	// Copy the sealed refresh token into the access slot of another session.
	if err := inner.Set(ctx, "s2", SlotAccess, raw); err != nil {
		t.Fatalf("inner set: %v", err)
	}
	if _, err := sealed.Get(ctx, "s2", SlotAccess); !errors.Is(err, ErrInvalidCiphertext) {
		t.Fatalf("expected ErrInvalidCiphertext, got %v", err)
	}
}

func TestSealedStoreRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	sealed := newSealed(t, inner)

	inner.Set(ctx, "s1", SlotAccess, "not base64 !!")
	if _, err := sealed.Get(ctx, "s1", SlotAccess); !errors.Is(err, ErrInvalidCiphertext) {
		t.Fatalf("expected ErrInvalidCiphertext, got %v", err)
	}

	// A corrupt slot reads as empty through Slots.
	slots := NewSlots(sealed, "s1", zap.NewNop())
	if slots.AccessToken(ctx) != "" {
		t.Fatalf("corrupt slot must read as empty")
	}
}

func TestParseKeyRejectsShortKeys(t *testing.T) {
	if _, err := ParseKey("c2hvcnQ="); !errors.Is(err, ErrInvalidKeySize) {
		t.Fatalf("expected ErrInvalidKeySize, got %v", err)
	}
}

func TestOpenMemoryWithSeal(t *testing.T) {
	key, _ := GenerateKey()
	store, err := Open("memory", "", key, zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := store.(*Sealed); !ok {
		t.Fatalf("expected sealed store, got %T", store)
	}
	if _, err := Open("memory", "", "bad", zap.NewNop()); err == nil {
		t.Fatalf("expected error for bad key")
	}
}
