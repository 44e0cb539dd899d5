package token_store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	SlotAccess  = "access_token"
	SlotRefresh = "refresh_token"
)

var ErrNotFound = errors.New("token not found")

// Store persists credential slots per console session.
type Store interface {
	// Get returns ErrNotFound when the slot is empty.
	Get(ctx context.Context, sessionID, slot string) (string, error)
	Set(ctx context.Context, sessionID, slot, value string) error
	Delete(ctx context.Context, sessionID string, slots ...string) error
	// Expire deletes every slot last written before cutoff and reports how
	// many went.
	Expire(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

// Slots is one console session's view of the store: the two fixed credential
// slots. Read failures are logged and reported as an empty slot, so a broken
// store never makes a session look authenticated.
type Slots struct {
	store     Store
	sessionID string
	logger    *zap.Logger
}

func NewSlots(store Store, sessionID string, logger *zap.Logger) *Slots {
	return &Slots{store: store, sessionID: sessionID, logger: logger}
}

func (s *Slots) SessionID() string { return s.sessionID }

func (s *Slots) AccessToken(ctx context.Context) string {
	return s.read(ctx, SlotAccess)
}

func (s *Slots) RefreshToken(ctx context.Context) string {
	return s.read(ctx, SlotRefresh)
}

func (s *Slots) read(ctx context.Context, slot string) string {
	value, err := s.store.Get(ctx, s.sessionID, slot)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error("Failed to read token slot",
				zap.String("session_id", s.sessionID),
				zap.String("slot", slot),
				zap.Error(err))
		}
		return ""
	}
	return value
}

func (s *Slots) SetAccessToken(ctx context.Context, token string) error {
	if err := s.store.Set(ctx, s.sessionID, SlotAccess, token); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}
	return nil
}

// SetTokens stores the access token and, when given, the refresh token.
func (s *Slots) SetTokens(ctx context.Context, access, refresh string) error {
	if err := s.SetAccessToken(ctx, access); err != nil {
		return err
	}
	if refresh == "" {
		return nil
	}
	if err := s.store.Set(ctx, s.sessionID, SlotRefresh, refresh); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

// Clear empties both slots.
func (s *Slots) Clear(ctx context.Context) error {
	if err := s.store.Delete(ctx, s.sessionID, SlotAccess, SlotRefresh); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	return nil
}
