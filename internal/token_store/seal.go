package token_store

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrInvalidKeySize    = errors.New("invalid seal key: must be base64 of 32 bytes")
	ErrInvalidCiphertext = errors.New("invalid sealed token")
)

// Sealed encrypts slot values with XChaCha20-Poly1305 before handing them to
// the wrapped store. The session id and slot name are bound as associated
// data, so a value copied into another slot fails to open.
type Sealed struct {
	inner Store
	aead  cipher.AEAD
}

// ParseKey decodes a base64 32-byte key.
func ParseKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKeySize
	}
	return key, nil
}

// GenerateKey returns a fresh base64 key suitable for storage.seal_key.
func GenerateKey() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

func NewSealed(inner Store, key []byte) (*Sealed, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, ErrInvalidKeySize
	}
	return &Sealed{inner: inner, aead: aead}, nil
}

func associatedData(sessionID, slot string) []byte {
	return []byte(sessionID + "/" + slot)
}

func (s *Sealed) Get(ctx context.Context, sessionID, slot string) (string, error) {
	sealed, err := s.inner.Get(ctx, sessionID, slot)
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < s.aead.NonceSize()+s.aead.Overhead() {
		return "", ErrInvalidCiphertext
	}

	nonce, ciphertext := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, associatedData(sessionID, slot))
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plaintext), nil
}

func (s *Sealed) Set(ctx context.Context, sessionID, slot, value string) error {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(value)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(value), associatedData(sessionID, slot))
	return s.inner.Set(ctx, sessionID, slot, base64.StdEncoding.EncodeToString(sealed))
}

func (s *Sealed) Delete(ctx context.Context, sessionID string, slots ...string) error {
	return s.inner.Delete(ctx, sessionID, slots...)
}

func (s *Sealed) Expire(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.inner.Expire(ctx, cutoff)
}

func (s *Sealed) Close() error {
	return s.inner.Close()
}
