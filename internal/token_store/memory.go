package token_store

import (
	"context"
	"sync"
	"time"
)

type memorySlot struct {
	value     string
	updatedAt time.Time
}

// MemoryStore keeps slots in process memory. Sessions do not survive a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	now   func() time.Time
	slots map[string]map[string]memorySlot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now, slots: make(map[string]map[string]memorySlot)}
}

func (m *MemoryStore) Get(_ context.Context, sessionID, slot string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.slots[sessionID][slot]
	if !ok {
		return "", ErrNotFound
	}
	return s.value, nil
}

func (m *MemoryStore) Set(_ context.Context, sessionID, slot, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.slots[sessionID]
	if !ok {
		session = make(map[string]memorySlot, 2)
		m.slots[sessionID] = session
	}
	session[slot] = memorySlot{value: value, updatedAt: m.now()}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string, slots ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.slots[sessionID]
	if !ok {
		return nil
	}
	for _, slot := range slots {
		delete(session, slot)
	}
	if len(session) == 0 {
		delete(m.slots, sessionID)
	}
	return nil
}

func (m *MemoryStore) Expire(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, session := range m.slots {
		for slot, s := range session {
			if s.updatedAt.Before(cutoff) {
				delete(session, slot)
				n++
			}
		}
		if len(session) == 0 {
			delete(m.slots, id)
		}
	}
	return n, nil
}

func (m *MemoryStore) Close() error { return nil }
