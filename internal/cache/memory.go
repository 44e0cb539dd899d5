package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

type memoryGroup struct {
	version int64
	keys    map[string]entry
}

// Memory is an in-process Cache. Expired entries are dropped when read.
type Memory struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	seq    int64
	scopes map[string]map[string]*memoryGroup // scope -> group
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:    ttl,
		now:    time.Now,
		scopes: make(map[string]map[string]*memoryGroup),
	}
}

// next hands out versions from one counter, so a group recreated after a purge
// never repeats a version taken before it.
func (m *Memory) next() int64 {
	m.seq++
	return m.seq
}

func (m *Memory) Get(_ context.Context, scope, group, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.scopes[scope][group]
	if !ok {
		return nil, false, nil
	}
	e, ok := g.keys[key]
	if !ok {
		return nil, false, nil
	}
	if m.ttl > 0 && !m.now().Before(e.expiresAt) {
		delete(g.keys, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Version(_ context.Context, scope, group string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	groups, ok := m.scopes[scope]
	if !ok {
		groups = make(map[string]*memoryGroup)
		m.scopes[scope] = groups
	}
	g, ok := groups[group]
	if !ok {
		g = &memoryGroup{version: m.next(), keys: make(map[string]entry)}
		groups[group] = g
	}
	return g.version, nil
}

func (m *Memory) Set(_ context.Context, scope, group, key string, version int64, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.scopes[scope][group]
	if !ok || g.version != version {
		return nil
	}
	g.keys[key] = entry{value: value, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *Memory) Invalidate(_ context.Context, scope, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.scopes[scope][group]; ok {
		g.version = m.next()
		g.keys = make(map[string]entry)
	}
	return nil
}

func (m *Memory) Purge(_ context.Context, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.scopes, scope)
	return nil
}
