package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"admin-console/internal/token_store"
)

type entry struct {
	manager  *Manager
	lastSeen time.Time
}

// Registry maps console-session ids to their managers. Managers idle for
// longer than the TTL are dropped; their stored tokens are kept so a returning
// browser resumes where it left off.
type Registry struct {
	store    token_store.Store
	profiles ProfileFetcher
	idleTTL  time.Duration
	logger   *zap.Logger
	now      func() time.Time

	// OnEvict runs after a manager is dropped.
	OnEvict func(sessionID string)
	// TokenRetention, when set, makes Run delete stored tokens that were last
	// written longer ago than this.
	TokenRetention time.Duration

	mu      sync.Mutex
	entries map[string]*entry
}

func NewRegistry(store token_store.Store, profiles ProfileFetcher, idleTTL time.Duration, logger *zap.Logger) *Registry {
	return &Registry{
		store:    store,
		profiles: profiles,
		idleTTL:  idleTTL,
		logger:   logger,
		now:      time.Now,
		entries:  make(map[string]*entry),
	}
}

// Resolve returns the manager for id. An unknown id is adopted only when the
// store still holds tokens for it, which is how a browser resumes after its
// manager was evicted or the console restarted. Any other id is replaced by a
// fresh one; created reports that case so the caller can reissue the cookie.
func (r *Registry) Resolve(ctx context.Context, id string) (m *Manager, created bool) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		e.lastSeen = r.now()
		r.mu.Unlock()
		return e.manager, false
	}
	r.mu.Unlock()

	if !r.resumable(ctx, id) {
		id = uuid.NewString()
		created = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok = r.entries[id]
	if !ok {
		e = &entry{manager: r.newManager(id)}
		r.entries[id] = e
	}
	e.lastSeen = r.now()
	return e.manager, created
}

func (r *Registry) resumable(ctx context.Context, id string) bool {
	if _, err := uuid.Parse(id); err != nil {
		return false
	}
	_, err := r.store.Get(ctx, id, token_store.SlotAccess)
	if err != nil && !errors.Is(err, token_store.ErrNotFound) {
		r.logger.Warn("Failed to look up stored session", zap.String("session", id), zap.Error(err))
	}
	return err == nil
}

func (r *Registry) newManager(id string) *Manager {
	return NewManager(token_store.NewSlots(r.store, id, r.logger), r.profiles, r.logger)
}

// Rotate replaces old with a manager under a fresh id. Nothing carries over:
// old is signed out, its tokens are cleared and its id is forgotten, so a
// session id known before sign-in is worthless afterwards.
func (r *Registry) Rotate(ctx context.Context, old *Manager) *Manager {
	id := uuid.NewString()
	m := r.newManager(id)

	r.mu.Lock()
	if e, ok := r.entries[old.ID()]; ok && e.manager == old {
		delete(r.entries, old.ID())
	}
	r.entries[id] = &entry{manager: m, lastSeen: r.now()}
	r.mu.Unlock()

	// Logout logs its own failures.
	_ = old.Logout(ctx)
	r.logger.Debug("Rotated console session", zap.String("from", old.ID()), zap.String("to", id))
	return m
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Evict drops managers idle for longer than the TTL and returns how many went.
func (r *Registry) Evict() int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	var evicted []string
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			delete(r.entries, id)
			evicted = append(evicted, id)
		}
	}
	r.mu.Unlock()

	for _, id := range evicted {
		if r.OnEvict != nil {
			r.OnEvict(id)
		}
	}
	if len(evicted) > 0 {
		r.logger.Info("Evicted idle console sessions", zap.Int("count", len(evicted)))
	}
	return len(evicted)
}

// ExpireTokens deletes stored tokens older than TokenRetention. Sessions whose
// tokens go are signed out on their next request.
func (r *Registry) ExpireTokens(ctx context.Context) (int64, error) {
	if r.TokenRetention <= 0 {
		return 0, nil
	}
	n, err := r.store.Expire(ctx, r.now().Add(-r.TokenRetention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.logger.Info("Expired stored session tokens", zap.Int64("count", n))
	}
	return n, nil
}

// Run evicts idle managers and expires old tokens every interval until ctx
// ends.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Evict()
			if _, err := r.ExpireTokens(ctx); err != nil {
				r.logger.Error("Failed to expire stored tokens", zap.Error(err))
			}
		}
	}
}
