// Package session tracks who is signed in to each console session.
package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"admin-console/internal/models"
	"admin-console/internal/resource"
)

// State is the observable session. A session is authenticated only when a
// current user has been loaded; a stored token alone does not count.
type State struct {
	CurrentUser *models.Staff
	Loading     bool
	Initialized bool
}

func (s State) IsAuthenticated() bool { return s.CurrentUser != nil }

// Tokens are the session's stored credentials.
type Tokens interface {
	resource.Scope
	SetTokens(ctx context.Context, access, refresh string) error
}

// ProfileFetcher loads a staff profile by id. *resources.Staff implements it.
type ProfileFetcher interface {
	Profile(ctx context.Context, scope resource.Scope, id string) (*models.Staff, error)
}

type Manager struct {
	tokens   Tokens
	profiles ProfileFetcher
	logger   *zap.Logger

	mu          sync.Mutex
	user        *models.Staff
	initialized bool
	initDone    chan struct{}
	inflight    int
	// generation changes on every login and logout; fetches started under an
	// older generation are discarded.
	generation uint64
}

func NewManager(tokens Tokens, profiles ProfileFetcher, logger *zap.Logger) *Manager {
	return &Manager{
		tokens:   tokens,
		profiles: profiles,
		logger:   logger.With(zap.String("session", tokens.SessionID())),
	}
}

func (m *Manager) ID() string { return m.tokens.SessionID() }

// Scope is what backend calls made for this session authenticate with.
func (m *Manager) Scope() resource.Scope { return m.tokens }

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Manager) stateLocked() State {
	var user *models.Staff
	if m.user != nil {
		u := *m.user
		user = &u
	}
	return State{
		CurrentUser: user,
		Loading:     m.inflight > 0 || !m.initialized,
		Initialized: m.initialized,
	}
}

// Initialize resolves the session from stored tokens once. Later calls return
// the settled state; calls made while the first one runs wait for it. If the
// running call's context ends first, its result is dropped and the next call
// starts over. It never returns an error: every failure resolves to an
// unauthenticated session.
func (m *Manager) Initialize(ctx context.Context) State {
	for {
		m.mu.Lock()
		if m.initialized {
			s := m.stateLocked()
			m.mu.Unlock()
			return s
		}
		if done := m.initDone; done != nil {
			m.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return m.State()
			}
		}
		done := make(chan struct{})
		m.initDone = done
		m.mu.Unlock()

		m.logger.Debug("Initializing session")
		m.refresh(ctx)

		m.mu.Lock()
		m.initDone = nil
		close(done)
		s := m.stateLocked()
		m.mu.Unlock()
		if s.Initialized {
			m.logger.Info("Session initialized", zap.Bool("authenticated", s.IsAuthenticated()))
		}
		return s
	}
}

// Login stores a fresh token pair and loads the profile it belongs to. The
// session becomes authenticated only once that fetch succeeds.
func (m *Manager) Login(ctx context.Context, access, refresh string) (State, error) {
	m.mu.Lock()
	m.generation++
	m.mu.Unlock()

	if err := m.tokens.SetTokens(ctx, access, refresh); err != nil {
		m.logger.Error("Failed to store session tokens", zap.Error(err))
		return m.State(), err
	}
	m.refresh(ctx)
	return m.State(), nil
}

// Logout forgets the current user and both tokens. No backend call is made.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.generation++
	m.user = nil
	m.initialized = true
	m.mu.Unlock()

	m.logger.Info("Session signed out")
	if err := m.tokens.Clear(ctx); err != nil {
		m.logger.Error("Failed to clear session tokens", zap.Error(err))
		return err
	}
	return nil
}

// RefreshUser reloads the current user from the stored access token.
func (m *Manager) RefreshUser(ctx context.Context) State {
	m.refresh(ctx)
	return m.State()
}

// Reconcile signs the session out when its access token is gone while a user
// is still loaded, which happens after the backend rejected the token.
func (m *Manager) Reconcile(ctx context.Context) State {
	m.mu.Lock()
	signedIn := m.user != nil
	m.mu.Unlock()
	if signedIn && m.tokens.AccessToken(ctx) == "" {
		m.logger.Info("Access token was revoked, signing session out")
		// Logout logs its own failures; the session is signed out either way.
		_ = m.Logout(ctx)
	}
	return m.State()
}

// refresh runs one profile fetch and applies its outcome unless the caller's
// context ended or a login or logout happened meanwhile.
func (m *Manager) refresh(ctx context.Context) {
	m.mu.Lock()
	m.inflight++
	gen := m.generation
	m.mu.Unlock()

	user, err := m.fetchCurrentUser(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inflight--

	if ctx.Err() != nil || gen != m.generation {
		m.logger.Debug("Discarding stale profile fetch")
		return
	}
	if err != nil {
		m.logger.Warn("Failed to fetch current user, clearing session tokens", zap.Error(err))
		if clearErr := m.tokens.Clear(ctx); clearErr != nil {
			m.logger.Error("Failed to clear session tokens", zap.Error(clearErr))
		}
		user = nil
	}
	m.user = user
	m.initialized = true
}

func (m *Manager) fetchCurrentUser(ctx context.Context) (*models.Staff, error) {
	token := m.tokens.AccessToken(ctx)
	if token == "" {
		m.logger.Debug("No access token, session is not authenticated")
		return nil, nil
	}

	id, err := UserIDFromToken(token)
	if err != nil {
		m.logger.Warn("Could not extract user id from access token", zap.Error(err))
		return nil, nil
	}

	user, err := m.profiles.Profile(ctx, m.tokens, id)
	if err != nil {
		return nil, err
	}
	return user, nil
}
