package session

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"admin-console/internal/api_client"
	"admin-console/internal/cache"
	"admin-console/internal/fake_backend"
	"admin-console/internal/models"
	"admin-console/internal/resource"
	"admin-console/internal/resources"
	"admin-console/internal/token_store"
)

type fakeProfiles struct {
	mu      sync.Mutex
	calls   int
	ids     []string
	block   chan struct{}
	started chan struct{}
	err     error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{started: make(chan struct{}, 16)}
}

func (f *fakeProfiles) Profile(ctx context.Context, _ resource.Scope, id string) (*models.Staff, error) {
	f.mu.Lock()
	f.calls++
	f.ids = append(f.ids, id)
	block, err := f.block, f.err
	f.mu.Unlock()

	f.started <- struct{}{}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &models.Staff{ID: 7, Username: "root", Role: models.RoleAdmin}, nil
}

func (f *fakeProfiles) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func newManager(t *testing.T, profiles ProfileFetcher, access string) (*Manager, *token_store.Slots) {
	t.Helper()
	slots := token_store.NewSlots(token_store.NewMemoryStore(), "11111111-1111-1111-1111-111111111111", zap.NewNop())
	if access != "" {
		if err := slots.SetTokens(context.Background(), access, "refresh"); err != nil {
			t.Fatalf("SetTokens: %v", err)
		}
	}
	return NewManager(slots, profiles, zap.NewNop()), slots
}

func TestUserIDFromToken(t *testing.T) {
	tests := []struct {
		name    string
		claims  jwt.MapClaims
		want    string
		wantErr bool
	}{
		{name: "user_id", claims: jwt.MapClaims{"user_id": 7, "sub": "9"}, want: "7"},
		{name: "sub fallback", claims: jwt.MapClaims{"sub": "9", "id": 3}, want: "9"},
		{name: "id fallback", claims: jwt.MapClaims{"id": 3}, want: "3"},
		{name: "zero user_id is skipped", claims: jwt.MapClaims{"user_id": 0, "sub": "9"}, want: "9"},
		{name: "empty sub is skipped", claims: jwt.MapClaims{"sub": "", "id": 4}, want: "4"},
		{name: "no id", claims: jwt.MapClaims{"username": "root"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UserIDFromToken(sign(t, tt.claims))
			if tt.wantErr {
				if !errors.Is(err, ErrNoUserID) {
					t.Fatalf("expected ErrNoUserID, got %q, %v", got, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("UserIDFromToken = %q, %v; want %q", got, err, tt.want)
			}
		})
	}

	for _, garbage := range []string{"not-a-jwt", "a.b.c", "a.!!!.c"} {
		if _, err := UserIDFromToken(garbage); err == nil {
			t.Fatalf("expected decode error for %q", garbage)
		}
	}

	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"user_id": 12}`))
	for _, token := range []string{"!!!." + payload + ".sig", "e30." + payload} {
		if got, err := UserIDFromToken(token); err != nil || got != "12" {
			t.Fatalf("only the payload is decoded: UserIDFromToken(%q) = %q, %v", token, got, err)
		}
	}
}

func TestInitializeWithoutToken(t *testing.T) {
	profiles := newFakeProfiles()
	m, _ := newManager(t, profiles, "")

	s := m.Initialize(context.Background())
	if !s.Initialized || s.Loading || s.IsAuthenticated() {
		t.Fatalf("unexpected state %+v", s)
	}
	if profiles.callCount() != 0 {
		t.Fatalf("no profile fetch expected without a token")
	}
}

func TestInitializeUndecodableToken(t *testing.T) {
	for _, token := range []string{"garbage", sign(t, jwt.MapClaims{"username": "x"})} {
		profiles := newFakeProfiles()
		m, slots := newManager(t, profiles, token)

		s := m.Initialize(context.Background())
		if !s.Initialized || s.IsAuthenticated() {
			t.Fatalf("expected unauthenticated session, got %+v", s)
		}
		if profiles.callCount() != 0 {
			t.Fatalf("no profile fetch expected for an undecodable token")
		}
		if slots.AccessToken(context.Background()) != token {
			t.Fatalf("an undecodable token is left in place")
		}
	}
}

func TestInitializeLoadsProfile(t *testing.T) {
	profiles := newFakeProfiles()
	m, _ := newManager(t, profiles, sign(t, jwt.MapClaims{"user_id": 7}))

	s := m.Initialize(context.Background())
	if !s.IsAuthenticated() || s.CurrentUser.Username != "root" {
		t.Fatalf("expected authenticated session, got %+v", s)
	}
	if profiles.ids[0] != "7" {
		t.Fatalf("expected profile fetch for id 7, got %v", profiles.ids)
	}
}

func TestProfileFailureClearsTokens(t *testing.T) {
	profiles := newFakeProfiles()
	profiles.err = &api_client.Error{StatusCode: 401}
	m, slots := newManager(t, profiles, sign(t, jwt.MapClaims{"user_id": 7}))
	ctx := context.Background()

	s := m.Initialize(ctx)
	if !s.Initialized || s.IsAuthenticated() {
		t.Fatalf("expected unauthenticated session, got %+v", s)
	}
	if slots.AccessToken(ctx) != "" || slots.RefreshToken(ctx) != "" {
		t.Fatalf("expected both slots cleared")
	}

	again := m.Initialize(ctx)
	if again.IsAuthenticated() || !again.Initialized {
		t.Fatalf("second initialize must yield the same state, got %+v", again)
	}
	if profiles.callCount() != 1 {
		t.Fatalf("second initialize must be a no-op, got %d fetches", profiles.callCount())
	}
}

func TestProfileFailureAgainstBackend(t *testing.T) {
	backend := fake_backend.New(t)
	id := backend.AddStaff("root", "password1", models.RoleAdmin, true)
	token := backend.TokenFor(id)
	backend.Revoke(token)

	client, err := api_client.NewClient(api_client.Options{BaseURL: backend.URL()}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	set := resources.NewSet(client, cache.NewMemory(time.Minute), zap.NewNop())
	m, slots := newManager(t, set.Staff, token)

	s := m.Initialize(context.Background())
	if s.IsAuthenticated() {
		t.Fatalf("revoked token must not authenticate")
	}
	if slots.AccessToken(context.Background()) != "" || slots.RefreshToken(context.Background()) != "" {
		t.Fatalf("expected both slots cleared")
	}
}

func TestLoginAuthenticatesAfterFetch(t *testing.T) {
	profiles := newFakeProfiles()
	profiles.block = make(chan struct{})
	m, slots := newManager(t, profiles, "")
	ctx := context.Background()
	m.Initialize(ctx)

	token := sign(t, jwt.MapClaims{"user_id": 7})
	done := make(chan State)
	go func() {
		s, _ := m.Login(ctx, token, "refresh")
		done <- s
	}()

	<-profiles.started
	if slots.AccessToken(ctx) != token {
		t.Fatalf("token must be stored before the fetch")
	}
	if s := m.State(); s.IsAuthenticated() || !s.Loading {
		t.Fatalf("must not be authenticated while the fetch runs, got %+v", s)
	}

	close(profiles.block)
	if s := <-done; !s.IsAuthenticated() {
		t.Fatalf("expected authenticated after fetch, got %+v", s)
	}
	if s := m.State(); s.Loading {
		t.Fatalf("loading must end with the fetch")
	}
}

func TestLoginWithFailingProfile(t *testing.T) {
	profiles := newFakeProfiles()
	profiles.err = errors.New("backend down")
	m, slots := newManager(t, profiles, "")
	ctx := context.Background()

	s, err := m.Login(ctx, sign(t, jwt.MapClaims{"user_id": 7}), "refresh")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if s.IsAuthenticated() {
		t.Fatalf("failed profile fetch must not authenticate")
	}
	if slots.AccessToken(ctx) != "" {
		t.Fatalf("expected tokens cleared")
	}
}

func TestLogout(t *testing.T) {
	profiles := newFakeProfiles()
	m, slots := newManager(t, profiles, sign(t, jwt.MapClaims{"user_id": 7}))
	ctx := context.Background()

	if !m.Initialize(ctx).IsAuthenticated() {
		t.Fatalf("expected authenticated")
	}
	if err := m.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if m.State().IsAuthenticated() {
		t.Fatalf("expected signed out")
	}
	if slots.AccessToken(ctx) != "" || slots.RefreshToken(ctx) != "" {
		t.Fatalf("expected both slots cleared")
	}
	if profiles.callCount() != 1 {
		t.Fatalf("logout must not call the backend")
	}
}

func TestCancelledInitializeIsDiscarded(t *testing.T) {
	profiles := newFakeProfiles()
	profiles.block = make(chan struct{})
	token := sign(t, jwt.MapClaims{"user_id": 7})
	m, slots := newManager(t, profiles, token)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan State)
	go func() { done <- m.Initialize(ctx) }()
	<-profiles.started
	cancel()

	s := <-done
	if s.Initialized || s.IsAuthenticated() {
		t.Fatalf("cancelled initialize must not settle the session, got %+v", s)
	}
	if slots.AccessToken(context.Background()) != token {
		t.Fatalf("cancellation must not clear tokens")
	}

	close(profiles.block)
	if s := m.Initialize(context.Background()); !s.Initialized || !s.IsAuthenticated() {
		t.Fatalf("next initialize should run again, got %+v", s)
	}
}

func TestLogoutDiscardsInflightFetch(t *testing.T) {
	profiles := newFakeProfiles()
	profiles.block = make(chan struct{})
	m, _ := newManager(t, profiles, sign(t, jwt.MapClaims{"user_id": 7}))
	ctx := context.Background()

	done := make(chan State)
	go func() { done <- m.Initialize(ctx) }()
	<-profiles.started

	m.Logout(ctx)
	close(profiles.block)
	<-done

	if s := m.State(); s.IsAuthenticated() || !s.Initialized {
		t.Fatalf("stale fetch must not resurrect the session, got %+v", s)
	}
}

func TestConcurrentInitializeFetchesOnce(t *testing.T) {
	profiles := newFakeProfiles()
	profiles.block = make(chan struct{})
	m, _ := newManager(t, profiles, sign(t, jwt.MapClaims{"user_id": 7}))

	var wg sync.WaitGroup
	states := make([]State, 8)
	for i := range states {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			states[i] = m.Initialize(context.Background())
		}(i)
	}
	<-profiles.started
	close(profiles.block)
	wg.Wait()

	if profiles.callCount() != 1 {
		t.Fatalf("expected a single profile fetch, got %d", profiles.callCount())
	}
	for i, s := range states {
		if !s.IsAuthenticated() {
			t.Fatalf("caller %d saw %+v", i, s)
		}
	}
}

func TestRefreshUserAndReconcile(t *testing.T) {
	profiles := newFakeProfiles()
	m, slots := newManager(t, profiles, sign(t, jwt.MapClaims{"user_id": 7}))
	ctx := context.Background()

	m.Initialize(ctx)
	if s := m.RefreshUser(ctx); !s.IsAuthenticated() || profiles.callCount() != 2 {
		t.Fatalf("RefreshUser should refetch, got %+v after %d calls", s, profiles.callCount())
	}

	if s := m.Reconcile(ctx); !s.IsAuthenticated() {
		t.Fatalf("reconcile must keep a session whose token is present")
	}
	slots.Clear(ctx)
	if s := m.Reconcile(ctx); s.IsAuthenticated() {
		t.Fatalf("reconcile must sign out a session whose token was cleared")
	}
}
