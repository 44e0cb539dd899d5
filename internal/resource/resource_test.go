package resource

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"

	"admin-console/internal/api_client"
	"admin-console/internal/cache"
	"admin-console/internal/fake_backend"
	"admin-console/internal/models"
	"admin-console/internal/token_store"
)

type fixture struct {
	backend *fake_backend.Backend
	users   *Resource[models.User]
	store   token_store.Store
	cache   cache.Cache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := fake_backend.New(t)
	client, err := api_client.NewClient(api_client.Options{BaseURL: backend.URL()}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c := cache.NewMemory(time.Minute)
	return &fixture{
		backend: backend,
		users:   New[models.User](client, "users/", "users", c, zap.NewNop()),
		store:   token_store.NewMemoryStore(),
		cache:   c,
	}
}

// scope returns a signed-in console session.
func (f *fixture) scope(t *testing.T, sessionID string) *token_store.Slots {
	t.Helper()
	id := f.backend.AddStaff("op-"+sessionID, "password1", models.RoleAdmin, false)
	slots := token_store.NewSlots(f.store, sessionID, zap.NewNop())
	if err := slots.SetTokens(context.Background(), f.backend.TokenFor(id), ""); err != nil {
		t.Fatalf("SetTokens: %v", err)
	}
	return slots
}

func seedUsers(b *fake_backend.Backend, names ...string) {
	for _, name := range names {
		b.Seed(fake_backend.Users, fake_backend.Record{"username": name, "full_name": name, "is_active": true})
	}
}

func usernames(users []models.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.Username)
	}
	return out
}

func TestSweepStopsAtFirstFailure(t *testing.T) {
	next := "page-2"
	pages := map[int]*models.Page[string]{
		1: {Count: 5, Next: &next, Results: []string{"a", "b"}},
		3: {Count: 5, Results: []string{"e"}},
	}
	var requested []int
	fetch := func(_ context.Context, page int) (*models.Page[string], error) {
		requested = append(requested, page)
		if page == 2 {
			return nil, errors.New("boom")
		}
		return pages[page], nil
	}

	got := Sweep(context.Background(), fetch, zap.NewNop())
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("expected first page only, got %v", got)
	}
	if len(requested) != 2 {
		t.Fatalf("expected exactly 2 requests, got %v", requested)
	}
}

func TestSweepFirstPageFailureReturnsEmpty(t *testing.T) {
	got := Sweep(context.Background(), func(context.Context, int) (*models.Page[int], error) {
		return nil, errors.New("down")
	}, zap.NewNop())
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestAllWalksEveryPage(t *testing.T) {
	f := newFixture(t)
	f.backend.PageSize = 2
	seedUsers(f.backend, "u1", "u2", "u3", "u4", "u5")
	scope := f.scope(t, "s1")

	all := f.users.All(context.Background(), scope, nil)
	if len(all) != 5 {
		t.Fatalf("expected 5 users, got %v", usernames(all))
	}
	if hits := f.backend.Hits(http.MethodGet, "/api/users/"); hits != 3 {
		t.Fatalf("expected 3 page requests, got %d", hits)
	}
}

func TestAllReturnsPartialResultOnError(t *testing.T) {
	f := newFixture(t)
	f.backend.PageSize = 2
	seedUsers(f.backend, "u1", "u2", "u3", "u4", "u5")
	f.backend.Fail(http.MethodGet, "/api/users/?page=2", http.StatusInternalServerError)
	scope := f.scope(t, "s1")

	all := f.users.All(context.Background(), scope, url.Values{})
	if got := usernames(all); len(got) != 2 || got[0] != "u1" || got[1] != "u2" {
		t.Fatalf("expected the first page only, got %v", got)
	}
	if hits := f.backend.Hits(http.MethodGet, "/api/users/"); hits != 2 {
		t.Fatalf("expected the sweep to stop after 2 requests, got %d", hits)
	}
}

func TestAllWithFilters(t *testing.T) {
	f := newFixture(t)
	seedUsers(f.backend, "alice", "bob", "alina")
	scope := f.scope(t, "s1")

	all := f.users.All(context.Background(), scope, url.Values{"search": {"ali"}})
	if len(all) != 2 {
		t.Fatalf("expected 2 matches, got %v", usernames(all))
	}
}

func TestListIsCached(t *testing.T) {
	f := newFixture(t)
	seedUsers(f.backend, "u1")
	scope := f.scope(t, "s1")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := f.users.List(ctx, scope, url.Values{"page": {"1"}})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if res.Kind != models.KindPage || res.Total() != 1 {
			t.Fatalf("unexpected list result %+v", res)
		}
	}
	if hits := f.backend.Hits(http.MethodGet, "/api/users/"); hits != 1 {
		t.Fatalf("expected a single backend read, got %d", hits)
	}

	if _, err := f.users.List(ctx, scope, url.Values{"page": {"1"}, "search": {"u"}}); err != nil {
		t.Fatalf("List: %v", err)
	}
	if hits := f.backend.Hits(http.MethodGet, "/api/users/"); hits != 2 {
		t.Fatalf("different params must miss the cache, got %d hits", hits)
	}
}

func TestMutationsInvalidateList(t *testing.T) {
	f := newFixture(t)
	seedUsers(f.backend, "u1")
	scope := f.scope(t, "s1")
	ctx := context.Background()

	list := func() []string {
		t.Helper()
		res, err := f.users.List(ctx, scope, nil)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		return usernames(res.Items())
	}

	if got := list(); len(got) != 1 {
		t.Fatalf("expected 1 user, got %v", got)
	}

	created, err := f.users.Create(ctx, scope, map[string]any{"username": "u2", "is_active": true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got := list(); len(got) != 2 {
		t.Fatalf("create not visible in list: %v", got)
	}

	id := strconv.FormatInt(created.ID, 10)
	if _, err := f.users.Update(ctx, scope, id, map[string]any{"username": "u2-renamed", "is_active": false}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := list(); got[1] != "u2-renamed" {
		t.Fatalf("update not visible in list: %v", got)
	}

	if _, err := f.users.Patch(ctx, scope, id, map[string]any{"username": "u2-patched"}); err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if got := list(); got[1] != "u2-patched" {
		t.Fatalf("patch not visible in list: %v", got)
	}

	if err := f.users.Delete(ctx, scope, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := list(); len(got) != 1 {
		t.Fatalf("delete not visible in list: %v", got)
	}
}

// racingDoer runs between once the backend has answered the first GET and
// before the caller sees that answer.
type racingDoer struct {
	Doer
	between func()
}

func (d *racingDoer) Do(ctx context.Context, tokens api_client.TokenSource, method, path string, params, body any) ([]byte, error) {
	data, err := d.Doer.Do(ctx, tokens, method, path, params, body)
	if method == http.MethodGet && d.between != nil {
		between := d.between
		d.between = nil
		between()
	}
	return data, err
}

func TestMutationDuringReadKeepsStaleListOutOfCache(t *testing.T) {
	f := newFixture(t)
	seedUsers(f.backend, "u1")
	scope := f.scope(t, "s1")
	ctx := context.Background()

	client, err := api_client.NewClient(api_client.Options{BaseURL: f.backend.URL()}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	doer := &racingDoer{Doer: client}
	users := New[models.User](doer, "users/", "users", f.cache, zap.NewNop())
	doer.between = func() {
		if _, err := users.Create(ctx, scope, map[string]any{"username": "u2", "full_name": "u2", "is_active": true}); err != nil {
			t.Errorf("Create: %v", err)
		}
	}

	first, err := users.List(ctx, scope, nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := usernames(first.Items()); len(got) != 1 {
		t.Fatalf("the racing read saw %v", got)
	}

	second, err := users.List(ctx, scope, nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := usernames(second.Items()); len(got) != 2 {
		t.Fatalf("expected the created user after the race, got %v", got)
	}
	if hits := f.backend.Hits(http.MethodGet, "/api/users/"); hits != 2 {
		t.Fatalf("expected the second list to reach the backend, got %d requests", hits)
	}
}

func TestFailedMutationKeepsCache(t *testing.T) {
	f := newFixture(t)
	seedUsers(f.backend, "u1")
	scope := f.scope(t, "s1")
	ctx := context.Background()

	if _, err := f.users.List(ctx, scope, nil); err != nil {
		t.Fatalf("List: %v", err)
	}
	f.backend.Fail(http.MethodPost, "/api/users/", http.StatusBadRequest)
	if _, err := f.users.Create(ctx, scope, map[string]any{"username": "u2"}); api_client.StatusCode(err) != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if _, err := f.users.List(ctx, scope, nil); err != nil {
		t.Fatalf("List: %v", err)
	}
	if hits := f.backend.Hits(http.MethodGet, "/api/users/"); hits != 1 {
		t.Fatalf("failed mutation must not invalidate, got %d reads", hits)
	}
}

func TestInvalidationStaysInSession(t *testing.T) {
	f := newFixture(t)
	seedUsers(f.backend, "u1")
	first := f.scope(t, "s1")
	second := f.scope(t, "s2")
	ctx := context.Background()

	f.users.List(ctx, first, nil)
	f.users.List(ctx, second, nil)
	if hits := f.backend.Hits(http.MethodGet, "/api/users/"); hits != 2 {
		t.Fatalf("each session reads once, got %d", hits)
	}

	if _, err := f.users.Create(ctx, first, map[string]any{"username": "u2"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	res, _ := f.users.List(ctx, second, nil)
	if len(res.Items()) != 1 {
		t.Fatalf("other session keeps its cached list until it invalidates, got %d", len(res.Items()))
	}
	res, _ = f.users.List(ctx, first, nil)
	if len(res.Items()) != 2 {
		t.Fatalf("mutating session sees the change, got %d", len(res.Items()))
	}
}

func TestGetAndFetch(t *testing.T) {
	f := newFixture(t)
	f.backend.Seed(fake_backend.Users, fake_backend.Record{"id": int64(42), "username": "answer"})
	scope := f.scope(t, "s1")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		u, err := f.users.Get(ctx, scope, "42")
		if err != nil || u.Username != "answer" {
			t.Fatalf("Get: %+v %v", u, err)
		}
	}
	if _, err := f.users.Fetch(ctx, scope, "42"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if hits := f.backend.Hits(http.MethodGet, "/api/users/42/"); hits != 2 {
		t.Fatalf("expected one cached and one uncached read, got %d", hits)
	}

	if _, err := f.users.Get(ctx, scope, "404"); !api_client.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestActionInvalidates(t *testing.T) {
	f := newFixture(t)
	f.backend.Seed(fake_backend.Users, fake_backend.Record{"id": int64(7), "username": "u7", "is_active": true})
	scope := f.scope(t, "s1")
	ctx := context.Background()

	u, _ := f.users.Get(ctx, scope, "7")
	if !u.IsActive {
		t.Fatalf("expected active user")
	}
	if err := f.users.Action(ctx, scope, http.MethodPost, "7/toggle_active/", nil, nil); err != nil {
		t.Fatalf("Action: %v", err)
	}
	u, _ = f.users.Get(ctx, scope, "7")
	if u.IsActive {
		t.Fatalf("toggle not visible after action")
	}
}

func TestBareArrayList(t *testing.T) {
	f := newFixture(t)
	f.backend.ServeBare(fake_backend.Users)
	seedUsers(f.backend, "u1", "u2")
	scope := f.scope(t, "s1")

	res, err := f.users.List(context.Background(), scope, nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.Kind != models.KindItems || len(res.Items()) != 2 || res.HasNext() {
		t.Fatalf("unexpected bare list %+v", res)
	}

	all := f.users.All(context.Background(), scope, nil)
	if len(all) != 2 {
		t.Fatalf("sweep over a bare list returns it once, got %d", len(all))
	}
}
