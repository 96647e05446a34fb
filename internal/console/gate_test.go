// ABOUTME: Tests for the layout gate wired to a real session manager, effect and history
// ABOUTME: Exercises visits, session-driven re-evaluation, page requirements and post-login return

package console

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-console/internal/guard"
	"github.com/2389/coven-console/internal/identity"
	"github.com/2389/coven-console/internal/navigation"
	"github.com/2389/coven-console/internal/session"
	"github.com/2389/coven-console/internal/store"
)

// identityAPI is a scripted /auth/me endpoint.
type identityAPI struct {
	mu    sync.Mutex
	users map[string]map[string]string
	calls int
}

func (a *identityAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	user, ok := a.users[token]
	if !ok {
		http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(user)
}

func (a *identityAPI) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type harness struct {
	api     *identityAPI
	server  *httptest.Server
	profile *store.SQLiteStore
	tokens  *session.TokenStore
	manager *session.Manager
	effect  *navigation.Effect
	history *navigation.History
	gate    *Gate
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		api: &identityAPI{users: map[string]map[string]string{
			"t1":    {"id": "1", "email": "a@x.com", "name": "A", "role": "user"},
			"admin": {"id": "2", "email": "r@x.com", "username": "root", "role": "admin"},
		}},
	}
	h.server = httptest.NewServer(h.api)
	t.Cleanup(h.server.Close)

	profile, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "profile.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = profile.Close() })
	h.profile = profile

	h.history = navigation.NewHistory("/")
	h.effect = navigation.NewEffect(h.history, time.Minute)
	t.Cleanup(h.effect.Close)

	h.tokens = session.NewTokenStore(profile)
	redirect := gateRedirector{h}
	h.manager = session.NewManager(h.tokens, identity.NewClient(h.server.URL, time.Second), session.WithRedirector(redirect))
	t.Cleanup(h.manager.Close)

	h.gate = NewGate(h.manager, h.effect)
	h.history.OnChange(func(path string) { h.gate.Visit(path) })
	return h
}

// gateRedirector sends manager redirects through the gate once it exists.
type gateRedirector struct{ h *harness }

func (r gateRedirector) Go(target string) bool {
	return r.h.gate.Go(target)
}

func TestGate_PendingWhileLoading(t *testing.T) {
	h := newHarness(t)

	d := h.gate.Visit("/agents")
	assert.Equal(t, guard.Pending, d.Kind)
	assert.Equal(t, "/", h.history.Location(), "no navigation while loading")
}

func TestGate_UnauthenticatedRedirectsToLoginWithReturnPath(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.manager.Initialize(context.Background()))

	d := h.gate.Visit("/agents?tab=active")
	assert.Equal(t, guard.RedirectToLogin, d.Kind)
	assert.Equal(t, "/login?redirect=%2Fagents%3Ftab%3Dactive", h.history.Location())

	path, last := h.gate.Current()
	assert.Equal(t, "/login?redirect=%2Fagents%3Ftab%3Dactive", path)
	assert.Equal(t, guard.Allow, last.Kind)
	assert.Zero(t, h.api.callCount())
}

func TestGate_UserSentToDashboard(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.manager.Login(context.Background(), "t1"))

	d := h.gate.Visit("/admin")
	assert.Equal(t, guard.RedirectToDefaultForRole, d.Kind)
	assert.Equal(t, "/user/dashboard", h.history.Location())
	assert.Equal(t, []string{"/", "/user/dashboard"}, h.history.Entries(), "visit itself is not a history entry")
}

func TestGate_AdminSentHome(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.manager.Login(context.Background(), "admin"))

	h.gate.Visit("/user/support")
	assert.Equal(t, "/", h.history.Location())
}

func TestGate_PublicPagesStayPut(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.manager.Login(context.Background(), "admin"))

	for _, p := range []string{"/login", "/public-chat/room", "/widget"} {
		assert.Equal(t, guard.Allow, h.gate.Visit(p).Kind, p)
	}
	assert.Equal(t, []string{"/"}, h.history.Entries())
}

func TestGate_RequireExplicitRoles(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.manager.Login(context.Background(), "t1"))

	require.Equal(t, guard.Allow, h.gate.Visit("/chat").Kind)

	d := h.gate.Require(session.RoleAdmin)
	assert.Equal(t, guard.RedirectToDefaultForRole, d.Kind)
	assert.Equal(t, "/user/dashboard", h.history.Location())

	assert.Equal(t, guard.Allow, h.gate.Require(session.RoleUser).Kind)
}

func TestGate_RunReactsToSessionChanges(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.gate.Visit("/user/dashboard")

	done := make(chan error, 1)
	go func() { done <- h.gate.Run(ctx) }()

	require.NoError(t, h.manager.Login(context.Background(), "admin"))
	require.Eventually(t, func() bool { return h.history.Location() == "/" }, 2*time.Second, 10*time.Millisecond)

	h.manager.Logout()
	require.Eventually(t, func() bool {
		return strings.HasPrefix(h.history.Location(), "/login")
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestGate_LogoutFromProtectedPageEndsOnLogin(t *testing.T) {
	for i := 0; i < 20; i++ {
		h := newHarness(t)
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- h.gate.Run(ctx) }()

		require.NoError(t, h.manager.Login(context.Background(), "admin"))
		h.history.Navigate("/agents")
		require.Eventually(t, func() bool {
			path, d := h.gate.Current()
			return path == "/agents" && d.Kind == guard.Allow
		}, 2*time.Second, 5*time.Millisecond)

		h.manager.Logout()
		assert.Equal(t, "/login", h.history.Location())

		// Let Run drain the logout snapshot; the location must not move
		time.Sleep(10 * time.Millisecond)
		assert.Equal(t, "/login", h.history.Location())

		cancel()
		<-done
	}
}

func TestGate_RunEndsWhenManagerCloses(t *testing.T) {
	h := newHarness(t)
	done := make(chan error, 1)
	go func() { done <- h.gate.Run(context.Background()) }()

	// Give Run a moment to subscribe; a late subscriber still sees a closed channel
	time.Sleep(20 * time.Millisecond)
	h.manager.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestGate_AfterLoginReturnsToOrigin(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.manager.Initialize(context.Background()))

	h.gate.Visit("/agents?tab=active")
	require.Equal(t, "/login?redirect=%2Fagents%3Ftab%3Dactive", h.history.Location())

	require.NoError(t, h.manager.Login(context.Background(), "admin"))
	assert.True(t, h.gate.AfterLogin())
	assert.Equal(t, "/agents?tab=active", h.history.Location())
}

func TestGate_AfterLoginWithoutSession(t *testing.T) {
	h := newHarness(t)
	assert.False(t, h.gate.AfterLogin())
}

func TestReturnTarget(t *testing.T) {
	tests := []struct {
		name string
		path string
		role session.Role
		want string
	}{
		{"no param admin", "/login", session.RoleAdmin, "/"},
		{"no param user", "/login", session.RoleUser, "/user/dashboard"},
		{"allowed origin", "/login?redirect=%2Fagents%3Ftab%3Dactive", session.RoleAdmin, "/agents?tab=active"},
		{"forbidden origin", "/login?redirect=%2Fagents", session.RoleUser, "/user/dashboard"},
		{"user origin", "/login?redirect=%2Fuser%2Fsupport", session.RoleUser, "/user/support"},
		{"external url", "/login?redirect=https%3A%2F%2Fevil.example", session.RoleUser, "/user/dashboard"},
		{"protocol relative", "/login?redirect=%2F%2Fevil.example", session.RoleAdmin, "/"},
		{"back to login", "/login?redirect=%2Flogin", session.RoleAdmin, "/"},
		{"bad query", "/login?redirect=%zz", session.RoleAdmin, "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReturnTarget(tt.path, tt.role))
		})
	}
}
