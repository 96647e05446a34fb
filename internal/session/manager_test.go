// ABOUTME: Tests for the session state machine
// ABOUTME: Covers initialize, login, logout, generation ordering and teardown with a scripted verifier

package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-console/internal/routes"
	"github.com/2389/coven-console/internal/session"
	"github.com/2389/coven-console/internal/store"
)

var errRejected = errors.New("rejected")

// scriptedVerifier resolves tokens from a table. A token with a gate blocks
// until the gate is closed, ignoring cancellation, like a server that
// answers regardless.
type scriptedVerifier struct {
	mu      sync.Mutex
	users   map[string]session.User
	gates   map[string]chan struct{}
	started chan string
	calls   []string
}

func newScriptedVerifier() *scriptedVerifier {
	return &scriptedVerifier{
		users:   make(map[string]session.User),
		gates:   make(map[string]chan struct{}),
		started: make(chan string, 16),
	}
}

func (v *scriptedVerifier) add(token string, user session.User) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.users[token] = user
}

func (v *scriptedVerifier) hold(token string) chan struct{} {
	v.mu.Lock()
	defer v.mu.Unlock()
	gate := make(chan struct{})
	v.gates[token] = gate
	return gate
}

func (v *scriptedVerifier) Me(ctx context.Context, token string) (session.User, error) {
	v.mu.Lock()
	v.calls = append(v.calls, token)
	gate := v.gates[token]
	v.mu.Unlock()

	v.started <- token
	if gate != nil {
		<-gate
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	user, ok := v.users[token]
	if !ok {
		return session.User{}, errRejected
	}
	return user, nil
}

func (v *scriptedVerifier) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.calls)
}

type recordingRedirector struct {
	mu      sync.Mutex
	targets []string
}

func (r *recordingRedirector) Go(target string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = append(r.targets, target)
	return true
}

func (r *recordingRedirector) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.targets...)
}

type fixture struct {
	profile  *store.MockStore
	tokens   *session.TokenStore
	verifier *scriptedVerifier
	nav      *recordingRedirector
	manager  *session.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		profile:  store.NewMockStore(),
		verifier: newScriptedVerifier(),
		nav:      &recordingRedirector{},
	}
	f.tokens = session.NewTokenStore(f.profile)
	f.manager = session.NewManager(f.tokens, f.verifier, session.WithRedirector(f.nav))
	t.Cleanup(f.manager.Close)
	return f
}

func (f *fixture) storedToken() (string, bool) {
	return f.tokens.Read()
}

func (f *fixture) legacyPresent() bool {
	_, err := f.profile.GetItem(context.Background(), session.LegacyKey)
	return err == nil
}

func waitStarted(t *testing.T, v *scriptedVerifier, token string) {
	t.Helper()
	select {
	case got := <-v.started:
		require.Equal(t, token, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("verification of %q never started", token)
	}
}

var (
	alice = session.User{ID: "1", Email: "a@x.com", DisplayName: "A", Role: session.RoleUser}
	root  = session.User{ID: "2", Email: "r@x.com", DisplayName: "Root", Role: session.RoleAdmin}
)

func TestManager_StartsInInit(t *testing.T) {
	f := newFixture(t)
	s := f.manager.Snapshot()
	assert.Equal(t, session.StatusInit, s.Status())
	assert.True(t, s.IsLoading())
}

func TestManager_InitializeWithoutToken(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.manager.Initialize(context.Background()))

	assert.Equal(t, session.StatusUnauthenticated, f.manager.Snapshot().Status())
	assert.Zero(t, f.verifier.callCount(), "no network call without a token")
	assert.Empty(t, f.nav.all(), "initialize does not navigate")
}

func TestManager_InitializeWithValidToken(t *testing.T) {
	f := newFixture(t)
	f.verifier.add("t1", alice)
	f.tokens.Save("t1", session.TokenTTLDays)

	require.NoError(t, f.manager.Initialize(context.Background()))

	s := f.manager.Snapshot()
	require.Equal(t, session.StatusAuthenticated, s.Status())
	user, _ := s.User()
	assert.Equal(t, alice, user)
	token, _ := s.Token()
	assert.Equal(t, "t1", token)
}

func TestManager_InitializeFromLegacyToken(t *testing.T) {
	f := newFixture(t)
	f.verifier.add("old", root)
	require.NoError(t, f.profile.SetItem(context.Background(), session.LegacyKey, "old"))

	require.NoError(t, f.manager.Initialize(context.Background()))

	role, ok := f.manager.Role()
	require.True(t, ok)
	assert.Equal(t, session.RoleAdmin, role)
}

func TestManager_InitializeRunsOnce(t *testing.T) {
	f := newFixture(t)
	f.verifier.add("t1", alice)
	f.tokens.Save("t1", session.TokenTTLDays)

	require.NoError(t, f.manager.Initialize(context.Background()))
	require.NoError(t, f.manager.Initialize(context.Background()))

	assert.Equal(t, 1, f.verifier.callCount())
}

func TestManager_RejectedTokenClearsEverything(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.profile.SetItem(context.Background(), session.LegacyKey, "bad"))
	f.tokens.Save("bad", session.TokenTTLDays)

	err := f.manager.Initialize(context.Background())
	assert.ErrorIs(t, err, errRejected)

	assert.Equal(t, session.StatusUnauthenticated, f.manager.Snapshot().Status())
	_, ok := f.storedToken()
	assert.False(t, ok, "cookie cleared")
	assert.False(t, f.legacyPresent(), "legacy entry cleared")
	assert.Equal(t, []string{routes.Login}, f.nav.all())
}

func TestManager_UnknownRoleIsRejected(t *testing.T) {
	f := newFixture(t)
	f.verifier.add("t1", session.User{ID: "9", Role: session.Role("owner")})

	err := f.manager.Login(context.Background(), "t1")
	assert.ErrorIs(t, err, session.ErrUnknownRole)
	assert.Equal(t, session.StatusUnauthenticated, f.manager.Snapshot().Status())
	_, ok := f.storedToken()
	assert.False(t, ok)
}

func TestManager_LoginPersistsAndAuthenticates(t *testing.T) {
	f := newFixture(t)
	f.verifier.add("t1", alice)

	require.NoError(t, f.manager.Login(context.Background(), "t1"))

	assert.True(t, f.manager.Snapshot().Authenticated())
	token, ok := f.storedToken()
	require.True(t, ok)
	assert.Equal(t, "t1", token)
}

func TestManager_LoginEmptyTokenLogsOut(t *testing.T) {
	f := newFixture(t)
	f.verifier.add("t1", alice)
	require.NoError(t, f.manager.Login(context.Background(), "t1"))

	err := f.manager.Login(context.Background(), "")
	assert.ErrorIs(t, err, session.ErrEmptyToken)
	assert.Equal(t, session.StatusUnauthenticated, f.manager.Snapshot().Status())
	_, ok := f.storedToken()
	assert.False(t, ok)
}

func TestManager_LoginMarksInitialized(t *testing.T) {
	f := newFixture(t)
	f.verifier.add("t1", alice)
	require.NoError(t, f.manager.Login(context.Background(), "t1"))

	// A later Initialize must not re-verify or reset the session
	require.NoError(t, f.manager.Initialize(context.Background()))
	assert.Equal(t, 1, f.verifier.callCount())
	assert.True(t, f.manager.Snapshot().Authenticated())
}

func TestManager_LogoutIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.verifier.add("t1", alice)
	require.NoError(t, f.manager.Login(context.Background(), "t1"))

	f.manager.Logout()
	once := f.manager.Snapshot()
	_, onceStored := f.storedToken()

	f.manager.Logout()
	twice := f.manager.Snapshot()
	_, twiceStored := f.storedToken()

	assert.Equal(t, once, twice)
	assert.Equal(t, session.StatusUnauthenticated, twice.Status())
	assert.False(t, onceStored)
	assert.False(t, twiceStored)
	assert.Equal(t, []string{routes.Login, routes.Login}, f.nav.all())
}

func TestManager_LatestLoginWins(t *testing.T) {
	f := newFixture(t)
	f.verifier.add("A", alice)
	f.verifier.add("B", root)
	gateA := f.verifier.hold("A")

	errA := make(chan error, 1)
	go func() {
		errA <- f.manager.Login(context.Background(), "A")
	}()
	waitStarted(t, f.verifier, "A")

	// B starts after A and resolves first
	require.NoError(t, f.manager.Login(context.Background(), "B"))
	waitStarted(t, f.verifier, "B")

	close(gateA)
	assert.ErrorIs(t, <-errA, session.ErrSuperseded)

	s := f.manager.Snapshot()
	require.True(t, s.Authenticated())
	user, _ := s.User()
	assert.Equal(t, root, user, "only B's result is visible")
	token, _ := f.storedToken()
	assert.Equal(t, "B", token)
}

func TestManager_LateFailureDoesNotLogOutNewerLogin(t *testing.T) {
	f := newFixture(t)
	f.verifier.add("B", root)
	gateA := f.verifier.hold("A-bad")

	errA := make(chan error, 1)
	go func() {
		errA <- f.manager.Login(context.Background(), "A-bad")
	}()
	waitStarted(t, f.verifier, "A-bad")

	require.NoError(t, f.manager.Login(context.Background(), "B"))
	waitStarted(t, f.verifier, "B")
	close(gateA)

	assert.ErrorIs(t, <-errA, session.ErrSuperseded)
	assert.True(t, f.manager.Snapshot().Authenticated())
	assert.Empty(t, f.nav.all(), "a stale failure never navigates")
}

func TestManager_LogoutSupersedesInFlightLogin(t *testing.T) {
	f := newFixture(t)
	f.verifier.add("A", alice)
	gateA := f.verifier.hold("A")

	errA := make(chan error, 1)
	go func() {
		errA <- f.manager.Login(context.Background(), "A")
	}()
	waitStarted(t, f.verifier, "A")
	assert.True(t, f.manager.Snapshot().IsLoading())

	f.manager.Logout()
	close(gateA)

	assert.ErrorIs(t, <-errA, session.ErrSuperseded)
	assert.Equal(t, session.StatusUnauthenticated, f.manager.Snapshot().Status())
	_, ok := f.storedToken()
	assert.False(t, ok)
}

func TestManager_InFlightAttemptIsCancelledBySuccessor(t *testing.T) {
	profile := store.NewMockStore()
	started := make(chan struct{})
	cancelled := make(chan struct{})
	verifier := verifierFunc(func(ctx context.Context, token string) (session.User, error) {
		if token == "slow" {
			close(started)
			<-ctx.Done()
			close(cancelled)
			return session.User{}, ctx.Err()
		}
		return alice, nil
	})
	m := session.NewManager(session.NewTokenStore(profile), verifier)
	defer m.Close()

	errSlow := make(chan error, 1)
	go func() {
		errSlow <- m.Login(context.Background(), "slow")
	}()
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("slow verification never started")
	}

	require.NoError(t, m.Login(context.Background(), "fast"))

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("superseded attempt was not cancelled")
	}
	assert.ErrorIs(t, <-errSlow, session.ErrSuperseded)
	assert.True(t, m.Snapshot().Authenticated())
}

func TestManager_CloseDiscardsLateResult(t *testing.T) {
	f := newFixture(t)
	f.verifier.add("A", alice)
	gateA := f.verifier.hold("A")

	errA := make(chan error, 1)
	go func() {
		errA <- f.manager.Login(context.Background(), "A")
	}()
	waitStarted(t, f.verifier, "A")

	f.manager.Close()
	close(gateA)

	assert.ErrorIs(t, <-errA, session.ErrSuperseded)
	assert.Equal(t, session.StatusVerifying, f.manager.Snapshot().Status())
	assert.Empty(t, f.nav.all())

	assert.ErrorIs(t, f.manager.Login(context.Background(), "A"), session.ErrClosed)
	assert.ErrorIs(t, f.manager.Initialize(context.Background()), session.ErrClosed)
}

func TestManager_SubscribeObservesTransitions(t *testing.T) {
	f := newFixture(t)
	f.verifier.add("t1", alice)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := f.manager.Subscribe(ctx)

	require.NoError(t, f.manager.Login(context.Background(), "t1"))
	f.manager.Logout()

	var statuses []session.Status
	for len(statuses) < 3 {
		select {
		case s := <-updates:
			statuses = append(statuses, s.Status())
		case <-time.After(time.Second):
			t.Fatalf("only saw %v", statuses)
		}
	}
	assert.Equal(t, []session.Status{
		session.StatusVerifying,
		session.StatusAuthenticated,
		session.StatusUnauthenticated,
	}, statuses)
}

func TestManager_CredentialsView(t *testing.T) {
	f := newFixture(t)
	var creds session.Credentials = f.manager

	_, ok := creds.Token()
	assert.False(t, ok)
	_, ok = creds.Role()
	assert.False(t, ok)

	f.verifier.add("t1", alice)
	require.NoError(t, f.manager.Login(context.Background(), "t1"))

	token, ok := creds.Token()
	assert.True(t, ok)
	assert.Equal(t, "t1", token)
	role, ok := creds.Role()
	assert.True(t, ok)
	assert.Equal(t, session.RoleUser, role)
}

type verifierFunc func(ctx context.Context, token string) (session.User, error)

func (f verifierFunc) Me(ctx context.Context, token string) (session.User, error) {
	return f(ctx, token)
}

type exchangerFunc func(ctx context.Context, username, password string) (string, error)

func (f exchangerFunc) Login(ctx context.Context, username, password string) (string, error) {
	return f(ctx, username, password)
}

func TestManager_LoginWithPassword(t *testing.T) {
	f := newFixture(t)
	f.verifier.add("t1", alice)
	exchanger := exchangerFunc(func(ctx context.Context, username, password string) (string, error) {
		if username == "alice" && password == "hunter2" {
			return "t1", nil
		}
		return "", errRejected
	})

	err := f.manager.LoginWithPassword(context.Background(), exchanger, "alice", "wrong")
	assert.ErrorIs(t, err, errRejected)
	assert.Equal(t, session.StatusInit, f.manager.Snapshot().Status(), "credential failure leaves the session alone")
	assert.Empty(t, f.nav.all())

	require.NoError(t, f.manager.LoginWithPassword(context.Background(), exchanger, "alice", "hunter2"))
	assert.True(t, f.manager.Snapshot().Authenticated())
}

func TestManager_CancelledInitializeKeepsStoredToken(t *testing.T) {
	profile := store.NewMockStore()
	tokens := session.NewTokenStore(profile)
	tokens.Save("t1", session.TokenTTLDays)
	nav := &recordingRedirector{}

	started := make(chan struct{}, 1)
	var slow sync.Once
	verifier := verifierFunc(func(ctx context.Context, token string) (session.User, error) {
		blocked := false
		slow.Do(func() { blocked = true })
		if blocked {
			started <- struct{}{}
			<-ctx.Done()
			return session.User{}, ctx.Err()
		}
		return alice, nil
	})
	m := session.NewManager(tokens, verifier, session.WithRedirector(nav))
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errInit := make(chan error, 1)
	go func() {
		errInit <- m.Initialize(ctx)
	}()
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("verification never started")
	}
	cancel()

	assert.ErrorIs(t, <-errInit, context.Canceled)
	assert.Equal(t, session.StatusInit, m.Snapshot().Status())
	token, ok := tokens.Read()
	require.True(t, ok, "stored token must survive an abandoned verification")
	assert.Equal(t, "t1", token)
	assert.Empty(t, nav.all(), "no redirect to login")

	// The next run re-verifies the kept token
	require.NoError(t, m.Initialize(context.Background()))
	assert.True(t, m.Snapshot().Authenticated())
}

func TestManager_CancelledLoginKeepsSavedToken(t *testing.T) {
	profile := store.NewMockStore()
	tokens := session.NewTokenStore(profile)
	nav := &recordingRedirector{}
	verifier := verifierFunc(func(ctx context.Context, token string) (session.User, error) {
		<-ctx.Done()
		return session.User{}, ctx.Err()
	})
	m := session.NewManager(tokens, verifier, session.WithRedirector(nav))
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := m.Login(ctx, "t1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, session.StatusInit, m.Snapshot().Status())
	token, ok := tokens.Read()
	require.True(t, ok)
	assert.Equal(t, "t1", token)
	assert.Empty(t, nav.all())
}
