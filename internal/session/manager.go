// ABOUTME: Session state machine owning token verification and login/logout
// ABOUTME: Generation-tagged attempts make the most recent login or logout authoritative

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/coven-console/internal/routes"
)

// Manager errors
var (
	ErrEmptyToken = errors.New("empty token")
	ErrSuperseded = errors.New("verification superseded by a newer attempt")
	ErrClosed     = errors.New("session manager closed")
)

// Verifier turns a bearer token into a verified identity (GET /auth/me).
type Verifier interface {
	Me(ctx context.Context, token string) (User, error)
}

// CredentialExchanger trades a username and password for a bearer token.
type CredentialExchanger interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// Redirector performs a navigation and reports whether one was issued. The
// navigation effect implements it.
type Redirector interface {
	Go(target string) bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithRedirector sets where Logout sends the user.
func WithRedirector(r Redirector) Option {
	return func(m *Manager) {
		m.redirector = r
	}
}

// WithLogger overrides the component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger.With("component", "session")
	}
}

// Manager is the single writer of session state. All methods are safe for
// concurrent use; readers observe immutable snapshots.
type Manager struct {
	tokens     *TokenStore
	verifier   Verifier
	redirector Redirector
	logger     *slog.Logger

	root       context.Context
	rootCancel context.CancelFunc

	mu            sync.Mutex
	current       Session
	generation    uint64
	cancelAttempt context.CancelFunc
	initialized   bool
	closed        bool

	broadcaster *broadcaster
}

// NewManager creates a manager in the Init state.
func NewManager(tokens *TokenStore, verifier Verifier, opts ...Option) *Manager {
	root, cancel := context.WithCancel(context.Background())
	m := &Manager{
		tokens:     tokens,
		verifier:   verifier,
		logger:     slog.Default().With("component", "session"),
		root:       root,
		rootCancel: cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.broadcaster = newBroadcaster(m.logger)
	return m
}

// Snapshot returns the current session state.
func (m *Manager) Snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Token implements Credentials.
func (m *Manager) Token() (string, bool) {
	return m.Snapshot().Token()
}

// Role implements Credentials.
func (m *Manager) Role() (Role, bool) {
	user, ok := m.Snapshot().User()
	if !ok {
		return "", false
	}
	return user.Role, true
}

// Subscribe returns a channel receiving every subsequent snapshot. The
// channel closes when ctx is done or the manager is closed.
func (m *Manager) Subscribe(ctx context.Context) <-chan Session {
	return m.broadcaster.subscribe(ctx)
}

// Initialize restores the session from storage. It runs at most once; when a
// login has already started it does nothing.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.initialized || m.current.Status() != StatusInit {
		m.initialized = true
		m.mu.Unlock()
		return nil
	}
	m.initialized = true

	token, ok := m.tokens.Read()
	if !ok {
		m.generation++
		m.setLocked(Unauthenticated())
		m.mu.Unlock()
		m.logger.Debug("no stored session token")
		return nil
	}

	a := m.beginLocked(ctx)
	m.mu.Unlock()

	return m.verify(a, token)
}

// Login stores the token and verifies it. When a newer Login or a Logout
// happens before this verification resolves, its result is discarded and
// ErrSuperseded is returned. Cancelling ctx first returns the session to Init
// with the token still stored.
func (m *Manager) Login(ctx context.Context, token string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.initialized = true

	if token == "" {
		m.logoutLocked()
		m.mu.Unlock()
		m.redirect(routes.Login)
		return ErrEmptyToken
	}

	m.tokens.Save(token, TokenTTLDays)
	a := m.beginLocked(ctx)
	m.mu.Unlock()

	return m.verify(a, token)
}

// LoginWithPassword exchanges credentials for a token and logs in with it.
// Credential failures leave the session untouched.
func (m *Manager) LoginWithPassword(ctx context.Context, exchanger CredentialExchanger, username, password string) error {
	token, err := exchanger.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("exchanging credentials: %w", err)
	}
	return m.Login(ctx, token)
}

// Logout clears the stored token and in-memory identity, supersedes any
// in-flight verification and navigates to the login route. Calling it on an
// unauthenticated session only repeats the navigation.
func (m *Manager) Logout() {
	m.mu.Lock()
	m.logoutLocked()
	m.mu.Unlock()

	m.redirect(routes.Login)
}

// Close abandons any in-flight verification and closes all subscriptions.
// Results that arrive afterwards are ignored.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.generation++
	if m.cancelAttempt != nil {
		m.cancelAttempt()
		m.cancelAttempt = nil
	}
	m.mu.Unlock()

	m.rootCancel()
	m.broadcaster.close()
}

// attempt is one generation-tagged verification.
type attempt struct {
	generation uint64
	ctx        context.Context
	cancel     context.CancelFunc
}

// verify resolves a and commits its result if a is still current.
func (m *Manager) verify(a attempt, token string) error {
	defer a.cancel()

	m.logger.Debug("verifying session", "generation", a.generation)
	var next Session
	user, err := m.verifier.Me(a.ctx, token)
	if err == nil {
		next, err = NewAuthenticated(token, user)
	}

	m.mu.Lock()
	if a.generation != m.generation {
		m.mu.Unlock()
		m.logger.Debug("discarding stale verification", "generation", a.generation)
		return ErrSuperseded
	}
	m.cancelAttempt = nil

	// The caller gave up before the verifier answered: nothing was learned
	// about the token, so keep it stored and let a later Initialize retry.
	if err != nil && a.ctx.Err() != nil {
		m.generation++
		m.initialized = false
		m.setLocked(Session{})
		m.mu.Unlock()
		m.logger.Debug("verification abandoned by caller", "generation", a.generation)
		return a.ctx.Err()
	}

	if err != nil {
		m.logoutLocked()
		m.mu.Unlock()
		m.logger.Info("session verification failed", "error", err)
		m.redirect(routes.Login)
		return err
	}

	m.setLocked(next)
	m.mu.Unlock()

	m.logger.Info("session authenticated", "user_id", user.ID, "role", user.Role)
	return nil
}

// beginLocked starts a new generation, cancels the previous attempt and
// moves the session to Verifying. Must be called with mu held.
func (m *Manager) beginLocked(ctx context.Context) attempt {
	if m.cancelAttempt != nil {
		m.cancelAttempt()
	}
	m.generation++

	attemptCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(m.root, cancel)
	m.cancelAttempt = cancel

	m.setLocked(Verifying())

	return attempt{
		generation: m.generation,
		ctx:        attemptCtx,
		cancel: func() {
			stop()
			cancel()
		},
	}
}

// logoutLocked must be called with mu held.
func (m *Manager) logoutLocked() {
	m.generation++
	if m.cancelAttempt != nil {
		m.cancelAttempt()
		m.cancelAttempt = nil
	}
	m.tokens.Clear()
	if m.current.Status() != StatusUnauthenticated {
		m.setLocked(Unauthenticated())
	}
}

// setLocked must be called with mu held.
func (m *Manager) setLocked(s Session) {
	m.current = s
	m.broadcaster.publish(s)
}

func (m *Manager) redirect(target string) {
	if m.redirector != nil {
		m.redirector.Go(target)
	}
}
