// ABOUTME: Layout-level gate composing the session manager, route guard and navigation effect
// ABOUTME: Re-evaluates the current path on every visit and on every session change

package console

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/2389/coven-console/internal/guard"
	"github.com/2389/coven-console/internal/routes"
	"github.com/2389/coven-console/internal/session"
)

// Sessions is the read side of the session manager.
type Sessions interface {
	Snapshot() session.Session
	Subscribe(ctx context.Context) <-chan session.Session
}

// Effect executes guard decisions.
type Effect interface {
	Apply(d guard.Decision) bool
	Go(target string) bool
	Arrived(path string)
}

// Gate owns the current path and keeps it consistent with the session.
type Gate struct {
	sessions Sessions
	effect   Effect
	logger   *slog.Logger

	mu   sync.Mutex
	path string
	last guard.Decision

	// navMu orders session-driven navigations: Run re-evaluations, Go and
	// AfterLogin. Visit does not take it, since navigating re-enters Visit.
	navMu sync.Mutex
}

// NewGate creates a gate. Nothing is evaluated until the first Visit.
func NewGate(sessions Sessions, effect Effect) *Gate {
	return &Gate{
		sessions: sessions,
		effect:   effect,
		logger:   slog.Default().With("component", "gate"),
	}
}

// Visit records path as the current location and admits or redirects it.
func (g *Gate) Visit(path string) guard.Decision {
	if path == "" {
		path = "/"
	}

	g.mu.Lock()
	g.path = path
	g.mu.Unlock()

	g.effect.Arrived(path)
	return g.evaluate(path)
}

// Require evaluates the current path against a page's explicit role
// requirements and applies the result.
func (g *Gate) Require(roles ...session.Role) guard.Decision {
	g.mu.Lock()
	path := g.path
	g.mu.Unlock()

	d := guard.Decide(g.sessions.Snapshot(), path, roles...)
	g.record(path, d)
	g.effect.Apply(d)
	return d
}

// Current returns the current path and the last decision made for it.
func (g *Gate) Current() (string, guard.Decision) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.path, g.last
}

// Run re-evaluates the current path on every session snapshot until ctx is
// done or the manager closes. Changes made before Run subscribed are picked
// up by an initial evaluation.
func (g *Gate) Run(ctx context.Context) error {
	updates := g.sessions.Subscribe(ctx)

	g.reevaluate()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-updates:
			if !ok {
				return ctx.Err()
			}
			g.logger.Debug("session changed", "status", s.Status())
			g.reevaluate()
		}
	}
}

// AfterLogin sends an authenticated session to the destination carried by
// the login route's redirect parameter, or to the role's landing route.
func (g *Gate) AfterLogin() bool {
	user, ok := g.sessions.Snapshot().User()
	if !ok {
		return false
	}

	g.navMu.Lock()
	defer g.navMu.Unlock()

	g.mu.Lock()
	path := g.path
	g.mu.Unlock()

	return g.effect.Go(ReturnTarget(path, user.Role))
}

// Go navigates to target on behalf of the session manager. It is ordered
// with Run, so a logout redirect lands after any re-evaluation already in
// progress and the location ends on target.
func (g *Gate) Go(target string) bool {
	g.navMu.Lock()
	defer g.navMu.Unlock()
	return g.effect.Go(target)
}

// reevaluate checks the current path against the latest snapshot.
func (g *Gate) reevaluate() {
	g.navMu.Lock()
	defer g.navMu.Unlock()

	g.mu.Lock()
	path := g.path
	g.mu.Unlock()
	if path == "" {
		return
	}
	g.evaluate(path)
}

func (g *Gate) evaluate(path string) guard.Decision {
	d := guard.Decide(g.sessions.Snapshot(), path)
	g.record(path, d)
	if d.Redirect() {
		g.logger.Debug("redirecting", "path", path, "decision", d.String())
	}
	g.effect.Apply(d)
	return d
}

// record stores d unless the location moved on while it was computed.
func (g *Gate) record(path string, d guard.Decision) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.path == path {
		g.last = d
	}
}

// ReturnTarget picks the post-login destination. A redirect parameter on the
// login route wins when it is a local path the role may visit.
func ReturnTarget(loginPath string, role session.Role) string {
	fallback := guard.DefaultRoute(role)

	_, query, found := strings.Cut(loginPath, "?")
	if !found {
		return fallback
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return fallback
	}
	dest := values.Get(routes.RedirectParam)
	if !strings.HasPrefix(dest, "/") || strings.HasPrefix(dest, "//") {
		return fallback
	}
	if guard.Classify(dest) == guard.Public {
		return fallback
	}

	if !guard.Permits(role, dest) {
		return fallback
	}
	return dest
}
