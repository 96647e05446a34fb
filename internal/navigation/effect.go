// ABOUTME: The single side-effecting boundary that turns guard decisions into navigations
// ABOUTME: Navigates at most once per target while a previous navigation is still in flight

package navigation

import (
	"log/slog"
	"time"

	"github.com/2389/coven-console/internal/guard"
)

const (
	// DefaultPendingTimeout bounds how long an issued target suppresses
	// duplicates when its arrival is never reported.
	DefaultPendingTimeout = 5 * time.Second

	maxPendingTargets = 64
)

// Navigator performs an actual navigation, like assigning the browser location.
type Navigator interface {
	Navigate(target string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(target string)

// Navigate calls f(target).
func (f NavigatorFunc) Navigate(target string) {
	f(target)
}

// Effect is the only component allowed to navigate.
type Effect struct {
	nav     Navigator
	pending *pendingSet
	logger  *slog.Logger
}

// NewEffect creates an effect that drives nav. A non-positive pendingTimeout
// uses DefaultPendingTimeout.
func NewEffect(nav Navigator, pendingTimeout time.Duration) *Effect {
	if pendingTimeout <= 0 {
		pendingTimeout = DefaultPendingTimeout
	}
	return &Effect{
		nav:     nav,
		pending: newPendingSet(pendingTimeout, maxPendingTargets),
		logger:  slog.Default().With("component", "navigation"),
	}
}

// Apply executes a guard decision. Allow and Pending never navigate. Returns
// true when a navigation was issued.
func (e *Effect) Apply(d guard.Decision) bool {
	if !d.Redirect() {
		return false
	}
	return e.Go(d.Target())
}

// Go navigates to target unless a navigation to the same target is already
// in flight. Returns true when a navigation was issued.
func (e *Effect) Go(target string) bool {
	if target == "" {
		return false
	}
	if e.pending.checkAndMark(target) {
		e.logger.Debug("suppressed duplicate navigation", "target", target)
		return false
	}

	e.logger.Debug("navigating", "target", target)
	e.nav.Navigate(target)
	return true
}

// Arrived reports that the location is now path, releasing a pending
// navigation to it.
func (e *Effect) Arrived(path string) {
	e.pending.forget(path)
}

// InFlight reports whether a navigation to target is still pending.
func (e *Effect) InFlight(target string) bool {
	return e.pending.contains(target)
}

// Close releases background resources.
func (e *Effect) Close() {
	e.pending.close()
}
