// ABOUTME: Wires the console: profile store, token store, identity client, session manager,
// ABOUTME: navigation history and effect, and the layout gate

package main

import (
	"fmt"
	"log/slog"

	"github.com/2389/coven-console/internal/chatstream"
	"github.com/2389/coven-console/internal/config"
	"github.com/2389/coven-console/internal/console"
	"github.com/2389/coven-console/internal/identity"
	"github.com/2389/coven-console/internal/navigation"
	"github.com/2389/coven-console/internal/session"
	"github.com/2389/coven-console/internal/store"
)

// app is one console process: a single session shared by every component.
type app struct {
	cfg      *config.Config
	profile  *store.SQLiteStore
	identity *identity.Client
	manager  *session.Manager
	history  *navigation.History
	effect   *navigation.Effect
	gate     *console.Gate
	logger   *slog.Logger
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	profile, err := store.NewSQLiteStore(cfg.Profile.Path)
	if err != nil {
		return nil, fmt.Errorf("opening profile: %w", err)
	}

	a := &app{
		cfg:      cfg,
		profile:  profile,
		identity: identity.NewClient(cfg.API.BaseURL, cfg.API.Timeout),
		history:  navigation.NewHistory("/"),
		logger:   logger,
	}
	a.effect = navigation.NewEffect(a.history, cfg.Navigation.PendingTimeout)
	a.manager = session.NewManager(
		session.NewTokenStore(profile),
		a.identity,
		session.WithRedirector(redirectFunc(func(target string) bool { return a.gate.Go(target) })),
		session.WithLogger(logger),
	)
	a.gate = console.NewGate(a.manager, a.effect)
	a.history.OnChange(func(path string) { a.gate.Visit(path) })

	return a, nil
}

// redirectFunc lets the manager redirect through the gate, which is built
// after it.
type redirectFunc func(target string) bool

func (f redirectFunc) Go(target string) bool {
	return f(target)
}

// chat returns a stream client borrowing the session's credentials.
func (a *app) chat() *chatstream.Client {
	return chatstream.NewClient(a.cfg.API.BaseURL, a.manager)
}

func (a *app) close() {
	a.manager.Close()
	a.effect.Close()
	if err := a.profile.Close(); err != nil {
		a.logger.Warn("closing profile", "error", err)
	}
}
