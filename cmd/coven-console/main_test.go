// ABOUTME: Tests for the console commands and shell against a fake identity API
// ABOUTME: Each test gets its own SQLite profile so sessions persist across app instances

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-console/internal/config"
	"github.com/2389/coven-console/internal/identity"
)

// fakeAPI serves the identity contract for fixed tokens.
func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()

	users := map[string]map[string]string{
		"t1":    {"id": "1", "email": "a@x.com", "name": "A", "role": "user"},
		"admin": {"id": "2", "email": "r@x.com", "username": "root", "role": "admin"},
	}
	authorized := func(r *http.Request) (map[string]string, bool) {
		u, ok := users[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
		return u, ok
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		u, ok := authorized(r)
		if !ok {
			http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(u)
	})
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req identity.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Username != "alice" || req.Password != "pw" {
			http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"token":"t1"}`)
	})
	mux.HandleFunc("GET /chat/stream", func(w http.ResponseWriter, r *http.Request) {
		u, ok := authorized(r)
		if !ok {
			http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "id: 1\nevent: ready\ndata: {\"role\":%q}\n\n", u["role"])
		fmt.Fprint(w, "id: 2\nevent: heartbeat\ndata: {}\n\n")
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type consoleEnv struct {
	cfg *config.Config
}

func newConsoleEnv(t *testing.T) *consoleEnv {
	t.Helper()

	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	cfg := config.Default()
	cfg.API.BaseURL = fakeAPI(t).URL
	cfg.API.Timeout = 2 * time.Second
	cfg.Profile.Path = filepath.Join(t.TempDir(), "profile.db")
	return &consoleEnv{cfg: cfg}
}

// open starts a fresh console process sharing the env's profile.
func (e *consoleEnv) open(t *testing.T) *app {
	t.Helper()
	a, err := newApp(e.cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(a.close)
	return a
}

func TestLogin_TokenPersistsAcrossProcesses(t *testing.T) {
	env := newConsoleEnv(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, cmdLogin(ctx, env.open(t), []string{"t1"}, nil, &out))
	assert.Contains(t, out.String(), "A <a@x.com> [user]")
	assert.Contains(t, out.String(), "▶ /user/dashboard")

	out.Reset()
	require.NoError(t, cmdWhoami(ctx, env.open(t), &out))
	assert.Contains(t, out.String(), "A <a@x.com> [user]")

	out.Reset()
	require.NoError(t, cmdLogout(env.open(t), &out))
	assert.Contains(t, out.String(), "▶ /login")

	out.Reset()
	require.NoError(t, cmdWhoami(ctx, env.open(t), &out))
	assert.Contains(t, out.String(), "Not logged in (unauthenticated)")
}

func TestLogin_AdminLandsHome(t *testing.T) {
	env := newConsoleEnv(t)

	var out bytes.Buffer
	require.NoError(t, cmdLogin(context.Background(), env.open(t), []string{"admin"}, nil, &out))
	assert.Contains(t, out.String(), "root <r@x.com> [admin]")
	assert.Contains(t, out.String(), "▶ /\n")
}

func TestLogin_Password(t *testing.T) {
	env := newConsoleEnv(t)

	var out bytes.Buffer
	require.NoError(t, cmdLogin(context.Background(), env.open(t), []string{"-u", "alice", "-p", "pw"}, nil, &out))
	assert.Contains(t, out.String(), "[user]")
}

func TestLogin_PromptsForPassword(t *testing.T) {
	env := newConsoleEnv(t)

	var out bytes.Buffer
	err := cmdLogin(context.Background(), env.open(t), []string{"-u", "alice"}, strings.NewReader("pw\n"), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Password: ")
	assert.Contains(t, out.String(), "[user]")
}

func TestLogin_Failures(t *testing.T) {
	env := newConsoleEnv(t)
	ctx := context.Background()

	err := cmdLogin(ctx, env.open(t), []string{"revoked"}, nil, io.Discard)
	assert.ErrorIs(t, err, identity.ErrRejected)

	err = cmdLogin(ctx, env.open(t), []string{"-u", "alice", "-p", "wrong"}, nil, io.Discard)
	assert.ErrorIs(t, err, identity.ErrRejected)

	err = cmdLogin(ctx, env.open(t), nil, nil, io.Discard)
	assert.ErrorContains(t, err, "usage")

	var out bytes.Buffer
	require.NoError(t, cmdWhoami(ctx, env.open(t), &out))
	assert.Contains(t, out.String(), "Not logged in")
}

func TestOpen(t *testing.T) {
	env := newConsoleEnv(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, cmdOpen(ctx, env.open(t), []string{"/agents?tab=active"}, &out))
	assert.Contains(t, out.String(), "▶ /login?redirect=%2Fagents%3Ftab%3Dactive")

	require.NoError(t, cmdLogin(ctx, env.open(t), []string{"t1"}, nil, io.Discard))

	out.Reset()
	require.NoError(t, cmdOpen(ctx, env.open(t), []string{"/incidents"}, &out))
	assert.Contains(t, out.String(), "▶ /user/dashboard")

	out.Reset()
	require.NoError(t, cmdOpen(ctx, env.open(t), []string{"/chat"}, &out))
	assert.Contains(t, out.String(), "▶ /chat")
	assert.Contains(t, out.String(), "decision: allow")

	assert.ErrorContains(t, cmdOpen(ctx, env.open(t), nil, io.Discard), "usage")
}

func TestOpen_RejectedStoredTokenIsReported(t *testing.T) {
	env := newConsoleEnv(t)
	ctx := context.Background()

	a := env.open(t)
	require.NoError(t, cmdLogin(ctx, a, []string{"t1"}, nil, io.Discard))

	// The service now rejects everything
	gone := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(gone.Close)
	env.cfg.API.BaseURL = gone.URL

	var out bytes.Buffer
	require.NoError(t, cmdOpen(ctx, env.open(t), []string{"/user/support"}, &out))
	assert.Contains(t, out.String(), "Stored session discarded")
	assert.Contains(t, out.String(), "▶ /login?redirect=%2Fuser%2Fsupport")
}

func TestRestore_InterruptedKeepsStoredToken(t *testing.T) {
	env := newConsoleEnv(t)
	require.NoError(t, cmdLogin(context.Background(), env.open(t), []string{"t1"}, nil, io.Discard))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := env.open(t).restore(ctx, &out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotContains(t, out.String(), "Stored session discarded")

	out.Reset()
	require.NoError(t, cmdWhoami(context.Background(), env.open(t), &out))
	assert.Contains(t, out.String(), "A <a@x.com> [user]")
}

func TestChat(t *testing.T) {
	env := newConsoleEnv(t)
	ctx := context.Background()

	assert.ErrorIs(t, cmdChat(ctx, env.open(t), nil, io.Discard), errNotLoggedIn)

	require.NoError(t, cmdLogin(ctx, env.open(t), []string{"admin"}, nil, io.Discard))

	var out bytes.Buffer
	require.NoError(t, cmdChat(ctx, env.open(t), nil, &out))
	assert.Contains(t, out.String(), "features: conversation, history, agent-picker, tool-approval, thinking")
	assert.Contains(t, out.String(), `[ready] {"role":"admin"}`)
	assert.Contains(t, out.String(), "[heartbeat] {}")

	out.Reset()
	require.NoError(t, cmdChat(ctx, env.open(t), []string{"-n", "1"}, &out))
	assert.Contains(t, out.String(), "[ready]")
	assert.NotContains(t, out.String(), "[heartbeat]")
}

func TestShell(t *testing.T) {
	env := newConsoleEnv(t)

	script := strings.Join([]string{
		"open /agents",
		"login admin",
		"where",
		"features",
		"open /user/support",
		"logout",
		"whoami",
		"bogus",
		"exit",
		"login admin",
	}, "\n") + "\n"

	var out bytes.Buffer
	require.NoError(t, runShell(context.Background(), env.open(t), strings.NewReader(script), &out))

	got := out.String()
	assert.Contains(t, got, "Not logged in (unauthenticated)")
	assert.Contains(t, got, "▶ /login?redirect=%2Fagents")
	assert.Contains(t, got, "root <r@x.com> [admin]")
	assert.Contains(t, got, "▶ /agents\n")
	assert.Contains(t, got, "features: conversation")
	assert.Contains(t, got, "▶ /\n")
	assert.Equal(t, 2, strings.Count(got, "Not logged in (unauthenticated)"), "logged out again")
	assert.Contains(t, got, `unknown command "bogus"`)
	assert.Equal(t, 1, strings.Count(got, "root <r@x.com>"), "nothing runs after exit")
}

func TestShell_SigninAndBack(t *testing.T) {
	env := newConsoleEnv(t)

	script := "signin alice nope\nsignin alice pw\nopen /chat\nback\nhistory\n"

	var out bytes.Buffer
	require.NoError(t, runShell(context.Background(), env.open(t), strings.NewReader(script), &out))

	got := out.String()
	assert.Contains(t, got, "sign-in failed")
	assert.Contains(t, got, "A <a@x.com> [user]")
	assert.Contains(t, got, "▶ /chat\n")
	assert.Contains(t, got, "▶ /user/dashboard\n")
}
