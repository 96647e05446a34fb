// ABOUTME: HTTP handlers for the identity contract: login, me, chat stream, user list and health
// ABOUTME: Passwords are bcrypt-checked against SQLite users; tokens are HS256 JWTs

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/coven-console/internal/auth"
	"github.com/2389/coven-console/internal/identity"
	"github.com/2389/coven-console/internal/store"
)

const maxRequestBytes = 1 << 20

// tokenIssuer is the part of auth.JWTVerifier the server needs.
type tokenIssuer interface {
	auth.TokenVerifier
	Generate(userID, role string, expiresIn time.Duration) (string, error)
}

type server struct {
	users     store.UserStore
	tokens    tokenIssuer
	tokenTTL  time.Duration
	heartbeat time.Duration
	logger    *slog.Logger
}

// meResponse mirrors what identity.Client expects from GET /auth/me.
type meResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type userResponse struct {
	meResponse
	CreatedAt time.Time `json:"created_at"`
}

func newServer(users store.UserStore, tokens tokenIssuer, tokenTTL, heartbeat time.Duration, logger *slog.Logger) *server {
	return &server{
		users:     users,
		tokens:    tokens,
		tokenTTL:  tokenTTL,
		heartbeat: heartbeat,
		logger:    logger.With("component", "identity"),
	}
}

func (s *server) routes() http.Handler {
	requireAuth := auth.HTTPAuthMiddleware(s.users, s.tokens)
	requireAdmin := auth.RequireAdminHTTP()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.Handle("GET /auth/me", requireAuth(http.HandlerFunc(s.handleMe)))
	mux.Handle("GET /auth/users", requireAuth(requireAdmin(http.HandlerFunc(s.handleListUsers))))
	mux.Handle("GET /chat/stream", requireAuth(http.HandlerFunc(s.handleStream)))
	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "ok")
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req identity.LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		s.sendJSONError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := s.users.GetUserByUsername(r.Context(), req.Username)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Info("login failed", "username", req.Username, "reason", "unknown user")
		s.sendJSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		s.logger.Error("failed to look up user", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Info("login failed", "username", req.Username, "reason", "bad password")
		s.sendJSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := s.tokens.Generate(user.ID, user.Role, s.tokenTTL)
	if err != nil {
		s.logger.Error("failed to issue token", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.logger.Info("login succeeded", "user_id", user.ID, "role", user.Role)
	s.sendJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	user, err := s.users.GetUser(r.Context(), authCtx.UserID)
	if err != nil {
		s.sendJSONError(w, http.StatusUnauthorized, "user not found")
		return
	}
	s.sendJSON(w, http.StatusOK, toMe(user))
}

func (s *server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.ListUsers(r.Context())
	if err != nil {
		s.logger.Error("failed to list users", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, userResponse{meResponse: toMe(u), CreatedAt: u.CreatedAt})
	}
	s.sendJSON(w, http.StatusOK, resp)
}

// handleStream holds an SSE connection open: one ready event, then
// heartbeats until the client goes away.
func (s *server) handleStream(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("streaming not supported")
		s.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	s.writeSSEEvent(w, "ready", map[string]string{"user_id": authCtx.UserID, "role": authCtx.Role})
	flusher.Flush()

	s.logger.Debug("stream opened", "user_id", authCtx.UserID)
	defer s.logger.Debug("stream closed", "user_id", authCtx.UserID)

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case now := <-ticker.C:
			s.writeSSEEvent(w, "heartbeat", map[string]string{"time": now.UTC().Format(time.RFC3339)})
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes a single SSE event with a fresh id.
func (s *server) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "id: %s\n", uuid.NewString())
	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

func (s *server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (s *server) sendJSONError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, map[string]string{"error": message})
}

func toMe(u *store.User) meResponse {
	return meResponse{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.DisplayName,
		Username: u.Username,
		Role:     u.Role,
	}
}
