// ABOUTME: HTTP client for the identity API used to verify tokens and exchange credentials
// ABOUTME: Maps every failure onto rejected, unreachable or malformed so callers can log them

package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/2389/coven-console/internal/session"
)

// Verification errors
var (
	ErrRejected    = errors.New("identity service rejected the request")
	ErrUnreachable = errors.New("identity service unreachable")
	ErrMalformed   = errors.New("malformed identity response")
)

// DefaultTimeout applies when the caller supplies none.
const DefaultTimeout = 10 * time.Second

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 1 << 20

// meResponse is the payload of GET /auth/me.
type meResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Client talks to the identity API.
type Client struct {
	baseURL string
	client  *http.Client
}

var (
	_ session.Verifier            = (*Client)(nil)
	_ session.CredentialExchanger = (*Client)(nil)
)

// NewClient creates a client for baseURL. A non-positive timeout uses
// DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Me resolves token to the user it belongs to. Only a 200 with a complete
// payload and a known role succeeds.
func (c *Client) Me(ctx context.Context, token string) (session.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/me", nil)
	if err != nil {
		return session.User{}, fmt.Errorf("%w: creating request: %v", ErrUnreachable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return session.User{}, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return session.User{}, c.rejection(resp)
	}

	var me meResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&me); err != nil {
		return session.User{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return me.toUser()
}

// Login exchanges a username and password for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body, err := json.Marshal(LoginRequest{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %v", ErrUnreachable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.rejection(resp)
	}

	var lr loginResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&lr); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if lr.Token == "" {
		return "", fmt.Errorf("%w: empty token", ErrMalformed)
	}
	return lr.Token, nil
}

// rejection builds an ErrRejected carrying the status and any JSON error message.
func (c *Client) rejection(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	var errResp errorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		return fmt.Errorf("%w (%d): %s", ErrRejected, resp.StatusCode, errResp.Error)
	}
	return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
}

func (m meResponse) toUser() (session.User, error) {
	if m.ID == "" {
		return session.User{}, fmt.Errorf("%w: missing id", ErrMalformed)
	}
	role, err := session.ParseRole(m.Role)
	if err != nil {
		return session.User{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	name := m.Name
	if name == "" {
		name = m.Username
	}
	return session.User{
		ID:          m.ID,
		Email:       m.Email,
		DisplayName: name,
		Role:        role,
	}, nil
}
