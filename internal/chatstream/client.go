// ABOUTME: Chat stream client that reads session credentials and consumes the SSE event feed
// ABOUTME: Never mutates the session; it only borrows the token and role

package chatstream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/2389/coven-console/internal/session"
)

// Stream errors
var (
	ErrNoCredentials = errors.New("no session credentials")
	ErrRejected      = errors.New("chat stream rejected")
)

// EventType is the SSE event name.
type EventType string

const (
	EventReady     EventType = "ready"
	EventHeartbeat EventType = "heartbeat"
	EventMessage   EventType = "message"
	EventError     EventType = "error"
)

// Event is one parsed Server-Sent Event.
type Event struct {
	ID   string
	Type EventType
	Data string
}

// Client opens the chat event stream on behalf of the current session.
type Client struct {
	baseURL string
	creds   session.Credentials
	client  *http.Client
	logger  *slog.Logger
}

// NewClient creates a stream client reading credentials from creds.
func NewClient(baseURL string, creds session.Credentials) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		creds:   creds,
		client:  &http.Client{},
		logger:  slog.Default().With("component", "chatstream"),
	}
}

// Features reports what the chat surface exposes for the current role.
func (c *Client) Features() []Feature {
	role, ok := c.creds.Role()
	if !ok {
		return nil
	}
	return Features(role)
}

// Stream connects and delivers events until ctx is done or the server ends
// the stream. The channel is closed when streaming stops.
func (c *Client) Stream(ctx context.Context) (<-chan Event, error) {
	token, ok := c.creds.Token()
	if !ok {
		return nil, ErrNoCredentials
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/chat/stream", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opening stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	events := make(chan Event, 16)
	go func() {
		defer close(events)
		defer resp.Body.Close()
		if err := parseSSE(ctx, resp.Body, events); err != nil && ctx.Err() == nil {
			c.logger.Warn("chat stream ended", "error", err)
		}
	}()
	return events, nil
}

// parseSSE reads frames from body and sends them on out.
func parseSSE(ctx context.Context, body io.Reader, out chan<- Event) error {
	scanner := bufio.NewScanner(body)

	var id string
	var eventType EventType
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line ends the event
		if line == "" {
			if len(dataLines) > 0 {
				if eventType == "" {
					eventType = EventMessage
				}
				ev := Event{ID: id, Type: eventType, Data: strings.Join(dataLines, "\n")}
				select {
				case out <- ev:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			id = ""
			eventType = ""
			dataLines = nil
			continue
		}

		// Comment lines keep the connection alive
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			eventType = EventType(value)
		case "data":
			dataLines = append(dataLines, value)
		case "id":
			id = value
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading SSE stream: %w", err)
	}
	return nil
}
