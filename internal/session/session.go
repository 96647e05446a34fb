// ABOUTME: Immutable session snapshot and status enum
// ABOUTME: Snapshot constructors guarantee token, user and status always agree

package session

import "fmt"

// Status is the position of a session in its state machine.
type Status int

const (
	StatusInit Status = iota
	StatusVerifying
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusInit:
		return "init"
	case StatusVerifying:
		return "verifying"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// User is the identity derived from a verified token.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Role        Role
}

// Session is a read-only snapshot of the session state. The zero value is
// the Init state; the other states come from Verifying, Unauthenticated and
// NewAuthenticated.
//
// A token and a user are present exactly when the status is Authenticated.
type Session struct {
	status Status
	token  string
	user   User
}

// Verifying returns the snapshot of a session whose token is being checked.
func Verifying() Session {
	return Session{status: StatusVerifying}
}

// Unauthenticated returns the snapshot of a session without identity.
func Unauthenticated() Session {
	return Session{status: StatusUnauthenticated}
}

// NewAuthenticated returns the snapshot of a verified session. It refuses to
// build a session without a token or with an unknown role.
func NewAuthenticated(token string, user User) (Session, error) {
	if token == "" {
		return Session{}, ErrEmptyToken
	}
	if !user.Role.Valid() {
		return Session{}, fmt.Errorf("%w: %q", ErrUnknownRole, user.Role)
	}
	return Session{status: StatusAuthenticated, token: token, user: user}, nil
}

// Status returns the session status.
func (s Session) Status() Status {
	return s.status
}

// IsLoading is true until a verification attempt has resolved.
func (s Session) IsLoading() bool {
	return s.status == StatusInit || s.status == StatusVerifying
}

// Authenticated reports whether the session holds a verified identity.
func (s Session) Authenticated() bool {
	return s.status == StatusAuthenticated
}

// Token returns the bearer token of an authenticated session.
func (s Session) Token() (string, bool) {
	if s.status != StatusAuthenticated {
		return "", false
	}
	return s.token, true
}

// User returns the identity of an authenticated session.
func (s Session) User() (User, bool) {
	if s.status != StatusAuthenticated {
		return User{}, false
	}
	return s.user, true
}

// Credentials is the read-only view handed to collaborators that need to
// authenticate their own connections, such as the chat event stream.
type Credentials interface {
	Token() (string, bool)
	Role() (Role, bool)
}
