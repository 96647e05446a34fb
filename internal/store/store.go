// ABOUTME: Store interfaces and data types for coven-console persistence
// ABOUTME: Defines the browser profile (cookies, local items) and identity user records

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrUsernameExists is returned when trying to create a user with an existing username.
var ErrUsernameExists = errors.New("username already exists")

// Cookie is a persisted profile cookie. Cookies are keyed by name; the
// console only ever talks to a single origin.
type Cookie struct {
	Name      string
	Value     string
	Path      string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the cookie is past its expiry at the given instant.
func (c *Cookie) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// ProfileStore persists the console's browser-like profile: a cookie jar and
// a flat key-value local storage area.
type ProfileStore interface {
	SetCookie(ctx context.Context, cookie *Cookie) error
	GetCookie(ctx context.Context, name string) (*Cookie, error)
	DeleteCookie(ctx context.Context, name string) error

	SetItem(ctx context.Context, key, value string) error
	GetItem(ctx context.Context, key string) (string, error)
	RemoveItem(ctx context.Context, key string) error
}

// User is an account known to the identity service.
type User struct {
	ID           string
	Username     string
	Email        string
	DisplayName  string // may be empty; clients fall back to Username
	PasswordHash string // bcrypt hash
	Role         string // "admin" | "user"
	CreatedAt    time.Time
}

// UserStore persists identity service accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
}
