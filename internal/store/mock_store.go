// ABOUTME: Mock store implementation for testing
// ABOUTME: Allows tests to run without SQLite and to simulate an unavailable profile

package store

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrUnavailable is returned by MockStore when it has been switched off,
// simulating a profile whose storage is disabled.
var ErrUnavailable = errors.New("storage unavailable")

// MockStore is an in-memory ProfileStore and UserStore for testing.
type MockStore struct {
	mu       sync.RWMutex
	cookies  map[string]*Cookie
	items    map[string]string
	users    map[string]*User  // keyed by ID
	byName   map[string]string // username -> ID
	disabled bool
}

var (
	_ ProfileStore = (*MockStore)(nil)
	_ UserStore    = (*MockStore)(nil)
)

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		cookies: make(map[string]*Cookie),
		items:   make(map[string]string),
		users:   make(map[string]*User),
		byName:  make(map[string]string),
	}
}

// SetDisabled makes every subsequent call fail with ErrUnavailable.
func (m *MockStore) SetDisabled(disabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disabled = disabled
}

// SetCookie stores a copy of the cookie.
func (m *MockStore) SetCookie(ctx context.Context, cookie *Cookie) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disabled {
		return ErrUnavailable
	}

	c := *cookie
	if c.Path == "" {
		c.Path = "/"
	}
	m.cookies[c.Name] = &c
	return nil
}

// GetCookie returns a copy of the named cookie.
func (m *MockStore) GetCookie(ctx context.Context, name string) (*Cookie, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.disabled {
		return nil, ErrUnavailable
	}

	c, ok := m.cookies[name]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// DeleteCookie removes the named cookie.
func (m *MockStore) DeleteCookie(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disabled {
		return ErrUnavailable
	}
	delete(m.cookies, name)
	return nil
}

// SetItem stores a local storage entry.
func (m *MockStore) SetItem(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disabled {
		return ErrUnavailable
	}
	m.items[key] = value
	return nil
}

// GetItem returns a local storage entry.
func (m *MockStore) GetItem(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.disabled {
		return "", ErrUnavailable
	}
	v, ok := m.items[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// RemoveItem deletes a local storage entry.
func (m *MockStore) RemoveItem(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disabled {
		return ErrUnavailable
	}
	delete(m.items, key)
	return nil
}

// CreateUser stores a copy of the user.
func (m *MockStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disabled {
		return ErrUnavailable
	}
	if _, exists := m.byName[user.Username]; exists {
		return ErrUsernameExists
	}

	u := *user
	m.users[u.ID] = &u
	m.byName[u.Username] = u.ID
	return nil
}

// GetUser returns a copy of the user with the given ID.
func (m *MockStore) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.disabled {
		return nil, ErrUnavailable
	}
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// GetUserByUsername returns a copy of the user with the given username.
func (m *MockStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.disabled {
		return nil, ErrUnavailable
	}
	id, ok := m.byName[username]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.users[id]
	return &cp, nil
}

// ListUsers returns copies of all users ordered by creation time.
func (m *MockStore) ListUsers(ctx context.Context) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.disabled {
		return nil, ErrUnavailable
	}

	users := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		cp := *u
		users = append(users, &cp)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].Username < users[j].Username
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}
