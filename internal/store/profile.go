// ABOUTME: Profile persistence: cookie jar and local key-value storage
// ABOUTME: Backs the console's session token store across process restarts

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SetCookie creates or replaces a cookie by name.
func (s *SQLiteStore) SetCookie(ctx context.Context, cookie *Cookie) error {
	query := `
		INSERT INTO cookies (name, value, path, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			value = excluded.value,
			path = excluded.path,
			expires_at = excluded.expires_at
	`

	path := cookie.Path
	if path == "" {
		path = "/"
	}

	var expiresAt sql.NullString
	if !cookie.ExpiresAt.IsZero() {
		expiresAt = sql.NullString{String: cookie.ExpiresAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	createdAt := cookie.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, query,
		cookie.Name,
		cookie.Value,
		path,
		expiresAt,
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upserting cookie: %w", err)
	}
	return nil
}

// GetCookie retrieves a cookie by name. Expired cookies are returned as-is;
// callers decide what expiry means for them.
func (s *SQLiteStore) GetCookie(ctx context.Context, name string) (*Cookie, error) {
	query := `
		SELECT name, value, path, expires_at, created_at
		FROM cookies
		WHERE name = ?
	`

	var c Cookie
	var expiresAt sql.NullString
	var createdAt string
	err := s.db.QueryRowContext(ctx, query, name).Scan(&c.Name, &c.Value, &c.Path, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying cookie: %w", err)
	}

	if expiresAt.Valid {
		c.ExpiresAt, err = time.Parse(time.RFC3339Nano, expiresAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing expires_at: %w", err)
		}
	}
	c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &c, nil
}

// DeleteCookie removes a cookie. Deleting a missing cookie is not an error.
func (s *SQLiteStore) DeleteCookie(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cookies WHERE name = ?`, name); err != nil {
		return fmt.Errorf("deleting cookie: %w", err)
	}
	return nil
}

// SetItem creates or replaces a local storage entry.
func (s *SQLiteStore) SetItem(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO local_storage (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upserting item: %w", err)
	}
	return nil
}

// GetItem retrieves a local storage entry.
func (s *SQLiteStore) GetItem(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM local_storage WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying item: %w", err)
	}
	return value, nil
}

// RemoveItem deletes a local storage entry. Removing a missing key is not an error.
func (s *SQLiteStore) RemoveItem(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM local_storage WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return nil
}
