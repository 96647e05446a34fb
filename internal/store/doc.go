// Package store provides persistent storage for coven-console using SQLite.
//
// # Architecture
//
// The store package uses an interface-driven architecture with two specialized
// interfaces:
//
//   - ProfileStore: the console's browser-like profile (cookies and local storage)
//   - UserStore: accounts served by the development identity service
//
// SQLiteStore implements both interfaces in a single struct. MockStore is an
// in-memory implementation for tests and can be switched off to simulate
// disabled storage.
//
// # Data Models
//
//   - Cookie: name, value, path and expiry; keyed by name
//   - User: id, username, email, display name, bcrypt hash and role
//
// # Usage
//
//	s, err := store.NewSQLiteStore("/home/me/.local/share/coven/console.db")
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	err = s.SetCookie(ctx, &store.Cookie{Name: "auth_token", Value: tok, Path: "/"})
package store
