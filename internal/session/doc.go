// Package session owns the console's authentication state.
//
// # State Machine
//
// A Manager moves a session through these states:
//
//	Init ──(stored token)──> Verifying ──(GET /auth/me 200)──> Authenticated
//	  │                          │
//	  └──(no token)──────────────┴──(any failure)──> Unauthenticated
//
// Login re-enters Verifying. Logout and every verification failure (non-200,
// transport error, malformed payload, unknown role) clear the stored token
// and land in Unauthenticated. There is no retry.
//
// # Ordering
//
// Every verification attempt is tagged with a generation number. Login,
// Logout and Close start a new generation; a result whose generation is no
// longer current is dropped, so the most recently initiated call always wins
// regardless of the order in which responses arrive.
//
// # Token Storage
//
// TokenStore keeps the bearer token in the auth_token cookie (path "/",
// seven days) and falls back to the deprecated "token" local storage entry
// for sessions created by older consoles. Clear removes both.
//
// # Readers
//
// Session snapshots are immutable. Collaborators get Snapshot, Subscribe or
// the Credentials view; only the Manager writes.
package session
