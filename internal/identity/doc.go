// Package identity is the console's client for the identity API.
//
// Client.Me implements session.Verifier against GET /auth/me and
// Client.Login implements session.CredentialExchanger against
// POST /auth/login. Every failure wraps exactly one of ErrRejected,
// ErrUnreachable or ErrMalformed.
package identity
