// Package auth provides bearer-token authentication for the development
// identity service.
//
// # Tokens
//
// Tokens are HS256 JWTs signed with the configured secret:
//
//	verifier, err := NewJWTVerifier(secret)
//	token, err := verifier.Generate(userID, "admin", 7*24*time.Hour)
//	claims, err := verifier.Verify(token)
//
// Each token carries:
//   - sub: the user ID
//   - role: "admin" or "user"
//   - jti: a random UUID
//   - iat/exp: issue and expiry times
//
// # HTTP Middleware
//
// HTTPAuthMiddleware extracts the bearer token, verifies it, loads the user
// and attaches an AuthContext retrievable with FromContext. RequireAdminHTTP
// additionally restricts a route to admins.
package auth
