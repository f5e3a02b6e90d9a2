package auth

import "chatrelay/internal/domain/models"

// TokenVerifier defines the interface for access token verification. Token
// issuance and user registration live in an external auth service; the core
// only verifies tokens it is handed and trusts the resulting owner identity.
type TokenVerifier interface {
	// VerifyToken validates a JWT token string and returns the parsed claims.
	// Returns an error if the token is invalid, expired, or has an invalid signature.
	VerifyToken(tokenString string) (*models.AccessClaims, error)

	// Close releases any resources held by the verifier (e.g., HTTP connections for JWKS).
	Close() error
}
