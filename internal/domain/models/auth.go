package models

import "github.com/golang-jwt/jwt/v5"

// AccessClaims represents the JWT claims issued by the external auth service.
// The core only trusts the subject as the owner identity.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// GetUserID returns the owner identity from the JWT subject claim.
func (c *AccessClaims) GetUserID() string {
	return c.Subject
}
