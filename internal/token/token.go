// Package token decodes session tokens for display.
//
// Nothing here verifies a signature or judges whether a token is still valid:
// the client trusts the token it was given at login and leaves validation to
// the server. Opaque (non-JWT) tokens are reported as such.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Info is what can be shown about a token without trusting it.
type Info struct {
	// Opaque is true when the token is not a decodable JWT.
	Opaque    bool
	Subject   string
	Email     string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Inspect decodes the claims of a JWT-shaped token without verifying it.
func Inspect(raw string) Info {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return Info{Opaque: true}
	}

	var info Info
	info.Subject, _ = claims.GetSubject()
	info.Issuer, _ = claims.GetIssuer()
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		info.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	if email, ok := claims["email"].(string); ok {
		info.Email = email
	}
	return info
}

// Identity returns the best human-readable identifier in info, or "".
func (i Info) Identity() string {
	if i.Email != "" {
		return i.Email
	}
	return i.Subject
}
