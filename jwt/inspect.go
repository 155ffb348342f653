package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned by Inspect when the access token is opaque.
var ErrNotJWT = errors.New("access token is not a jwt")

// Claims are the subset of access-token claims the client cares about.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Inspect decodes token claims without verifying the signature.
//
// Opaque tokens yield ErrNotJWT; callers should treat that as "unknown",
// not as invalid.
func Inspect(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, errors.Join(ErrNotJWT, err)
	}
	return claims, nil
}

// ExpiresAt returns the exp claim, or false when the token carries none.
func (c *Claims) ExpiresAt() (time.Time, bool) {
	if c == nil || c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return c.RegisteredClaims.ExpiresAt.Time, true
}

// Expired reports whether token is a JWT whose exp is at or before now.
// Opaque tokens and tokens without exp are never expired.
func Expired(token string, now time.Time) bool {
	claims, err := Inspect(token)
	if err != nil {
		return false
	}
	exp, ok := claims.ExpiresAt()
	return ok && !now.Before(exp)
}
