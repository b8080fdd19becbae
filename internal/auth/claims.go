package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"favorsweb/internal/domain"
)

type TokenInfo struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token carries an exp claim at or before now.
func (i TokenInfo) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// InspectToken reads the registered claims of a JWT without verifying its
// signature; only the backend can do that. ok is false for tokens that are
// not JWTs, which are then treated as opaque.
func InspectToken(token string) (TokenInfo, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return TokenInfo{}, false
	}

	info := TokenInfo{Subject: claims.Subject}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, true
}

// CheckToken fails fast for a missing or visibly expired token.
func CheckToken(token string, now time.Time) error {
	if strings.TrimSpace(token) == "" {
		return domain.ErrNoToken
	}
	if info, ok := InspectToken(token); ok && info.Expired(now) {
		return domain.ErrTokenExpired
	}
	return nil
}
