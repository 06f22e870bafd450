package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credential is the bearer token pair issued by POST /auth/login.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresIn    int64     `json:"expires_in,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// Valid reports whether the credential can authorize a request.
func (c *Credential) Valid() bool {
	return c != nil && c.AccessToken != ""
}

// Expired reports whether the credential is past its expiry. A credential
// with no known expiry never expires on the client side.
func (c *Credential) Expired(now time.Time) bool {
	if c == nil || c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt)
}

// Stamp fills ExpiresAt relative to issuedAt. When the backend did not send
// expires_in, the exp claim of the access token is used instead; the token
// is not verified here, the server does that.
func (c *Credential) Stamp(issuedAt time.Time) {
	if c == nil || !c.ExpiresAt.IsZero() {
		return
	}
	if c.ExpiresIn > 0 {
		c.ExpiresAt = issuedAt.Add(time.Duration(c.ExpiresIn) * time.Second).UTC()
		return
	}
	if exp, ok := jwtExpiry(c.AccessToken); ok {
		c.ExpiresAt = exp.UTC()
	}
}

func jwtExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
