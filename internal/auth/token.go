// Package auth issues and validates the HS256 tokens that gate the WebSocket
// upgrade and the mutating HTTP endpoints. When no secret is configured the
// authenticator is disabled and the server trusts client-claimed identities,
// matching development mode.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "real-time-messaging-app"

// ErrInvalidToken is returned for tokens that fail signature, expiry, or
// claim checks.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload carried inside a signed token.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Authenticator signs and verifies user tokens.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
}

// New returns an Authenticator for the given secret. An empty secret disables
// authentication entirely.
func New(secret string, ttl time.Duration) *Authenticator {
	var key []byte
	if secret != "" {
		key = []byte(secret)
	}
	return &Authenticator{secret: key, ttl: ttl}
}

// Enabled reports whether token checks are active.
func (a *Authenticator) Enabled() bool { return len(a.secret) > 0 }

// GenerateToken creates a signed token for the user.
func (a *Authenticator) GenerateToken(userID string) (string, error) {
	if !a.Enabled() {
		return "", errors.New("authentication is disabled")
	}
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateToken parses tokenString and returns its claims.
func (a *Authenticator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Authorize checks that tokenString belongs to userID. It always succeeds
// when authentication is disabled.
func (a *Authenticator) Authorize(tokenString, userID string) error {
	if !a.Enabled() {
		return nil
	}
	claims, err := a.ValidateToken(tokenString)
	if err != nil {
		return err
	}
	if claims.UserID != userID {
		return ErrInvalidToken
	}
	return nil
}
