// Package auth issues and checks the signed session tokens kept in the session cookie.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/matt-steen/taskflow/pkg/apperr"
)

// CookieName is the name of the session cookie.
const CookieName = "taskflow_session"

// DefaultTTL is how long a session lasts.
const DefaultTTL = time.Hour

// Claims identify the user and the client the session was issued to.
type Claims struct {
	Username    string `json:"username"`
	IPAddress   string `json:"ipAddress"`
	BrowserType string `json:"browserType"`
	jwt.RegisteredClaims
}

// Sessions signs and verifies session tokens with a shared secret.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessions creates Sessions. A zero ttl means DefaultTTL.
func NewSessions(secret string, ttl time.Duration) (*Sessions, error) {
	if len(secret) < 16 {
		return nil, errors.New("session secret must be at least 16 characters")
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Sessions{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL returns the lifetime of new sessions.
func (s *Sessions) TTL() time.Duration {
	return s.ttl
}

// Issue returns a signed token for username bound to the client's address and user agent.
func (s *Sessions) Issue(username, ip, browser string) (string, error) {
	now := s.now()

	claims := Claims{
		Username:    username,
		IPAddress:   ip,
		BrowserType: browser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", apperr.Internal(err)
	}

	return token, nil
}

// Verify checks the signature and expiry of token and that it was issued to this client.
// It returns the session's username.
func (s *Sessions) Verify(token, ip, browser string) (string, error) {
	if token == "" {
		return "", apperr.Authentication("not logged in")
	}

	claims := &Claims{}

	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return "", apperr.Authentication("session expired").Because(err)
	}

	if err != nil {
		return "", apperr.Authentication("invalid session").Because(err)
	}

	if claims.IPAddress != ip || claims.BrowserType != browser {
		return "", apperr.Authentication("session was issued to another client")
	}

	if claims.Username == "" {
		return "", apperr.Authentication("invalid session")
	}

	return claims.Username, nil
}
