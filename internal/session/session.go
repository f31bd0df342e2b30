// Package session owns the signed-in session: the application token and the
// user record it belongs to. Stores hold at most one session and overwrite
// it wholesale, never partially.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/backend"
)

// ErrNotFound is returned when no session is stored
var ErrNotFound = errors.New("no session stored")

// Session pairs an application token with the user it was issued for. The
// two are always written together; a token without its user never persists.
type Session struct {
	Token string        `json:"token"`
	User  *backend.User `json:"user"`
}

// TokenExpiry peeks at the token's exp claim without verifying the
// signature. Display only; the backend remains the authority on validity.
func (s *Session) TokenExpiry() (time.Time, bool) {
	if s == nil || s.Token == "" {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.Token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Store persists the current session. Set replaces any previous value; Get
// returns ErrNotFound when nothing is stored.
type Store interface {
	Get(ctx context.Context) (*Session, error)
	Set(ctx context.Context, s *Session) error
	Clear(ctx context.Context) error
}
