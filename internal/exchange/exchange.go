// Package exchange turns a raw Google access token into an application
// session: backend token exchange, identity lookup, then a single atomic
// session write.
package exchange

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmclubs/tmclub-dashboard-sub002/internal/backend"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/log"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/session"
	"golang.org/x/sync/singleflight"
)

// ErrExchangeFailed indicates the backend exchange chain failed. The session
// store is left exactly as it was; re-running the whole flow is the retry.
var ErrExchangeFailed = errors.New("token exchange failed")

// Exchanger performs the token exchange. Concurrent calls with the same
// provider token (e.g. a double-clicked login button) share one flight.
type Exchanger struct {
	api      *backend.Client
	sessions session.Store
	group    singleflight.Group
}

// New creates an exchanger writing into the given store
func New(api *backend.Client, sessions session.Store) *Exchanger {
	return &Exchanger{api: api, sessions: sessions}
}

// ExchangeToken resolves a provider access token into a stored session.
//
// Ordering: the backend exchange runs first and any failure aborts before a
// byte is written. The identity lookup authenticates with the token it just
// received, passed directly rather than through the store, so the only
// durable write is the final one carrying both token and user together.
func (e *Exchanger) ExchangeToken(ctx context.Context, providerToken string) (*session.Session, error) {
	v, err, shared := e.group.Do(providerToken, func() (any, error) {
		return e.exchange(ctx, providerToken)
	})
	if shared {
		log.LogDebugWithFields("exchange", "Joined in-flight exchange", nil)
	}
	if err != nil {
		return nil, err
	}
	return v.(*session.Session), nil
}

func (e *Exchanger) exchange(ctx context.Context, providerToken string) (*session.Session, error) {
	appToken, err := e.api.ExchangeGoogleToken(ctx, providerToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	user, err := e.api.CurrentUser(ctx, appToken)
	if err != nil {
		// No partial write: a token we cannot attribute to a user is dropped
		return nil, fmt.Errorf("%w: identity lookup: %v", ErrExchangeFailed, err)
	}

	s := &session.Session{Token: appToken, User: user}
	if err := e.sessions.Set(ctx, s); err != nil {
		return nil, fmt.Errorf("%w: storing session: %v", ErrExchangeFailed, err)
	}

	log.LogInfoWithFields("exchange", "Signed in", map[string]any{
		"email": user.Email,
	})
	return s, nil
}
