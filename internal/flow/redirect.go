package flow

import (
	"context"

	"github.com/tmclubs/tmclub-dashboard-sub002/internal/callback"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/config"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/crypto"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/exchange"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/googleauth"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/session"
)

// Navigator performs a full top-level navigation away from the application
type Navigator interface {
	Navigate(url string) error
}

// RedirectFlow is the simpler alternative to PopupFlow: leave the page
// entirely, and pick the result up from the fragment on the next load.
type RedirectFlow struct {
	cfg       config.Config
	exchanger *exchange.Exchanger
	// states is non-nil only when the opt-in CSRF state parameter is enabled
	states *crypto.StateIssuer
}

// NewRedirectFlow wires a redirect flow. When cfg.OAuthStateParam is set, a
// one-time state token is attached to the consent URL and checked on resume.
func NewRedirectFlow(cfg config.Config, exchanger *exchange.Exchanger) *RedirectFlow {
	f := &RedirectFlow{cfg: cfg, exchanger: exchanger}
	if cfg.OAuthStateParam {
		f.states = crypto.NewStateIssuer(cfg.OAuthStateTTL)
	}
	return f
}

// Start builds the consent URL and navigates to it. Configuration errors
// surface here, before any navigation happens.
func (f *RedirectFlow) Start(nav Navigator) error {
	var authURL string
	var err error

	if f.states != nil {
		var state string
		state, err = f.states.Issue()
		if err != nil {
			return err
		}
		authURL, err = googleauth.BuildAuthURLWithState(f.cfg, state)
	} else {
		authURL, err = googleauth.BuildAuthURL(f.cfg)
	}
	if err != nil {
		return err
	}
	return nav.Navigate(authURL)
}

// Resume completes a flow from the fragment of the post-redirect page load.
// The fragment is consumed exactly once; callers clear it from history after
// a callback result, success or failure.
func (f *RedirectFlow) Resume(ctx context.Context, fragment string) (*session.Session, error) {
	result := callback.Parse(fragment)

	switch {
	case result.IsFailure():
		return nil, &ProviderError{Code: result.ErrorCode}
	case result.IsSuccess():
		if f.states != nil && !f.states.Redeem(result.State) {
			return nil, ErrStateMismatch
		}
		return f.exchanger.ExchangeToken(ctx, result.AccessToken)
	default:
		return nil, ErrNotCallback
	}
}
