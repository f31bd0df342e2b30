// Package googleauth implements the client side of the dashboard's Google
// sign-in: consent URL construction for the implicit flow and the userinfo
// call used for display purposes.
package googleauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/tmclubs/tmclub-dashboard-sub002/internal/config"
	"golang.org/x/oauth2"
)

var (
	// ErrAuthDisabled indicates the Google sign-in feature flag is off
	ErrAuthDisabled = errors.New("google sign-in is disabled")

	// ErrMissingClientID indicates the feature is on but no client id is configured
	ErrMissingClientID = errors.New("google client id is not configured")

	// ErrProfileFetch indicates the userinfo call failed; callers treat this
	// as best-effort and must not abort the sign-in because of it
	ErrProfileFetch = errors.New("failed to fetch google profile")
)

const (
	authURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	userInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// Profile is the read-only record returned by Google's userinfo endpoint.
// It is shown to the user but never persisted as the identity of record.
type Profile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	VerifiedEmail bool   `json:"verified_email"`
}

// BuildAuthURL constructs the consent URL for the implicit flow. The result
// is deterministic: no state or nonce is generated, so calling twice yields
// identical URLs.
func BuildAuthURL(cfg config.Config) (string, error) {
	return BuildAuthURLWithState(cfg, "")
}

// BuildAuthURLWithState is BuildAuthURL with an optional caller-supplied
// state parameter, used when CSRF state is enabled for the redirect flow.
func BuildAuthURLWithState(cfg config.Config, state string) (string, error) {
	if !cfg.GoogleAuthEnabled {
		return "", ErrAuthDisabled
	}
	if cfg.GoogleClientID == "" {
		return "", ErrMissingClientID
	}

	oc := newOAuth2Config(cfg)
	return oc.AuthCodeURL(state,
		oauth2.SetAuthURLParam("response_type", "token"),
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	), nil
}

// FetchProfile retrieves the Google profile for a provider access token.
// Failures yield ErrProfileFetch and never block the token exchange.
func FetchProfile(ctx context.Context, providerToken string) (*Profile, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: providerToken}))

	endpoint := userInfoURL
	if customURL := os.Getenv("GOOGLE_USERINFO_URL"); customURL != "" {
		endpoint = customURL
	}

	resp, err := client.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrProfileFetch, resp.StatusCode)
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileFetch, err)
	}
	return &profile, nil
}

// newOAuth2Config creates the oauth2 config for the implicit flow. The auth
// endpoint can be overridden via env for testing.
func newOAuth2Config(cfg config.Config) oauth2.Config {
	endpoint := oauth2.Endpoint{AuthURL: authURL}
	if custom := os.Getenv("GOOGLE_OAUTH_AUTH_URL"); custom != "" {
		endpoint.AuthURL = custom
	}

	return oauth2.Config{
		ClientID:    cfg.GoogleClientID,
		RedirectURL: cfg.GoogleRedirectURI,
		Scopes:      cfg.ScopeList(),
		Endpoint:    endpoint,
	}
}
