package crypto

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// StateIssuer hands out one-time OAuth state tokens with a TTL. A token can
// be redeemed at most once; expired or unknown tokens fail redemption.
type StateIssuer struct {
	cache *gocache.Cache
}

// NewStateIssuer creates an issuer whose tokens expire after ttl
func NewStateIssuer(ttl time.Duration) *StateIssuer {
	return &StateIssuer{
		cache: gocache.New(ttl, ttl),
	}
}

// Issue generates and remembers a fresh state token
func (s *StateIssuer) Issue() (string, error) {
	token, err := GenerateSecureToken()
	if err != nil {
		return "", err
	}
	s.cache.SetDefault(token, struct{}{})
	return token, nil
}

// Redeem consumes a previously issued token. Returns false if the token was
// never issued, already redeemed, or has expired.
func (s *StateIssuer) Redeem(token string) bool {
	if token == "" {
		return false
	}
	if _, found := s.cache.Get(token); !found {
		return false
	}
	s.cache.Delete(token)
	return true
}
