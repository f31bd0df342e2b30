package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	s := &Session{Token: signed}
	got, ok := s.TokenExpiry()
	assert.True(t, ok)
	assert.Equal(t, exp.Unix(), got.Unix())
}

func TestTokenExpiryOpaqueToken(t *testing.T) {
	s := &Session{Token: "not-a-jwt"}
	_, ok := s.TokenExpiry()
	assert.False(t, ok)
}

func TestTokenExpiryNoExpClaim(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "1"})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	s := &Session{Token: signed}
	_, ok := s.TokenExpiry()
	assert.False(t, ok)
}

func TestTokenExpiryNilSession(t *testing.T) {
	var s *Session
	_, ok := s.TokenExpiry()
	assert.False(t, ok)
}
