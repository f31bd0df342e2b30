package callback

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		fragment    string
		wantSuccess bool
		wantFailure bool
		wantToken   string
		wantError   string
		wantState   string
	}{
		{
			name:        "access token",
			fragment:    "#access_token=abc123",
			wantSuccess: true,
			wantToken:   "abc123",
		},
		{
			name:        "provider error",
			fragment:    "#error=access_denied",
			wantFailure: true,
			wantError:   "access_denied",
		},
		{
			name:        "error wins over token",
			fragment:    "#access_token=abc123&error=access_denied",
			wantFailure: true,
			wantError:   "access_denied",
		},
		{
			name:     "empty fragment",
			fragment: "",
		},
		{
			name:     "unrelated fragment",
			fragment: "#foo=bar",
		},
		{
			name:        "token with state and extras",
			fragment:    "#access_token=tok&token_type=Bearer&expires_in=3599&state=xyz",
			wantSuccess: true,
			wantToken:   "tok",
			wantState:   "xyz",
		},
		{
			name:     "no leading hash",
			fragment: "access_token=abc123",

			wantSuccess: true,
			wantToken:   "abc123",
		},
		{
			name:     "malformed query",
			fragment: "#%zz",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := Parse(tc.fragment)

			assert.Equal(t, tc.wantSuccess, result.IsSuccess())
			assert.Equal(t, tc.wantFailure, result.IsFailure())
			assert.Equal(t, tc.wantSuccess || tc.wantFailure, result.IsCallback())
			assert.Equal(t, tc.wantToken, result.AccessToken)
			assert.Equal(t, tc.wantError, result.ErrorCode)
			assert.Equal(t, tc.wantState, result.State)
		})
	}
}

func TestIsCallback(t *testing.T) {
	assert.True(t, IsCallback("#access_token=abc"))
	assert.True(t, IsCallback("#error=access_denied"))
	assert.False(t, IsCallback(""))
	assert.False(t, IsCallback("#foo=bar"))
}

func TestIsCallbackIdempotent(t *testing.T) {
	fragment := "#access_token=abc123"
	for i := 0; i < 100; i++ {
		assert.True(t, IsCallback(fragment))
	}
	for i := 0; i < 100; i++ {
		assert.False(t, IsCallback("#foo=bar"))
	}
}
