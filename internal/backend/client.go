// Package backend is the REST client for the club dashboard API, limited to
// the two endpoints the sign-in flow needs: the Google token exchange and
// the identity lookup.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// User is the dashboard's user record as returned by the identity endpoint
type User struct {
	ID      int64  `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
	Role    string `json:"role,omitempty"`
}

// StatusError is returned for non-2xx API responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("api returned status %d", e.StatusCode)
}

// Client talks to the dashboard API
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates an API client for the given base URL
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// ExchangeGoogleToken trades a raw Google access token for an application
// session token. Contract: POST /api/auth/google -> {"token": "..."}.
func (c *Client) ExchangeGoogleToken(ctx context.Context, providerToken string) (string, error) {
	body, err := json.Marshal(map[string]string{"accessToken": providerToken})
	if err != nil {
		return "", fmt.Errorf("encoding exchange request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/google", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling token exchange: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding exchange response: %w", err)
	}
	if payload.Token == "" {
		return "", fmt.Errorf("token exchange returned an empty token")
	}
	return payload.Token, nil
}

// CurrentUser fetches the authenticated user record for an application token
func (c *Client) CurrentUser(ctx context.Context, appToken string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/auth/me", nil)
	if err != nil {
		return nil, fmt.Errorf("building identity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+appToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling identity endpoint: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decoding identity response: %w", err)
	}
	return &user, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
