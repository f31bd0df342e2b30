package config

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// SessionBackend selects where the signed-in session is persisted
type SessionBackend string

const (
	SessionBackendMemory    SessionBackend = "memory"
	SessionBackendRedis     SessionBackend = "redis"
	SessionBackendFirestore SessionBackend = "firestore"
)

// Config holds everything the sign-in client needs. Values come from the
// environment with the TMCLUB prefix, e.g. TMCLUB_GOOGLE_CLIENT_ID.
type Config struct {
	GoogleAuthEnabled bool   `envconfig:"GOOGLE_AUTH_ENABLED" default:"true"`
	GoogleClientID    string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleRedirectURI string `envconfig:"GOOGLE_REDIRECT_URI" default:"http://127.0.0.1:53682/auth/google/callback"`
	GoogleScopes      string `envconfig:"GOOGLE_SCOPES" default:"profile email"`

	// Base URL of the club dashboard REST API
	APIBaseURL string `envconfig:"API_BASE_URL" default:"https://api.tmclub.eu"`

	SessionBackend SessionBackend `envconfig:"SESSION_BACKEND" default:"memory"`
	// 32-byte base64 key; required for the redis and firestore backends,
	// where the session token is encrypted at rest
	SessionSecretKey Secret `envconfig:"SESSION_SECRET_KEY"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword Secret `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisKey      string `envconfig:"REDIS_KEY" default:"tmclub:session"`

	FirestoreProject         string `envconfig:"FIRESTORE_PROJECT"`
	FirestoreDatabase        string `envconfig:"FIRESTORE_DATABASE" default:"(default)"`
	FirestoreCollection      string `envconfig:"FIRESTORE_COLLECTION" default:"tmclub_sessions"`
	FirestoreDoc             string `envconfig:"FIRESTORE_DOC" default:"current"`
	FirestoreCredentialsFile string `envconfig:"FIRESTORE_CREDENTIALS_FILE"`

	// Opt-in CSRF state parameter for the redirect flow. The upstream web
	// client never sent one, so this stays off unless explicitly enabled.
	OAuthStateParam bool          `envconfig:"OAUTH_STATE_PARAM" default:"false"`
	OAuthStateTTL   time.Duration `envconfig:"OAUTH_STATE_TTL" default:"10m"`

	SignInTimeout      time.Duration `envconfig:"SIGNIN_TIMEOUT" default:"5m"`
	SignInPollInterval time.Duration `envconfig:"SIGNIN_POLL_INTERVAL" default:"1s"`
}

// Load reads the config from the environment and validates it
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("TMCLUB", &cfg); err != nil {
		return Config{}, fmt.Errorf("reading environment: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field requirements once at startup. Presence of the
// Google client id is deliberately not checked here; the URL builder reports
// it per call so callers can tell it apart from the feature being disabled.
func Validate(cfg *Config) error {
	if _, err := url.Parse(cfg.APIBaseURL); err != nil {
		return fmt.Errorf("invalid API base URL %q: %w", cfg.APIBaseURL, err)
	}

	u, err := url.Parse(cfg.GoogleRedirectURI)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid Google redirect URI %q", cfg.GoogleRedirectURI)
	}

	switch cfg.SessionBackend {
	case SessionBackendMemory:
	case SessionBackendRedis, SessionBackendFirestore:
		if _, err := cfg.SessionKey(); err != nil {
			return err
		}
		if cfg.SessionBackend == SessionBackendFirestore && cfg.FirestoreProject == "" {
			return fmt.Errorf("TMCLUB_FIRESTORE_PROJECT is required for the firestore session backend")
		}
	default:
		return fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}

	if cfg.SignInTimeout <= 0 {
		return fmt.Errorf("sign-in timeout must be positive, got %s", cfg.SignInTimeout)
	}
	if cfg.SignInPollInterval <= 0 {
		return fmt.Errorf("sign-in poll interval must be positive, got %s", cfg.SignInPollInterval)
	}

	return nil
}

// SessionKey decodes the session encryption key
func (c *Config) SessionKey() ([]byte, error) {
	if c.SessionSecretKey == "" {
		return nil, fmt.Errorf("TMCLUB_SESSION_SECRET_KEY is required for the %s session backend", c.SessionBackend)
	}
	key, err := base64.StdEncoding.DecodeString(string(c.SessionSecretKey))
	if err != nil {
		return nil, fmt.Errorf("TMCLUB_SESSION_SECRET_KEY is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("TMCLUB_SESSION_SECRET_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// ScopeList splits the space-separated scope string
func (c *Config) ScopeList() []string {
	return strings.Fields(c.GoogleScopes)
}
