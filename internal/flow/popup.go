// Package flow orchestrates the two ways of running the Google sign-in: a
// secondary window whose result comes back as a message, or a full
// navigation that resumes on the next load.
package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/callback"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/config"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/exchange"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/googleauth"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/log"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/session"
)

type popupState string

const (
	stateIdle            popupState = "idle"
	stateOpening         popupState = "opening"
	stateAwaitingMessage popupState = "awaiting_message"
	stateSucceeded       popupState = "succeeded"
	stateFailed          popupState = "failed"
	stateCancelled       popupState = "cancelled"
)

// PopupFlow signs the user in through a secondary window. A single
// Authenticate call resolves exactly once, on the first of: a trusted
// message, the window closing, or the timeout.
type PopupFlow struct {
	cfg       config.Config
	exchanger *exchange.Exchanger
	opener    WindowOpener
	messages  <-chan callback.Message
	origin    string

	timeout      time.Duration
	pollInterval time.Duration
}

// PopupOption configures a PopupFlow
type PopupOption func(*PopupFlow)

// WithTimeout overrides the overall sign-in timeout
func WithTimeout(d time.Duration) PopupOption {
	return func(f *PopupFlow) {
		f.timeout = d
	}
}

// WithPollInterval overrides how often the window is checked for having
// been closed
func WithPollInterval(d time.Duration) PopupOption {
	return func(f *PopupFlow) {
		f.pollInterval = d
	}
}

// NewPopupFlow wires a popup flow. messages and origin usually come from a
// callback.Relay; only messages whose origin equals this origin are trusted.
func NewPopupFlow(cfg config.Config, exchanger *exchange.Exchanger, opener WindowOpener, messages <-chan callback.Message, origin string, opts ...PopupOption) *PopupFlow {
	f := &PopupFlow{
		cfg:          cfg,
		exchanger:    exchanger,
		opener:       opener,
		messages:     messages,
		origin:       origin,
		timeout:      cfg.SignInTimeout,
		pollInterval: cfg.SignInPollInterval,
	}
	if f.timeout <= 0 {
		f.timeout = 5 * time.Minute
	}
	if f.pollInterval <= 0 {
		f.pollInterval = time.Second
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Authenticate runs the sign-in window to completion and returns the stored
// session. The close-poll ticker and the timeout are torn down on every exit
// path; whichever trigger fires first decides the outcome and later triggers
// are no-ops.
func (f *PopupFlow) Authenticate(ctx context.Context) (*session.Session, error) {
	flowID := uuid.NewString()
	state := stateIdle

	transition := func(next popupState) {
		log.LogDebugWithFields("popup", "State transition", map[string]any{
			"flow_id": flowID,
			"from":    string(state),
			"to":      string(next),
		})
		state = next
	}

	transition(stateOpening)
	authURL, err := googleauth.BuildAuthURL(f.cfg)
	if err != nil {
		transition(stateFailed)
		return nil, err
	}

	win, err := f.opener.Open(authURL, popupWidth, popupHeight)
	if err != nil || win == nil {
		transition(stateFailed)
		return nil, fmt.Errorf("%w: %v", ErrPopupBlocked, err)
	}

	transition(stateAwaitingMessage)
	poll := time.NewTicker(f.pollInterval)
	defer poll.Stop()
	timeout := time.NewTimer(f.timeout)
	defer timeout.Stop()

	for {
		select {
		case msg := <-f.messages:
			if msg.Origin != f.origin {
				// Untrusted sender; stay in awaiting_message
				log.LogWarnWithFields("popup", "Ignored message from foreign origin", map[string]any{
					"flow_id": flowID,
					"origin":  msg.Origin,
				})
				continue
			}
			switch msg.Type {
			case callback.MessageTypeSuccess:
				_ = win.Close()
				go logProviderProfile(flowID, msg.AccessToken)
				s, err := f.exchanger.ExchangeToken(ctx, msg.AccessToken)
				if err != nil {
					transition(stateFailed)
					return nil, err
				}
				transition(stateSucceeded)
				return s, nil
			case callback.MessageTypeError:
				_ = win.Close()
				transition(stateFailed)
				return nil, &ProviderError{Code: msg.Error}
			default:
				continue
			}

		case <-poll.C:
			if win.Closed() {
				transition(stateCancelled)
				return nil, ErrUserCancelled
			}

		case <-timeout.C:
			_ = win.Close()
			transition(stateFailed)
			return nil, ErrTimeout

		case <-ctx.Done():
			_ = win.Close()
			transition(stateCancelled)
			return nil, ctx.Err()
		}
	}
}

// logProviderProfile fetches the Google profile for diagnostics. It runs
// detached with its own deadline; failure never touches the sign-in.
func logProviderProfile(flowID, providerToken string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	profile, err := googleauth.FetchProfile(ctx, providerToken)
	if err != nil {
		log.LogDebugWithFields("popup", "Profile fetch failed", map[string]any{
			"flow_id": flowID,
			"error":   err.Error(),
		})
		return
	}
	log.LogDebugWithFields("popup", "Google profile", map[string]any{
		"flow_id":  flowID,
		"email":    profile.Email,
		"verified": profile.VerifiedEmail,
	})
}
