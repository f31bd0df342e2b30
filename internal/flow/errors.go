package flow

import "errors"

// Terminal failures of a sign-in attempt
var (
	// ErrPopupBlocked indicates the sign-in window could not be opened
	ErrPopupBlocked = errors.New("sign-in window was blocked")

	// ErrUserCancelled indicates the user closed the sign-in window. This is
	// benign; callers should not treat it as an application error.
	ErrUserCancelled = errors.New("sign-in window closed by user")

	// ErrTimeout indicates no response arrived within the sign-in timeout.
	// Retryable by starting a new flow.
	ErrTimeout = errors.New("timed out waiting for sign-in")

	// ErrNotCallback indicates Resume was invoked on a page load whose
	// fragment carried no callback data
	ErrNotCallback = errors.New("current location is not a sign-in callback")

	// ErrStateMismatch indicates the callback's state parameter was missing,
	// expired, or already used
	ErrStateMismatch = errors.New("sign-in state parameter did not match")
)

// ProviderError carries an error code returned by Google, e.g.
// "access_denied". The code is passed through to the caller unchanged.
type ProviderError struct {
	Code string
}

func (e *ProviderError) Error() string {
	return "google returned error: " + e.Code
}
