package flow

import (
	"github.com/pkg/browser"
)

// Sign-in window geometry, matching the dashboard's popup
const (
	popupWidth  = 500
	popupHeight = 600
)

// Window is a handle to an open sign-in window. Ownership stays with the
// flow that opened it until the flow resolves.
type Window interface {
	// Closed reports whether the window has been closed by the user
	Closed() bool
	// Close closes the window if it is still open
	Close() error
}

// WindowOpener opens sign-in windows. The width/height are hints; openers
// that cannot control geometry ignore them.
type WindowOpener interface {
	Open(url string, width, height int) (Window, error)
}

// SystemBrowserOpener opens the URL in the user's default browser. The
// resulting window's lifecycle is not observable from here, so Closed always
// reports false and cancellation comes from the timeout or the caller.
type SystemBrowserOpener struct{}

func (SystemBrowserOpener) Open(url string, width, height int) (Window, error) {
	if err := browser.OpenURL(url); err != nil {
		return nil, err
	}
	return systemWindow{}, nil
}

type systemWindow struct{}

func (systemWindow) Closed() bool { return false }
func (systemWindow) Close() error { return nil }
