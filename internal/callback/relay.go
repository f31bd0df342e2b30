package callback

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/log"
)

// Message types posted by the callback page
const (
	MessageTypeSuccess = "GOOGLE_AUTH_SUCCESS"
	MessageTypeError   = "GOOGLE_AUTH_ERROR"
)

// Message is what the callback page posts back once Google redirects to it.
// Origin is taken from the posting request; consumers decide whether to
// trust it.
type Message struct {
	Type        string `json:"type"`
	AccessToken string `json:"accessToken,omitempty"`
	Error       string `json:"error,omitempty"`
	Origin      string `json:"-"`
}

// Relay is a loopback HTTP server bound to the configured redirect URI. It
// serves a small page that strips the token fragment from the address bar,
// converts it into a Message, and posts it back here, where it is forwarded
// on the Messages channel.
type Relay struct {
	srv      *http.Server
	listener net.Listener
	origin   string
	path     string
	messages chan Message
}

// NewRelay builds a relay for the given redirect URI. The URI's host and
// port are bound immediately so a startup clash surfaces here, not mid-flow.
func NewRelay(redirectURI string) (*Relay, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URI %q: %w", redirectURI, err)
	}
	if u.Scheme != "http" || u.Host == "" {
		return nil, fmt.Errorf("redirect URI %q must be a local http URL", redirectURI)
	}

	listener, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("could not bind callback listener on %s: %w", u.Host, err)
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	host := u.Host
	if u.Port() == "0" {
		// Ephemeral port requested; the origin must carry the bound one
		_, port, _ := net.SplitHostPort(listener.Addr().String())
		host = net.JoinHostPort(u.Hostname(), port)
	}

	r := &Relay{
		listener: listener,
		origin:   u.Scheme + "://" + host,
		path:     path,
		messages: make(chan Message, 4),
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get(r.path, r.handleCallbackPage)
	router.Post(r.messagePath(), r.handleMessage)

	r.srv = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return r, nil
}

// Origin returns the relay's own origin, e.g. "http://127.0.0.1:53682".
// Orchestrators compare message origins against this value.
func (r *Relay) Origin() string { return r.origin }

// Messages is the stream of relayed callback messages
func (r *Relay) Messages() <-chan Message { return r.messages }

// Start serves until Close is called
func (r *Relay) Start() {
	go func() {
		if err := r.srv.Serve(r.listener); err != nil && err != http.ErrServerClosed {
			log.LogErrorWithFields("relay", "Callback listener stopped", map[string]any{
				"error": err.Error(),
			})
		}
	}()
	log.LogDebugWithFields("relay", "Callback listener started", map[string]any{
		"origin": r.origin,
		"path":   r.path,
	})
}

// Close shuts the listener down, allowing in-flight responses to finish
func (r *Relay) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return r.srv.Shutdown(ctx)
}

// handleCallbackPage serves the page Google redirects to. Its script clears
// the fragment from history before anything else, so a back-navigation or
// reload cannot replay the token, then posts the parsed result back to us.
func (r *Relay) handleCallbackPage(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	fmt.Fprintf(w, callbackPage, r.messagePath())
}

func (r *Relay) messagePath() string {
	return strings.TrimSuffix(r.path, "/") + "/message"
}

// handleMessage receives the parsed fragment from the callback page and
// forwards it to the orchestrator. The request's Origin header travels with
// the message; trust decisions happen downstream.
func (r *Relay) handleMessage(w http.ResponseWriter, req *http.Request) {
	var msg Message
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, 1<<16)).Decode(&msg); err != nil {
		http.Error(w, "invalid message body", http.StatusBadRequest)
		return
	}
	if msg.Type != MessageTypeSuccess && msg.Type != MessageTypeError {
		http.Error(w, "unknown message type", http.StatusBadRequest)
		return
	}

	msg.Origin = req.Header.Get("Origin")
	if msg.Origin == "" {
		// Same-origin fetches may omit the header
		msg.Origin = r.origin
	}

	select {
	case r.messages <- msg:
	default:
		// A flow already resolved; late messages are dropped
		log.LogDebugWithFields("relay", "Dropped message, no listener", map[string]any{
			"type": msg.Type,
		})
	}
	w.WriteHeader(http.StatusNoContent)
}

const callbackPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Signing in…</title></head>
<body>
<p id="status">Completing sign-in…</p>
<script>
(function () {
  var fragment = window.location.hash.replace(/^#/, "");
  // Drop the token from the address bar and history first so it cannot be
  // replayed by reload or back-navigation.
  history.replaceState(null, "", window.location.pathname + window.location.search);

  var params = new URLSearchParams(fragment);
  var message;
  if (params.get("error")) {
    message = { type: "GOOGLE_AUTH_ERROR", error: params.get("error") };
  } else if (params.get("access_token")) {
    message = { type: "GOOGLE_AUTH_SUCCESS", accessToken: params.get("access_token") };
  } else {
    document.getElementById("status").textContent = "No sign-in data found.";
    return;
  }

  fetch(%q, {
    method: "POST",
    headers: { "Content-Type": "application/json" },
    body: JSON.stringify(message)
  }).then(function () {
    document.getElementById("status").textContent = "You are signed in. You can close this window.";
    window.close();
  }).catch(function () {
    document.getElementById("status").textContent = "Could not hand the result back. Close this window and retry.";
  });
})();
</script>
</body>
</html>
`
