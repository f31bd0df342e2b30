package flow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/backend"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/callback"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/config"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/exchange"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/session"
)

const testOrigin = "http://127.0.0.1:53682"

type fakeWindow struct {
	closed     atomic.Bool
	closeCalls atomic.Int32
}

func (w *fakeWindow) Closed() bool { return w.closed.Load() }

func (w *fakeWindow) Close() error {
	w.closeCalls.Add(1)
	w.closed.Store(true)
	return nil
}

type fakeOpener struct {
	window    *fakeWindow
	openErr   error
	openCalls atomic.Int32
	lastURL   atomic.Value
}

func (o *fakeOpener) Open(url string, width, height int) (Window, error) {
	o.openCalls.Add(1)
	o.lastURL.Store(url)
	if o.openErr != nil {
		return nil, o.openErr
	}
	return o.window, nil
}

func testFlowConfig() config.Config {
	return config.Config{
		GoogleAuthEnabled:  true,
		GoogleClientID:     "test-client-id",
		GoogleRedirectURI:  testOrigin + "/auth/google/callback",
		GoogleScopes:       "profile email",
		SignInTimeout:      5 * time.Minute,
		SignInPollInterval: time.Second,
	}
}

func newTestExchanger(t *testing.T) (*exchange.Exchanger, *session.MemoryStore) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/google", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token":"T1"}`))
	})
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":1,"email":"a@b.com","name":"Ada B"}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"g-1","email":"a@b.com","verified_email":true}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	// Keep the detached profile fetch off the network
	t.Setenv("GOOGLE_USERINFO_URL", server.URL+"/userinfo")

	store := session.NewMemoryStore()
	return exchange.New(backend.New(server.URL), store), store
}

func TestPopupSuccess(t *testing.T) {
	exchanger, store := newTestExchanger(t)
	opener := &fakeOpener{window: &fakeWindow{}}
	messages := make(chan callback.Message, 4)

	f := NewPopupFlow(testFlowConfig(), exchanger, opener, messages, testOrigin)

	go func() {
		time.Sleep(200 * time.Millisecond)
		messages <- callback.Message{
			Type:        callback.MessageTypeSuccess,
			AccessToken: "provider-tok",
			Origin:      testOrigin,
		}
	}()

	s, err := f.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T1", s.Token)
	assert.Equal(t, "a@b.com", s.User.Email)

	stored, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T1", stored.Token)

	// A late message after resolution must be inert
	messages <- callback.Message{
		Type:        callback.MessageTypeSuccess,
		AccessToken: "another-tok",
		Origin:      testOrigin,
	}
	time.Sleep(50 * time.Millisecond)
	stored, err = store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T1", stored.Token)
}

func TestPopupProviderError(t *testing.T) {
	exchanger, _ := newTestExchanger(t)
	win := &fakeWindow{}
	opener := &fakeOpener{window: win}
	messages := make(chan callback.Message, 4)

	f := NewPopupFlow(testFlowConfig(), exchanger, opener, messages, testOrigin)

	go func() {
		messages <- callback.Message{
			Type:   callback.MessageTypeError,
			Error:  "access_denied",
			Origin: testOrigin,
		}
	}()

	_, err := f.Authenticate(context.Background())
	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, "access_denied", providerErr.Code)
	assert.True(t, win.Closed())
}

func TestPopupUserCancels(t *testing.T) {
	exchanger, _ := newTestExchanger(t)
	win := &fakeWindow{}
	opener := &fakeOpener{window: win}
	messages := make(chan callback.Message)

	f := NewPopupFlow(testFlowConfig(), exchanger, opener, messages, testOrigin,
		WithPollInterval(10*time.Millisecond))

	// Window reports closed around the third poll tick
	go func() {
		time.Sleep(30 * time.Millisecond)
		win.closed.Store(true)
	}()

	start := time.Now()
	_, err := f.Authenticate(context.Background())
	assert.ErrorIs(t, err, ErrUserCancelled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPopupTimeout(t *testing.T) {
	exchanger, _ := newTestExchanger(t)
	win := &fakeWindow{}
	opener := &fakeOpener{window: win}
	messages := make(chan callback.Message)

	f := NewPopupFlow(testFlowConfig(), exchanger, opener, messages, testOrigin,
		WithTimeout(50*time.Millisecond),
		WithPollInterval(10*time.Millisecond))

	_, err := f.Authenticate(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, win.closeCalls.Load(), int32(1), "timeout must force-close the window")
}

func TestPopupIgnoresForeignOrigin(t *testing.T) {
	exchanger, store := newTestExchanger(t)
	opener := &fakeOpener{window: &fakeWindow{}}
	messages := make(chan callback.Message, 4)

	f := NewPopupFlow(testFlowConfig(), exchanger, opener, messages, testOrigin)

	go func() {
		// Correct shape, wrong origin: must not resolve the flow
		messages <- callback.Message{
			Type:        callback.MessageTypeSuccess,
			AccessToken: "spoofed-tok",
			Origin:      "https://evil.example.com",
		}
		time.Sleep(50 * time.Millisecond)
		messages <- callback.Message{
			Type:        callback.MessageTypeSuccess,
			AccessToken: "provider-tok",
			Origin:      testOrigin,
		}
	}()

	s, err := f.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T1", s.Token)

	stored, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", stored.User.Email, "only the trusted message may trigger the exchange")
}

func TestPopupBlocked(t *testing.T) {
	exchanger, _ := newTestExchanger(t)
	opener := &fakeOpener{openErr: assert.AnError}

	f := NewPopupFlow(testFlowConfig(), exchanger, opener, make(chan callback.Message), testOrigin)

	_, err := f.Authenticate(context.Background())
	assert.ErrorIs(t, err, ErrPopupBlocked)
}

func TestPopupConfigErrorOpensNoWindow(t *testing.T) {
	exchanger, _ := newTestExchanger(t)
	opener := &fakeOpener{window: &fakeWindow{}}

	cfg := testFlowConfig()
	cfg.GoogleAuthEnabled = false

	f := NewPopupFlow(cfg, exchanger, opener, make(chan callback.Message), testOrigin)

	_, err := f.Authenticate(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(0), opener.openCalls.Load(), "no window may open on a configuration error")
}

func TestPopupExchangeFailureIsTerminal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/google", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	t.Setenv("GOOGLE_USERINFO_URL", server.URL+"/userinfo")

	store := session.NewMemoryStore()
	exchanger := exchange.New(backend.New(server.URL), store)
	opener := &fakeOpener{window: &fakeWindow{}}
	messages := make(chan callback.Message, 4)

	f := NewPopupFlow(testFlowConfig(), exchanger, opener, messages, testOrigin)

	go func() {
		messages <- callback.Message{
			Type:        callback.MessageTypeSuccess,
			AccessToken: "provider-tok",
			Origin:      testOrigin,
		}
	}()

	_, err := f.Authenticate(context.Background())
	assert.ErrorIs(t, err, exchange.ErrExchangeFailed)

	_, err = store.Get(context.Background())
	assert.ErrorIs(t, err, session.ErrNotFound)
}
