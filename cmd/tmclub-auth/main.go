// Command tmclub-auth signs a user into the club dashboard API with Google
// and manages the stored session.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tmclubs/tmclub-dashboard-sub002/internal/backend"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/callback"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/config"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/crypto"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/exchange"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/flow"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/googleauth"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/log"
	"github.com/tmclubs/tmclub-dashboard-sub002/internal/session"
)

var cfg config.Config

func main() {
	root := &cobra.Command{
		Use:           "tmclub-auth",
		Short:         "Google sign-in for the club dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional; real deployments set the environment directly
			_ = godotenv.Load()
			var err error
			cfg, err = config.Load()
			return err
		},
	}

	root.AddCommand(newLoginCmd(), newLogoutCmd(), newWhoamiCmd(), newAuthURLCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLoginCmd() *cobra.Command {
	var useRedirect bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with Google",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, cleanup, err := newStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			exchanger := exchange.New(backend.New(cfg.APIBaseURL), store)

			var s *session.Session
			if useRedirect {
				s, err = loginRedirect(ctx, exchanger)
			} else {
				s, err = loginPopup(ctx, exchanger)
			}
			if err != nil {
				return err
			}

			fmt.Printf("Signed in as %s (%s)\n", s.User.Name, s.User.Email)
			if exp, ok := s.TokenExpiry(); ok {
				fmt.Printf("Session valid until %s\n", exp.Local().Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&useRedirect, "redirect", false, "print the consent URL and paste the result instead of opening a window")
	return cmd
}

// loginPopup runs the windowed flow: a loopback relay receives the redirect
// and hands the token back as a message.
func loginPopup(ctx context.Context, exchanger *exchange.Exchanger) (*session.Session, error) {
	relay, err := callback.NewRelay(cfg.GoogleRedirectURI)
	if err != nil {
		return nil, err
	}
	relay.Start()
	defer func() {
		if err := relay.Close(); err != nil {
			log.LogWarnWithFields("cli", "Relay shutdown failed", map[string]any{"error": err.Error()})
		}
	}()

	popup := flow.NewPopupFlow(cfg, exchanger, flow.SystemBrowserOpener{}, relay.Messages(), relay.Origin())

	fmt.Println("Opening your browser to sign in with Google…")
	return popup.Authenticate(ctx)
}

// loginRedirect prints the consent URL, then resumes from the redirect URL
// the user pastes back, the CLI's stand-in for a next-page-load fragment.
func loginRedirect(ctx context.Context, exchanger *exchange.Exchanger) (*session.Session, error) {
	redirect := flow.NewRedirectFlow(cfg, exchanger)

	if err := redirect.Start(printNavigator{}); err != nil {
		return nil, err
	}

	fmt.Print("Paste the full URL you were redirected to: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("reading redirect URL: %w", err)
	}

	fragment, err := fragmentOf(strings.TrimSpace(line))
	if err != nil {
		return nil, err
	}
	return redirect.Resume(ctx, fragment)
}

// printNavigator "navigates" by printing the URL for the user to open
type printNavigator struct{}

func (printNavigator) Navigate(u string) error {
	fmt.Println("Open this URL in your browser:")
	fmt.Println()
	fmt.Println("  " + u)
	fmt.Println()
	return nil
}

func fragmentOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("not a valid URL: %w", err)
	}
	return u.Fragment, nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, cleanup, err := newStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := store.Clear(ctx); err != nil {
				return err
			}
			fmt.Println("Signed out.")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, cleanup, err := newStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			s, err := store.Get(ctx)
			if errors.Is(err, session.ErrNotFound) {
				fmt.Println("Not signed in.")
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Printf("Signed in as %s (%s)\n", s.User.Name, s.User.Email)
			if s.User.Role != "" {
				fmt.Printf("Role: %s\n", s.User.Role)
			}
			if exp, ok := s.TokenExpiry(); ok {
				fmt.Printf("Session valid until %s\n", exp.Local().Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func newAuthURLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth-url",
		Short: "Print the Google consent URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := googleauth.BuildAuthURL(cfg)
			if err != nil {
				return err
			}
			fmt.Println(u)
			return nil
		},
	}
}

// newStore builds the configured session store. cleanup closes any backend
// connection and is safe to call unconditionally.
func newStore(ctx context.Context) (session.Store, func(), error) {
	noop := func() {}

	switch cfg.SessionBackend {
	case config.SessionBackendMemory:
		return session.NewMemoryStore(), noop, nil

	case config.SessionBackendRedis:
		key, err := cfg.SessionKey()
		if err != nil {
			return nil, nil, err
		}
		encryptor, err := crypto.NewEncryptor(key)
		if err != nil {
			return nil, nil, err
		}
		store, err := session.NewRedisStore(ctx, cfg.RedisAddr, string(cfg.RedisPassword), cfg.RedisDB, cfg.RedisKey, encryptor)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	case config.SessionBackendFirestore:
		key, err := cfg.SessionKey()
		if err != nil {
			return nil, nil, err
		}
		encryptor, err := crypto.NewEncryptor(key)
		if err != nil {
			return nil, nil, err
		}
		store, err := session.NewFirestoreStore(ctx, cfg.FirestoreProject, cfg.FirestoreDatabase,
			cfg.FirestoreCollection, cfg.FirestoreDoc, cfg.FirestoreCredentialsFile, encryptor)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}
