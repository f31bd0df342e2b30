// Package callback handles the return leg of the Google implicit flow: it
// parses redirect fragments and runs the loopback relay that turns a browser
// redirect into a typed message for the orchestrators.
package callback

import (
	"net/url"
	"strings"
)

// Result is the outcome of parsing a redirect fragment. Exactly one of
// IsSuccess, IsFailure, or neither (not a callback) holds.
type Result struct {
	AccessToken string
	ErrorCode   string
	// State echoes the state parameter if the provider returned one
	State string

	kind resultKind
}

type resultKind int

const (
	kindNotACallback resultKind = iota
	kindSuccess
	kindFailure
)

// IsSuccess reports whether the fragment carried an access token
func (r Result) IsSuccess() bool { return r.kind == kindSuccess }

// IsFailure reports whether the fragment carried a provider error
func (r Result) IsFailure() bool { return r.kind == kindFailure }

// IsCallback reports whether the fragment was an OAuth callback at all
func (r Result) IsCallback() bool { return r.kind != kindNotACallback }

// Parse interprets a URL fragment (with or without the leading "#") as
// implicit-flow callback parameters. An error parameter wins over an access
// token. Anything else is not a callback.
//
// Parse itself is pure; callers own the companion contract of clearing the
// fragment from browser history after consuming a Success or Failure so the
// result cannot be reprocessed on a later load.
func Parse(fragment string) Result {
	params := parseFragment(fragment)

	if errCode := params.Get("error"); errCode != "" {
		return Result{ErrorCode: errCode, State: params.Get("state"), kind: kindFailure}
	}
	if token := params.Get("access_token"); token != "" {
		return Result{AccessToken: token, State: params.Get("state"), kind: kindSuccess}
	}
	return Result{}
}

// IsCallback reports whether the fragment looks like an OAuth callback. It is
// side-effect-free and safe to call on every page load.
func IsCallback(fragment string) bool {
	params := parseFragment(fragment)
	return params.Get("access_token") != "" || params.Get("error") != ""
}

func parseFragment(fragment string) url.Values {
	fragment = strings.TrimPrefix(fragment, "#")
	params, err := url.ParseQuery(fragment)
	if err != nil {
		return url.Values{}
	}
	return params
}
