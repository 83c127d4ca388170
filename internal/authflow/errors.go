package authflow

import (
	"errors"
	"fmt"
)

// Stage identifies which step of the login protocol an error came from.
type Stage string

// Protocol stages, in execution order.
const (
	StageBootstrap Stage = "bootstrap"
	StageSession   Stage = "session"
	StageLogin     Stage = "login"
	StageUserInfo  Stage = "userinfo"
	StageConsent   Stage = "consent"
	StageAuthorize Stage = "authorize"
	StageToken     Stage = "token"
	StageCloud     Stage = "cloud_signin"
	StageRefresh   Stage = "refresh"
)

// Common errors surfaced by the authentication flow
var (
	// ErrMalformedResponse indicates an upstream response is missing an
	// expected field (redirect header, JSON key, HTML marker)
	ErrMalformedResponse = errors.New("malformed upstream response")

	// ErrCredentialsRejected indicates the identity provider explicitly
	// refused the supplied username/password
	ErrCredentialsRejected = errors.New("credentials rejected by identity provider")

	// ErrNoRedirect indicates an authorize endpoint answered without the
	// expected Location header
	ErrNoRedirect = fmt.Errorf("%w: upstream did not redirect", ErrMalformedResponse)

	// ErrConsentMarkerNotFound indicates the consent page no longer embeds
	// the signature marker the scraper looks for
	ErrConsentMarkerNotFound = fmt.Errorf("%w: consent signature marker not found", ErrMalformedResponse)
)

// AuthError wraps a step failure with the stage it occurred in. The whole
// login attempt is discarded when one is returned; no partial state leaks.
type AuthError struct {
	Stage Stage
	Err   error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth %s: %v", e.Stage, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

func stageErr(stage Stage, err error) *AuthError {
	return &AuthError{Stage: stage, Err: err}
}

// FailedStage reports the protocol stage an error originated from, if any.
func FailedStage(err error) (Stage, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Stage, true
	}
	return "", false
}

// IsCredentialsRejected reports whether an error means the user should
// re-check their username and password rather than retry later.
func IsCredentialsRejected(err error) bool {
	return errors.Is(err, ErrCredentialsRejected)
}

// IsParseError reports whether an error came from an upstream response that
// no longer has the shape the protocol expects.
func IsParseError(err error) bool {
	return errors.Is(err, ErrMalformedResponse)
}
