// Package authflow implements the federated login protocol for the De'Longhi
// Comfort device cloud: a Gigya consumer identity federated through Gigya's
// OIDC broker into the Ayla platform, producing the access/refresh token pair
// the device REST API accepts.
package authflow

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Option configures a Session.
type Option func(*Session)

// WithHTTPClient sets the HTTP client used for every protocol call. The
// session never relies on the client's redirect policy; authorize steps that
// must not follow redirects use a per-call copy with redirects disabled.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Session) {
		s.client = client
	}
}

// WithEndpoints overrides the upstream base URLs. Zero-value fields keep
// their production defaults.
func WithEndpoints(endpoints Endpoints) Option {
	return func(s *Session) {
		s.endpoints = endpoints.withDefaults()
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithConsentExtractor replaces the production consent-signature extractor,
// the piece most likely to need swapping when the consent page changes.
func WithConsentExtractor(extractor ConsentSignatureExtractor) Option {
	return func(s *Session) {
		s.extractor = extractor
	}
}

// WithStore enables token persistence. Restore loads from it and successful
// logins and refreshes write back to it.
func WithStore(store Store) Option {
	return func(s *Session) {
		s.store = store
	}
}

// WithClock overrides the time source used for the bootstrap nonce and the
// fingerprint timestamp. Tests use it for deterministic requests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}
