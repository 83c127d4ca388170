package authflow

import "strings"

// ConsentSignatureExtractor pulls the consent signature out of the consent
// page HTML. The production page embeds it in an inline script; the marker
// search below is the single most upstream-fragile piece of the protocol, so
// it sits behind this interface for easy replacement when the page changes.
type ConsentSignatureExtractor interface {
	// Extract returns the signature string, or ErrConsentMarkerNotFound when
	// the page no longer contains the expected marker. It never returns an
	// empty signature with a nil error.
	Extract(html string) (string, error)
}

const (
	consentSigMarker = "const consentObj2Sig = '"
	consentSigEnd    = "';"
)

// markerExtractor is the production extractor: a marker-delimited substring
// search over the raw page.
type markerExtractor struct{}

func (markerExtractor) Extract(html string) (string, error) {
	_, after, found := strings.Cut(html, consentSigMarker)
	if !found {
		return "", ErrConsentMarkerNotFound
	}
	sig, _, found := strings.Cut(after, consentSigEnd)
	if !found || sig == "" {
		return "", ErrConsentMarkerNotFound
	}
	return sig, nil
}
