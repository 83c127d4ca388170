package authflow

// Client identity used against the Gigya/Ayla stack. These values identify
// the official Comfort mobile/web application, not this library; the upstream
// services only accept requests that present them.
const (
	apiKey       = "3_h7G3mS5vLZ9kQxFpW0cJdNbT2uYrEaVi8oCKzXqMwDl6RePtBsnUfAHOjgyI41m"
	clientID     = "ZGZlMmRiNWUtY2QxMy00Yzk1"
	clientSecret = "R2p3bVlUQkhxWnNQa0x2ZE5jRmVIYTV4"
	appID        = "DLComfort-eu-id"
	appSecret    = "DLComfort-eu-Jx8kR2nWq5tYvB7mPcZ0hL4dSgA9oUeF"

	redirectURI = "https://google.it"
	scope       = "openid email profile UID comfort en alexa"
	pageURL     = "https://aylaopenid.delonghigroup.com/"
	sdkBuild    = "15703"
)

// Per-step User-Agent table. The upstream services discriminate on the
// originating client role: the Gigya browser flow (steps 1-6) expects a
// browser agent, the token endpoints (steps 7-8 and refresh) expect the
// mobile app's HTTP stack, and the device REST API expects the SDK agent.
const (
	BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	TokenUserAgent   = "DeLonghiComfort/2.4.1 (okhttp/4.12.0)"
	APIUserAgent     = "AylaSDK/6.2.00 DeLonghiComfort/2.4.1"
)

// Endpoints holds the base URLs of the five upstream services involved in the
// login dance. Zero-value fields fall back to production; tests point them at
// an httptest server.
type Endpoints struct {
	// Broker is the Gigya OIDC provider (authorize, authorize/continue, token).
	Broker string
	// Socialize is the Gigya social-identity service (getIDs, getUserInfo).
	Socialize string
	// Accounts is the Gigya credentialed-login service (accounts.login).
	Accounts string
	// Consent is the De'Longhi-hosted OIDC consent page.
	Consent string
	// UserField is the Ayla user service (token_sign_in, refresh_token).
	UserField string
}

// DefaultEndpoints returns the production endpoint set (EU region).
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Broker:    "https://fidm.eu1.gigya.com",
		Socialize: "https://socialize.eu1.gigya.com",
		Accounts:  "https://accounts.eu1.gigya.com",
		Consent:   "https://aylaopenid.delonghigroup.com",
		UserField: "https://user-field-eu.aylanetworks.com",
	}
}

func (e Endpoints) withDefaults() Endpoints {
	def := DefaultEndpoints()
	if e.Broker == "" {
		e.Broker = def.Broker
	}
	if e.Socialize == "" {
		e.Socialize = def.Socialize
	}
	if e.Accounts == "" {
		e.Accounts = def.Accounts
	}
	if e.Consent == "" {
		e.Consent = def.Consent
	}
	if e.UserField == "" {
		e.UserField = def.UserField
	}
	return e
}
