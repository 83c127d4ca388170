package authflow

// Credentials is the immutable input to the login protocol, supplied once at
// construction. Language affects the login and consent page locale.
type Credentials struct {
	Username string
	Password string
	Language string
}

// TokenPair is the final product of a successful login: the Ayla device-cloud
// access token and, when issued, the refresh token that can renew it without
// replaying the full protocol.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// protocolContext carries the opaque values threaded between login steps.
// Each value is produced by exactly one step and consumed by exactly one
// later step; the whole struct is discarded when the attempt ends.
type protocolContext struct {
	context            string // step 1: correlation id from the authorize redirect
	ucid               string // step 2
	gmid               string // step 2
	gmidTicket         string // step 2
	loginToken         string // step 3
	uid                string // step 4
	uidSignature       string // step 4
	signatureTimestamp string // step 4
	consentSig         string // step 5
	code               string // step 6
	identityToken      string // step 7: OIDC broker token, not the device-cloud token

	pair *TokenPair // step 8: the finished product
}

// getIDsResponse is the socialize.getIDs body (step 2).
type getIDsResponse struct {
	UCID       string `json:"ucid"`
	GMID       string `json:"gmid"`
	GMIDTicket string `json:"gmidTicket"`
}

// accountsLoginResponse is the accounts.login body (step 3). Gigya embeds the
// real status in the body regardless of the HTTP status line.
type accountsLoginResponse struct {
	StatusCode   int    `json:"statusCode"`
	ErrorDetails string `json:"errorDetails"`
	SessionInfo  struct {
		LoginToken string `json:"login_token"`
	} `json:"sessionInfo"`
}

// userInfoResponse is the socialize.getUserInfo body (step 4).
type userInfoResponse struct {
	UID                string `json:"UID"`
	UIDSignature       string `json:"UIDSignature"`
	SignatureTimestamp string `json:"signatureTimestamp"`
}

// cloudSignInResponse is the Ayla token_sign_in body (step 8).
type cloudSignInResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// refreshResponse is the Ayla refresh_token.json body.
type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// consentObject is the JSON consent assertion sent in step 6, whose integrity
// is proven by the signature scraped from the consent page in step 5. Field
// order matters only in that it mirrors what the consent page itself signs.
type consentObject struct {
	Scope    string `json:"scope"`
	ClientID string `json:"clientID"`
	Context  string `json:"context"`
	UID      string `json:"UID"`
	Consent  bool   `json:"consent"`
}
