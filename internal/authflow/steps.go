package authflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
)

// consentScope is the scope string as the consent page expects it on the
// wire: pre-joined with literal '+' separators, not form-encoded spaces.
const consentScope = "openid+email+profile+UID+comfort+en+alexa"

// Step 1: bootstrap. The authorize endpoint answers with a redirect whose
// Location carries the opaque correlation id for the rest of the dance.
func (s *Session) stepBootstrap(ctx context.Context, pc *protocolContext) error {
	q := url.Values{
		"client_id":     {clientID},
		"response_type": {"code"},
		"redirect_uri":  {redirectURI},
		"scope":         {scope},
		"nonce":         {strconv.FormatInt(s.now().Unix(), 10)},
	}
	resp, err := s.getNoRedirect(ctx, s.brokerURL("/authorize")+"?"+q.Encode())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	pc.context, err = locationParam(resp, "context")
	return err
}

// Step 2: social-identity session init.
func (s *Session) stepSessionIDs(ctx context.Context, pc *protocolContext) error {
	q := url.Values{
		"APIKey":        {apiKey},
		"includeTicket": {"true"},
		"pageURL":       {pageURL},
		"sdk":           {"js_latest"},
		"sdkBuild":      {sdkBuild},
		"format":        {"json"},
	}

	var ids getIDsResponse
	if err := s.getJSON(ctx, s.endpoints.Socialize+"/socialize.getIDs?"+q.Encode(), &ids); err != nil {
		return err
	}
	if ids.UCID == "" || ids.GMID == "" || ids.GMIDTicket == "" {
		return fmt.Errorf("%w: getIDs missing session identifiers", ErrMalformedResponse)
	}

	pc.ucid = ids.UCID
	pc.gmid = ids.GMID
	pc.gmidTicket = ids.GMIDTicket
	return nil
}

// Step 3: credentialed login. Gigya reports the real outcome in the embedded
// statusCode, not the HTTP status line.
func (s *Session) stepLogin(ctx context.Context, pc *protocolContext) error {
	form := url.Values{
		"loginID":           {s.creds.Username},
		"password":          {s.creds.Password},
		"sessionExpiration": {"7884009"},
		"targetEnv":         {"jssdk"},
		"include":           {"profile,data,emails,subscriptions,preferences"},
		"includeUserInfo":   {"true"},
		"loginMode":         {"standard"},
		"lang":              {s.creds.Language},
		"riskContext":       {url.QueryEscape(riskContext(s.now()))},
		"APIKey":            {apiKey},
		"source":            {"showScreenSet"},
		"sdk":               {"js_latest"},
		"authMode":          {"cookie"},
		"pageURL":           {pageURL},
		"gmid":              {pc.gmid},
		"ucid":              {pc.ucid},
		"sdkBuild":          {sdkBuild},
		"format":            {"json"},
	}

	var lr accountsLoginResponse
	if err := s.postForm(ctx, s.endpoints.Accounts+"/accounts.login", form, &lr); err != nil {
		return err
	}
	if lr.StatusCode != http.StatusOK {
		details := lr.ErrorDetails
		if details == "" {
			details = "unknown error"
		}
		return fmt.Errorf("%w: %s", ErrCredentialsRejected, details)
	}
	if lr.SessionInfo.LoginToken == "" {
		return fmt.Errorf("%w: login response missing login_token", ErrMalformedResponse)
	}

	pc.loginToken = lr.SessionInfo.LoginToken
	return nil
}

// Step 4: user info fetch, yielding the signed user identifiers the consent
// page requires.
func (s *Session) stepUserInfo(ctx context.Context, pc *protocolContext) error {
	form := url.Values{
		"enabledProviders": {"*"},
		"APIKey":           {apiKey},
		"sdk":              {"js_latest"},
		"login_token":      {pc.loginToken},
		"authMode":         {"cookie"},
		"pageURL":          {pageURL},
		"gmid":             {pc.gmid},
		"ucid":             {pc.ucid},
		"sdkBuild":         {sdkBuild},
		"format":           {"json"},
	}

	var ui userInfoResponse
	if err := s.postForm(ctx, s.endpoints.Socialize+"/socialize.getUserInfo", form, &ui); err != nil {
		return err
	}
	if ui.UID == "" || ui.UIDSignature == "" || ui.SignatureTimestamp == "" {
		return fmt.Errorf("%w: getUserInfo missing user identifiers", ErrMalformedResponse)
	}

	pc.uid = ui.UID
	pc.uidSignature = ui.UIDSignature
	pc.signatureTimestamp = ui.SignatureTimestamp
	return nil
}

// Step 5: consent page scrape.
func (s *Session) stepConsent(ctx context.Context, pc *protocolContext) error {
	q := url.Values{
		"lang":               {s.creds.Language},
		"context":            {pc.context},
		"clientID":           {clientID},
		"UID":                {pc.uid},
		"UIDSignature":       {pc.uidSignature},
		"signatureTimestamp": {pc.signatureTimestamp},
	}
	// scope goes on the wire pre-joined with '+', outside Values.Encode.
	consentURL := s.endpoints.Consent + "/OIDCConsentPage.php?" + q.Encode() + "&scope=" + consentScope

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, consentURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", BrowserUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("consent page returned status %d", resp.StatusCode)
	}

	page, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading consent page: %w", err)
	}

	pc.consentSig, err = s.extractor.Extract(string(page))
	return err
}

// Step 6: authorization. Presents the signed consent object and yields the
// authorization code, again via an unfollowed redirect.
func (s *Session) stepAuthorize(ctx context.Context, pc *protocolContext) error {
	consent, err := json.Marshal(consentObject{
		Scope:    scope,
		ClientID: clientID,
		Context:  pc.context,
		UID:      pc.uid,
		Consent:  true,
	})
	if err != nil {
		return err
	}

	q := url.Values{
		"context":     {pc.context},
		"login_token": {pc.loginToken},
		"consent":     {string(consent)},
		"sig":         {pc.consentSig},
		"gmidTicket":  {pc.gmidTicket},
	}
	resp, err := s.getNoRedirect(ctx, s.brokerURL("/authorize/continue")+"?"+q.Encode())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	pc.code, err = locationParam(resp, "code")
	return err
}

// Step 7: exchange the authorization code for the identity token at the OIDC
// broker. This is a plain OAuth2 code exchange with client-secret basic auth,
// so it goes through oauth2.Config; the context-injected client pins the
// token-service User-Agent the broker requires.
func (s *Session) stepTokenExchange(ctx context.Context, pc *protocolContext) error {
	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Endpoint: oauth2.Endpoint{
			TokenURL:  s.brokerURL("/token"),
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	httpClient := &http.Client{
		Timeout:   s.client.Timeout,
		Transport: &userAgentTransport{agent: TokenUserAgent, base: s.client.Transport},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)

	tok, err := conf.Exchange(ctx, pc.code)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}
	if tok.AccessToken == "" {
		return fmt.Errorf("%w: token response missing access_token", ErrMalformedResponse)
	}

	pc.identityToken = tok.AccessToken
	return nil
}

// Step 8: exchange the identity token for the device-cloud token pair. The
// identity token authenticates against the broker only; the pair issued here
// is what the device REST API accepts.
func (s *Session) stepCloudSignIn(ctx context.Context, pc *protocolContext) error {
	form := url.Values{
		"app_id":     {appID},
		"app_secret": {appSecret},
		"token":      {pc.identityToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.endpoints.UserField+"/api/v1/token_sign_in", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", TokenUserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token_sign_in returned status %d", resp.StatusCode)
	}

	var signIn cloudSignInResponse
	if err := json.NewDecoder(resp.Body).Decode(&signIn); err != nil {
		return fmt.Errorf("%w: decoding token_sign_in response: %v", ErrMalformedResponse, err)
	}
	if signIn.AccessToken == "" {
		return fmt.Errorf("%w: token_sign_in missing access_token", ErrMalformedResponse)
	}

	pc.pair = &TokenPair{
		AccessToken:  signIn.AccessToken,
		RefreshToken: signIn.RefreshToken,
	}
	return nil
}

func (s *Session) brokerURL(path string) string {
	return s.endpoints.Broker + "/oidc/op/v1.0/" + apiKey + path
}

// getNoRedirect issues a browser-agent GET on a per-call client copy with
// redirect following disabled, so the Location header stays observable.
func (s *Session) getNoRedirect(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", BrowserUserAgent)

	client := *s.client
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return client.Do(req)
}

func (s *Session) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", BrowserUserAgent)
	return s.doJSON(req, out)
}

func (s *Session) postForm(ctx context.Context, rawURL string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", BrowserUserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.doJSON(req, out)
}

func (s *Session) doJSON(req *http.Request, out any) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s response: %v", ErrMalformedResponse, req.URL.Path, err)
	}
	return nil
}

// locationParam extracts a query parameter from an unfollowed redirect's
// Location header.
func locationParam(resp *http.Response, param string) (string, error) {
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", ErrNoRedirect
	}
	u, err := url.Parse(loc)
	if err != nil {
		return "", fmt.Errorf("%w: parsing redirect location: %v", ErrMalformedResponse, err)
	}
	value := u.Query().Get(param)
	if value == "" {
		return "", fmt.Errorf("%w: redirect missing %q parameter", ErrMalformedResponse, param)
	}
	return value, nil
}

// userAgentTransport pins a fixed User-Agent on every request it carries.
type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.agent)
	return base.RoundTrip(clone)
}
