package authflow

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

const (
	testContext      = "ctx-7f3a"
	testUCID         = "ucid-1"
	testGMID         = "gmid-1"
	testGMIDTicket   = "gmid-ticket-1"
	testLoginToken   = "lt-abc"
	testUID          = "uid-42"
	testUIDSignature = "uid-sig"
	testSigTimestamp = "1724400000"
	testConsentSig   = "consent-sig-xyz"
	testAuthCode     = "code-9d1"
	testIdentityTok  = "identity-token-1"
	testAccessTok    = "ayla-access-1"
	testRefreshTok   = "ayla-refresh-1"
)

// fakeUpstream stands in for all five upstream services at once: every base
// URL points at the same httptest server and the paths keep the endpoints
// apart. Knobs flip individual steps into their failure modes.
type fakeUpstream struct {
	srv   *httptest.Server
	calls map[string]int

	// step 1
	omitRedirect bool

	// step 3
	loginStatusCode   int
	loginErrorDetails string

	// step 5
	consentHTML string

	// refresh endpoint
	refreshStatus       int
	refreshAccessToken  string
	refreshRefreshToken string

	// captured for assertions
	userAgents map[string]string
	tokenForm  url.Values
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()

	f := &fakeUpstream{
		calls:           make(map[string]int),
		userAgents:      make(map[string]string),
		loginStatusCode: http.StatusOK,
		consentHTML: `<html><script>
			const consentObj2 = {};
			const consentObj2Sig = '` + testConsentSig + `';
			</script></html>`,
		refreshStatus:      http.StatusOK,
		refreshAccessToken: "refreshed-access",
	}

	mux := http.NewServeMux()

	brokerBase := "/oidc/op/v1.0/" + apiKey

	mux.HandleFunc(brokerBase+"/authorize", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if f.omitRedirect {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Location", redirectURI+"/?context="+testContext)
		w.WriteHeader(http.StatusFound)
	})

	mux.HandleFunc("/socialize.getIDs", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, map[string]string{
			"ucid":       testUCID,
			"gmid":       testGMID,
			"gmidTicket": testGMIDTicket,
		})
	})

	mux.HandleFunc("/accounts.login", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{
			"statusCode":   f.loginStatusCode,
			"errorDetails": f.loginErrorDetails,
			"sessionInfo":  map[string]string{"login_token": testLoginToken},
		})
	})

	mux.HandleFunc("/socialize.getUserInfo", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, map[string]string{
			"UID":                testUID,
			"UIDSignature":       testUIDSignature,
			"signatureTimestamp": testSigTimestamp,
		})
	})

	mux.HandleFunc("/OIDCConsentPage.php", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		fmt.Fprint(w, f.consentHTML)
	})

	mux.HandleFunc(brokerBase+"/authorize/continue", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.Header().Set("Location", redirectURI+"/?code="+testAuthCode)
		w.WriteHeader(http.StatusFound)
	})

	mux.HandleFunc(brokerBase+"/token", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.tokenForm = r.PostForm
		writeJSON(w, map[string]any{
			"access_token": testIdentityTok,
			"token_type":   "Bearer",
		})
	})

	mux.HandleFunc("/api/v1/token_sign_in", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, map[string]string{
			"access_token":  testAccessTok,
			"refresh_token": testRefreshTok,
		})
	})

	mux.HandleFunc("/users/refresh_token.json", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if f.refreshStatus != http.StatusOK {
			w.WriteHeader(f.refreshStatus)
			return
		}
		body := map[string]string{"access_token": f.refreshAccessToken}
		if f.refreshRefreshToken != "" {
			body["refresh_token"] = f.refreshRefreshToken
		}
		writeJSON(w, body)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeUpstream) record(r *http.Request) {
	f.calls[r.URL.Path]++
	f.userAgents[r.URL.Path] = r.Header.Get("User-Agent")
}

func (f *fakeUpstream) count(path string) int {
	return f.calls[path]
}

func (f *fakeUpstream) endpoints() Endpoints {
	return Endpoints{
		Broker:    f.srv.URL,
		Socialize: f.srv.URL,
		Accounts:  f.srv.URL,
		Consent:   f.srv.URL,
		UserField: f.srv.URL,
	}
}

func (f *fakeUpstream) session(opts ...Option) *Session {
	creds := Credentials{Username: "user@example.com", Password: "hunter2", Language: "en"}
	opts = append([]Option{WithEndpoints(f.endpoints())}, opts...)
	return NewSession(creds, opts...)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(err)
	}
}
