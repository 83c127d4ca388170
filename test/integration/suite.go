// Package integration exercises the full protocol stack end to end: the
// authentication state machine and the device client run unmodified against
// a fake Gigya/Ayla upstream served from one chi router.
package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// Account accepted by the fake identity provider.
const (
	TestUsername = "integration@example.com"
	TestPassword = "s3cret-pass"

	TestDSN        = "AC000W000000042"
	testConsentSig = "fake-consent-signature"
)

// Datapoint is one recorded property write.
type Datapoint struct {
	DSN      string
	Property string
	Value    any
}

// Upstream is the fake cloud: identity provider, OIDC broker, consent page,
// user service and device REST API behind a single httptest server.
type Upstream struct {
	Server *httptest.Server

	mu           sync.Mutex
	tokenSerial  int
	accessToken  string
	refreshToken string
	expired      map[string]bool

	Logins     int
	Refreshes  int
	Datapoints []Datapoint

	properties map[string]any
}

// NewUpstream starts the fake cloud. It is shut down with the test.
func NewUpstream(t *testing.T) *Upstream {
	t.Helper()

	u := &Upstream{
		expired: make(map[string]bool),
		properties: map[string]any{
			"set_status":        float64(1),
			"set_device_mode":   float64(1),
			"set_temp_setpoint": 22.0,
			"ambient_temp":      26.5,
		},
	}

	r := chi.NewRouter()

	r.Get("/oidc/op/v1.0/{apiKey}/authorize", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Location", req.URL.Query().Get("redirect_uri")+"/?context=it-context")
		w.WriteHeader(http.StatusFound)
	})

	r.Get("/socialize.getIDs", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, map[string]string{
			"ucid":       "it-ucid",
			"gmid":       "it-gmid",
			"gmidTicket": "it-gmid-ticket",
		})
	})

	r.Post("/accounts.login", func(w http.ResponseWriter, req *http.Request) {
		if err := req.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.PostForm.Get("loginID") != TestUsername || req.PostForm.Get("password") != TestPassword {
			writeJSON(w, map[string]any{
				"statusCode":   403,
				"errorDetails": "invalid loginID or password",
			})
			return
		}
		u.mu.Lock()
		u.Logins++
		u.mu.Unlock()
		writeJSON(w, map[string]any{
			"statusCode":  200,
			"sessionInfo": map[string]string{"login_token": "it-login-token"},
		})
	})

	r.Post("/socialize.getUserInfo", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, map[string]string{
			"UID":                "it-uid",
			"UIDSignature":       "it-uid-sig",
			"signatureTimestamp": "1724400000",
		})
	})

	r.Get("/OIDCConsentPage.php", func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprintf(w, "<html><script>const consentObj2Sig = '%s';</script></html>", testConsentSig)
	})

	r.Get("/oidc/op/v1.0/{apiKey}/authorize/continue", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("sig") != testConsentSig {
			http.Error(w, "bad consent signature", http.StatusForbidden)
			return
		}
		w.Header().Set("Location", "https://google.it/?code=it-auth-code")
		w.WriteHeader(http.StatusFound)
	})

	r.Post("/oidc/op/v1.0/{apiKey}/token", func(w http.ResponseWriter, req *http.Request) {
		if err := req.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.PostForm.Get("code") != "it-auth-code" {
			http.Error(w, "bad code", http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]string{
			"access_token": "it-identity-token",
			"token_type":   "Bearer",
		})
	})

	r.Post("/api/v1/token_sign_in", func(w http.ResponseWriter, req *http.Request) {
		u.mu.Lock()
		access, refresh := u.issueTokens()
		u.mu.Unlock()
		writeJSON(w, map[string]string{
			"access_token":  access,
			"refresh_token": refresh,
		})
	})

	r.Post("/users/refresh_token.json", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			User struct {
				RefreshToken string `json:"refresh_token"`
			} `json:"user"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		u.mu.Lock()
		defer u.mu.Unlock()
		if body.User.RefreshToken != u.refreshToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		u.Refreshes++
		access, _ := u.issueTokens()
		// The response omits refresh_token: the old one stays valid.
		writeJSON(w, map[string]string{"access_token": access})
	})

	r.Get("/apiv1/devices.json", u.authenticated(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, []map[string]any{
			{"device": map[string]string{
				"dsn":          TestDSN,
				"oem_model":    "DL-AC100",
				"product_name": "Pinguino Care",
				"model":        "PAC EX100",
				"sw_version":   "1.4.2",
			}},
		})
	}))

	r.Get("/apiv1/dsns/{dsn}/properties.json", u.authenticated(func(w http.ResponseWriter, req *http.Request) {
		u.mu.Lock()
		defer u.mu.Unlock()
		list := make([]map[string]any, 0, len(u.properties))
		for name, value := range u.properties {
			list = append(list, map[string]any{
				"property": map[string]any{"name": name, "value": value},
			})
		}
		writeJSON(w, list)
	}))

	r.Post("/apiv1/dsns/{dsn}/properties/{name}/datapoints.json", u.authenticated(func(w http.ResponseWriter, req *http.Request) {
		var dp struct {
			Datapoint struct {
				Value any `json:"value"`
			} `json:"datapoint"`
		}
		if err := json.NewDecoder(req.Body).Decode(&dp); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		name := chi.URLParam(req, "name")
		u.mu.Lock()
		u.Datapoints = append(u.Datapoints, Datapoint{
			DSN:      chi.URLParam(req, "dsn"),
			Property: name,
			Value:    dp.Datapoint.Value,
		})
		u.properties[name] = dp.Datapoint.Value
		u.mu.Unlock()

		writeJSON(w, map[string]any{"datapoint": dp.Datapoint})
	}))

	u.Server = httptest.NewServer(r)
	t.Cleanup(u.Server.Close)
	return u
}

// issueTokens mints a fresh access token; callers hold the lock. The refresh
// token is minted once per account session, as the real cloud does.
func (u *Upstream) issueTokens() (access, refresh string) {
	u.tokenSerial++
	u.accessToken = fmt.Sprintf("cloud-access-%d", u.tokenSerial)
	if u.refreshToken == "" {
		u.refreshToken = fmt.Sprintf("cloud-refresh-%d", u.tokenSerial)
	}
	return u.accessToken, u.refreshToken
}

// ExpireAccessToken makes the current access token start earning 401s, the
// way a token ages out in production.
func (u *Upstream) ExpireAccessToken() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.expired[u.accessToken] = true
}

func (u *Upstream) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		presented := trimScheme(req.Header.Get("Authorization"))

		u.mu.Lock()
		ok := presented == u.accessToken && !u.expired[presented]
		u.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, req)
	}
}

func trimScheme(header string) string {
	const prefix = "auth_token "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return header
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(err)
	}
}
