package devicecloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hvackit/comfort-cloud/internal/authflow"
)

const testDSN = "AC000W000000001"

// mockTokenSource satisfies TokenSource without running the login protocol.
type mockTokenSource struct {
	token        string
	tokenErr     error
	refreshedTo  string
	refreshErr   error
	refreshCalls int
}

func (m *mockTokenSource) AccessToken(context.Context) (string, error) {
	return m.token, m.tokenErr
}

func (m *mockTokenSource) Refresh(context.Context) (*authflow.TokenPair, error) {
	m.refreshCalls++
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	m.token = m.refreshedTo
	return &authflow.TokenPair{AccessToken: m.refreshedTo}, nil
}

func newTestClient(t *testing.T, auth TokenSource, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(auth, WithBaseURL(srv.URL))
}

func TestListDevices(t *testing.T) {
	auth := &mockTokenSource{token: "tok-1"}
	var gotAuth, gotUA string

	client := newTestClient(t, auth, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/apiv1/devices.json" {
			t.Errorf("path = %q, want /apiv1/devices.json", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, `[
			{"device": {"dsn": "AC000W000000001", "oem_model": "DL-AC100", "product_name": "Pinguino", "model": "PAC EL92", "sw_version": "1.3.0"}},
			{"device": {"dsn": "AC000W000000002", "oem_model": "DL-heater", "product_name": "Capsule", "model": "HFX-85", "sw_version": "2.0.1"}}
		]`)
	})

	devices, err := client.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("ListDevices failed: %v", err)
	}

	want := []Device{
		{DSN: "AC000W000000001", OEMModel: "DL-AC100", ProductName: "Pinguino", Model: "PAC EL92", SWVersion: "1.3.0"},
		{DSN: "AC000W000000002", OEMModel: "DL-heater", ProductName: "Capsule", Model: "HFX-85", SWVersion: "2.0.1"},
	}
	if diff := cmp.Diff(want, devices); diff != "" {
		t.Errorf("device list mismatch (-want +got):\n%s", diff)
	}

	if gotAuth != "auth_token tok-1" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "auth_token tok-1")
	}
	if gotUA != authflow.APIUserAgent {
		t.Errorf("User-Agent = %q, want API agent", gotUA)
	}
}

func TestListDevicesEmptyAccount(t *testing.T) {
	auth := &mockTokenSource{token: "tok-1"}
	client := newTestClient(t, auth, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})

	devices, err := client.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("ListDevices failed: %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("got %d devices, want 0", len(devices))
	}
}

func TestListDevicesServerError(t *testing.T) {
	auth := &mockTokenSource{token: "tok-1"}
	client := newTestClient(t, auth, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	// Failure is an explicit error, never an empty list.
	if _, err := client.ListDevices(context.Background()); err == nil {
		t.Fatal("expected error, got nil")
	}
	if auth.refreshCalls != 0 {
		t.Errorf("refresh called %d times on a non-401 failure", auth.refreshCalls)
	}
}

func TestGetProperties(t *testing.T) {
	auth := &mockTokenSource{token: "tok-1"}
	client := newTestClient(t, auth, func(w http.ResponseWriter, r *http.Request) {
		wantPath := "/apiv1/dsns/" + testDSN + "/properties.json"
		if r.URL.Path != wantPath {
			t.Errorf("path = %q, want %q", r.URL.Path, wantPath)
		}
		fmt.Fprint(w, `[
			{"property": {"name": "set_temp_setpoint", "base_type": "decimal", "value": 24.5}},
			{"property": {"name": "set_status", "base_type": "integer", "value": 1}},
			{"property": {"name": "product_name", "base_type": "string", "value": "Pinguino"}}
		]`)
	})

	props, err := client.GetProperties(context.Background(), testDSN)
	if err != nil {
		t.Fatalf("GetProperties failed: %v", err)
	}

	want := []Property{
		{Name: "set_temp_setpoint", BaseType: "decimal", Value: 24.5},
		{Name: "set_status", BaseType: "integer", Value: float64(1)},
		{Name: "product_name", BaseType: "string", Value: "Pinguino"},
	}
	if diff := cmp.Diff(want, props); diff != "" {
		t.Errorf("property list mismatch (-want +got):\n%s", diff)
	}

	snap := Snapshot(props)
	if got := snap["set_temp_setpoint"]; got != 24.5 {
		t.Errorf("snapshot temp = %v, want 24.5", got)
	}
	if _, ok := PropertyValue(props, "missing"); ok {
		t.Error("PropertyValue found a property that does not exist")
	}
}

func TestAuthRetryRecoversFromExpiredToken(t *testing.T) {
	auth := &mockTokenSource{token: "stale", refreshedTo: "fresh"}
	var seenTokens []string

	client := newTestClient(t, auth, func(w http.ResponseWriter, r *http.Request) {
		seenTokens = append(seenTokens, r.Header.Get("Authorization"))
		if r.Header.Get("Authorization") != "auth_token fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `[]`)
	})

	if _, err := client.ListDevices(context.Background()); err != nil {
		t.Fatalf("ListDevices failed after retry: %v", err)
	}

	if auth.refreshCalls != 1 {
		t.Errorf("refresh called %d times, want exactly 1", auth.refreshCalls)
	}
	wantTokens := []string{"auth_token stale", "auth_token fresh"}
	if diff := cmp.Diff(wantTokens, seenTokens); diff != "" {
		t.Errorf("token sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestAuthRetryGivesUpAfterSecond401(t *testing.T) {
	auth := &mockTokenSource{token: "stale", refreshedTo: "still-bad"}
	var requests int

	client := newTestClient(t, auth, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.ListDevices(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}

	// One refresh, one retry, no loop.
	if auth.refreshCalls != 1 {
		t.Errorf("refresh called %d times, want exactly 1", auth.refreshCalls)
	}
	if requests != 2 {
		t.Errorf("server saw %d requests, want 2", requests)
	}
}

func TestAuthRetryFailedRefresh(t *testing.T) {
	auth := &mockTokenSource{token: "stale", refreshErr: errors.New("auth backend down")}
	var requests int

	client := newTestClient(t, auth, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusUnauthorized)
	})

	if _, err := client.ListDevices(context.Background()); err == nil {
		t.Fatal("expected error, got nil")
	}
	if requests != 1 {
		t.Errorf("server saw %d requests, want 1 (no retry without a new token)", requests)
	}
	if auth.refreshCalls != 1 {
		t.Errorf("refresh called %d times, want 1", auth.refreshCalls)
	}
}

func TestSetProperty(t *testing.T) {
	auth := &mockTokenSource{token: "tok-1"}
	var gotPath, gotBody, gotContentType string

	client := newTestClient(t, auth, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		fmt.Fprint(w, `{}`)
	})

	if ok := client.SetProperty(context.Background(), testDSN, "set_temp_setpoint", 24.5); !ok {
		t.Fatal("SetProperty returned false, want true")
	}

	wantPath := "/apiv1/dsns/" + testDSN + "/properties/set_temp_setpoint/datapoints.json"
	if gotPath != wantPath {
		t.Errorf("path = %q, want %q", gotPath, wantPath)
	}
	if gotBody != `{"datapoint":{"value":24.5}}` {
		t.Errorf("body = %q, want %q", gotBody, `{"datapoint":{"value":24.5}}`)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
}

func TestSetPropertyFailureReturnsFalse(t *testing.T) {
	auth := &mockTokenSource{token: "tok-1"}
	client := newTestClient(t, auth, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if ok := client.SetProperty(context.Background(), testDSN, "set_status", 1); ok {
		t.Fatal("SetProperty returned true on server error")
	}
}

func TestSetPropertyRetriesBodyAfterRefresh(t *testing.T) {
	auth := &mockTokenSource{token: "stale", refreshedTo: "fresh"}
	var bodies []string

	client := newTestClient(t, auth, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(body))
		if r.Header.Get("Authorization") != "auth_token fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{}`)
	})

	if ok := client.SetProperty(context.Background(), testDSN, "set_status", 2); !ok {
		t.Fatal("SetProperty returned false, want true")
	}

	// The retried request carries the identical body.
	want := []string{`{"datapoint":{"value":2}}`, `{"datapoint":{"value":2}}`}
	if diff := cmp.Diff(want, bodies); diff != "" {
		t.Errorf("request bodies mismatch (-want +got):\n%s", diff)
	}
}
