// Package devicecloud is the authenticated REST client for the Ayla device
// cloud behind the De'Longhi Comfort app: device listing, property reads and
// datapoint writes, with a single refresh-and-retry on an expired token.
package devicecloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hvackit/comfort-cloud/internal/authflow"
)

const (
	defaultBaseURL = "https://ads-eu.aylanetworks.com"
	defaultTimeout = 30 * time.Second

	// The cloud uses its own authorization scheme, not Bearer.
	authScheme = "auth_token"
)

// ErrUnauthorized indicates the cloud rejected the access token even after a
// successful refresh; the session itself is likely broken.
var ErrUnauthorized = errors.New("device cloud rejected the access token after refresh")

// TokenSource supplies the access token for each request and renews it on
// demand. Satisfied by *authflow.Session. Tokens are read through it
// immediately before building headers, never cached in the client, so a
// refresh raced by a concurrent caller is always picked up.
type TokenSource interface {
	// AccessToken returns the current token, logging in first if needed.
	AccessToken(ctx context.Context) (string, error)

	// Refresh renews the token pair after an observed 401.
	Refresh(ctx context.Context) (*authflow.TokenPair, error)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

// WithBaseURL overrides the device cloud base URL. Tests point it at an
// httptest server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client reads and mutates remote device state.
type Client struct {
	auth    TokenSource
	http    *http.Client
	baseURL string
	logger  *zap.Logger
}

// NewClient creates a device cloud client on top of an authenticated session.
func NewClient(auth TokenSource, opts ...Option) *Client {
	c := &Client{
		auth:    auth,
		http:    &http.Client{Timeout: defaultTimeout},
		baseURL: defaultBaseURL,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListDevices returns every device registered to the account. An empty slice
// with a nil error means the account genuinely has no devices; failures are
// reported as errors rather than conflated with that case.
func (c *Client) ListDevices(ctx context.Context) ([]Device, error) {
	body, err := c.do(ctx, http.MethodGet, "/apiv1/devices.json", nil)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	var envelopes []deviceEnvelope
	if err := json.Unmarshal(body, &envelopes); err != nil {
		return nil, fmt.Errorf("decoding device listing: %w", err)
	}

	devices := make([]Device, 0, len(envelopes))
	for _, e := range envelopes {
		devices = append(devices, e.Device)
	}
	return devices, nil
}

// GetProperties returns the current property listing for one device.
func (c *Client) GetProperties(ctx context.Context, dsn string) ([]Property, error) {
	body, err := c.do(ctx, http.MethodGet, "/apiv1/dsns/"+dsn+"/properties.json", nil)
	if err != nil {
		return nil, fmt.Errorf("getting properties for %s: %w", dsn, err)
	}

	var envelopes []propertyEnvelope
	if err := json.Unmarshal(body, &envelopes); err != nil {
		return nil, fmt.Errorf("decoding property listing for %s: %w", dsn, err)
	}

	props := make([]Property, 0, len(envelopes))
	for _, e := range envelopes {
		props = append(props, e.Property)
	}
	return props, nil
}

// SetProperty writes a single datapoint to the named property and reports
// whether the cloud accepted it. It never returns an error: failures are
// logged with enough context to diagnose and the caller decides whether to
// alert the user.
func (c *Client) SetProperty(ctx context.Context, dsn, name string, value any) bool {
	path := "/apiv1/dsns/" + dsn + "/properties/" + name + "/datapoints.json"
	payload := datapointRequest{Datapoint: datapointValue{Value: value}}

	if _, err := c.do(ctx, http.MethodPost, path, payload); err != nil {
		c.logger.Warn("setting property failed",
			zap.String("dsn", dsn),
			zap.String("property", name),
			zap.Error(err))
		return false
	}
	return true
}

// do issues one authenticated request with the uniform retry policy: a 401
// triggers exactly one refresh and one retry; a second 401 fails the call.
// This bounds retry storms against an unreachable auth backend.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
	}

	token, err := c.auth.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtaining access token: %w", err)
	}

	data, status, err := c.send(ctx, method, path, body, token)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		pair, err := c.auth.Refresh(ctx)
		if err != nil {
			return nil, fmt.Errorf("refreshing expired token: %w", err)
		}
		if data, status, err = c.send(ctx, method, path, body, pair.AccessToken); err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
	}

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%s %s returned status %d", method, path, status)
	}
	return data, nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, token string) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", authflow.APIUserAgent)
	req.Header.Set("Authorization", authScheme+" "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("reading response body: %w", err)
	}
	return data, resp.StatusCode, nil
}
