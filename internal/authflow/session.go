package authflow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

// State is the session's position in its lifecycle.
type State int

const (
	// StateUnauthenticated means no login has completed yet.
	StateUnauthenticated State = iota
	// StateAuthenticated means the session holds a usable token pair.
	StateAuthenticated
	// StateFailed means the last login or refresh attempt failed; LastError
	// holds the cause. A later Login may still succeed.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	default:
		return "unauthenticated"
	}
}

// Session drives the eight-step login protocol and owns the resulting token
// pair. One credential set drives one session; the session does no internal
// locking, so concurrent callers must serialize Login/Refresh themselves.
type Session struct {
	creds     Credentials
	client    *http.Client
	endpoints Endpoints
	logger    *zap.Logger
	extractor ConsentSignatureExtractor
	store     Store
	now       func() time.Time

	state   State
	pair    *TokenPair
	lastErr error
}

// NewSession creates a session for one credential set.
func NewSession(creds Credentials, opts ...Option) *Session {
	s := &Session{
		creds:     creds,
		client:    &http.Client{Timeout: defaultTimeout},
		endpoints: DefaultEndpoints(),
		logger:    zap.NewNop(),
		extractor: markerExtractor{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the session's current lifecycle state.
func (s *Session) State() State { return s.state }

// LastError returns the error that moved the session into StateFailed, or nil.
func (s *Session) LastError() error { return s.lastErr }

// Token returns a copy of the current token pair, or nil when the session is
// not authenticated.
func (s *Session) Token() *TokenPair {
	if s.pair == nil {
		return nil
	}
	pair := *s.pair
	return &pair
}

// Restore adopts a token pair persisted by a previous run, if a store is
// configured and holds one. A restored pair may of course be expired; the
// first 401 on a device call then drives the normal refresh path.
func (s *Session) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	pair, err := s.store.LoadTokenPair(ctx, s.creds.Username)
	if err != nil {
		return fmt.Errorf("restoring token pair: %w", err)
	}
	if pair == nil || pair.AccessToken == "" {
		return nil
	}
	s.pair = pair
	s.state = StateAuthenticated
	s.lastErr = nil
	s.logger.Info("restored persisted session")
	return nil
}

// AccessToken returns the current access token, running the full login
// protocol first if the session holds none. The device client reads the token
// through this method immediately before building each request, so a refresh
// raced in between is always picked up.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	if s.state == StateAuthenticated && s.pair != nil && s.pair.AccessToken != "" {
		return s.pair.AccessToken, nil
	}
	pair, err := s.Login(ctx)
	if err != nil {
		return "", err
	}
	return pair.AccessToken, nil
}

// Login runs the full eight-step protocol once, atomically: either a complete
// token pair is produced or the attempt fails as a whole and every
// intermediate value is discarded. The returned error identifies the failing
// stage; the caller may retry from step 1.
func (s *Session) Login(ctx context.Context) (*TokenPair, error) {
	pc := &protocolContext{}

	steps := []struct {
		stage Stage
		run   func(context.Context, *protocolContext) error
	}{
		{StageBootstrap, s.stepBootstrap},
		{StageSession, s.stepSessionIDs},
		{StageLogin, s.stepLogin},
		{StageUserInfo, s.stepUserInfo},
		{StageConsent, s.stepConsent},
		{StageAuthorize, s.stepAuthorize},
		{StageToken, s.stepTokenExchange},
		{StageCloud, s.stepCloudSignIn},
	}

	for _, step := range steps {
		if err := step.run(ctx, pc); err != nil {
			authErr := stageErr(step.stage, err)
			s.state = StateFailed
			s.lastErr = authErr
			s.logger.Warn("login attempt failed",
				zap.String("stage", string(step.stage)),
				zap.Error(err))
			return nil, authErr
		}
	}

	s.pair = pc.pair
	s.state = StateAuthenticated
	s.lastErr = nil
	s.persist(ctx)
	s.logger.Info("login complete")
	return s.Token(), nil
}

// Refresh exchanges the held refresh token for a new access token. With no
// refresh token held, or on any refresh failure, it falls back to a full
// Login: a slow re-auth beats handing the caller a broken session.
func (s *Session) Refresh(ctx context.Context) (*TokenPair, error) {
	if s.pair == nil || s.pair.RefreshToken == "" {
		return s.Login(ctx)
	}

	body, err := json.Marshal(map[string]any{
		"user": map[string]string{"refresh_token": s.pair.RefreshToken},
	})
	if err != nil {
		return nil, stageErr(StageRefresh, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.endpoints.UserField+"/users/refresh_token.json", strings.NewReader(string(body)))
	if err != nil {
		return nil, stageErr(StageRefresh, err)
	}
	req.Header.Set("User-Agent", TokenUserAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("token refresh failed, falling back to login", zap.Error(err))
		return s.Login(ctx)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("token refresh rejected, falling back to login",
			zap.Int("status", resp.StatusCode))
		return s.Login(ctx)
	}

	var rr refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil || rr.AccessToken == "" {
		s.logger.Warn("token refresh returned unusable response, falling back to login",
			zap.Error(err))
		return s.Login(ctx)
	}

	s.pair.AccessToken = rr.AccessToken
	if rr.RefreshToken != "" {
		// The old refresh token stays valid unless the server issues a
		// replacement.
		s.pair.RefreshToken = rr.RefreshToken
	}
	s.state = StateAuthenticated
	s.lastErr = nil
	s.persist(ctx)
	s.logger.Debug("token refreshed")
	return s.Token(), nil
}

func (s *Session) persist(ctx context.Context) {
	if s.store == nil || s.pair == nil {
		return
	}
	if err := s.store.SaveTokenPair(ctx, s.creds.Username, s.pair); err != nil {
		// Persistence is best effort; the in-memory pair stays authoritative.
		s.logger.Warn("persisting token pair failed", zap.Error(err))
	}
}
