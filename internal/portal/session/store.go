// Package session is the single source of truth for "is the user
// authenticated, and as whom". It persists the access token across restarts,
// injects it into every outgoing API call, and announces lifecycle changes
// (login, logout, auto-login, auto-logout) over the event bus.
package session

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/qualtrack/qualtrack/internal/common/httpclient"
	"github.com/qualtrack/qualtrack/internal/portal/config"
	"github.com/qualtrack/qualtrack/internal/portal/events"
	"github.com/qualtrack/qualtrack/internal/portal/roles"
)

// eventTimeout bounds event delivery so a stuck subscriber cannot block
// session operations.
const eventTimeout = 250 * time.Millisecond

// Store holds the active session. It implements httpclient.Configurator so
// the HTTP client always carries the current bearer token.
type Store struct {
	mu        sync.RWMutex
	cfg       *config.Config
	bus       *events.Bus
	client    *httpclient.HTTPClient
	token     string
	claims    *Claims
	envelopes EnvelopeStore

	realtime     <-chan events.Event
	realtimeStop func()
}

// NewStore creates a session store bound to the given configuration and
// event bus. The store's HTTP client reports 401 responses back into the
// store so an invalid credential force-logs-out exactly once.
func NewStore(cfg *config.Config, bus *events.Bus) *Store {
	s := &Store{
		cfg: cfg,
		bus: bus,
	}
	s.client = httpclient.NewClient(s, httpclient.ClientOptions{
		RequestTimeout: cfg.GetRequestTimeout(),
	})
	s.client.SetUnauthorizedHook(s.handleUnauthorized)
	return s
}

// Client returns the HTTP client carrying this session's credential.
func (s *Store) Client() *httpclient.HTTPClient {
	return s.client
}

// GetServerURL implements httpclient.Configurator.
func (s *Store) GetServerURL() string {
	return s.cfg.GetServerURL()
}

// GetToken implements httpclient.Configurator. An unauthenticated store
// returns the empty string so no Authorization header is sent.
func (s *Store) GetToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// GetTokenExpiry implements httpclient.Configurator.
func (s *Store) GetTokenExpiry() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.claims == nil {
		return time.Time{}
	}
	return s.claims.Expiry()
}

// Current returns the active role and claims, or false when the store is in
// the guest state.
func (s *Store) Current() (roles.Role, *Claims, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.claims == nil {
		return roles.Guest, nil, false
	}
	role, _ := roles.Parse(s.claims.Role)
	claims := *s.claims
	return role, &claims, true
}

// LearnerEnvelope returns the short-lived learner record, if one exists.
func (s *Store) LearnerEnvelope() (LearnerEnvelope, bool) {
	return s.envelopes.Get()
}

// Realtime returns the learner realtime channel, or nil when no learner
// session is active.
func (s *Store) Realtime() <-chan events.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.realtime
}

// Bootstrap restores a persisted session at process start. A missing token
// leaves the store in the guest state; an unexpired token establishes the
// session; an expired one is cleared from storage. Expiry is only ever
// checked here — mid-session expiry surfaces through the 401 interceptor.
func (s *Store) Bootstrap() error {
	token := s.cfg.GetToken()
	if token == "" {
		s.bus.Publish(events.TopicNoAccessToken, nil, eventTimeout)
		return nil
	}

	claims, err := DecodeToken(token)
	if err != nil {
		s.clearPersisted()
		s.bus.Publish(events.TopicAutoLogout, ReasonInvalidToken, eventTimeout)
		return err
	}

	if claims.Expired(time.Now()) {
		s.clearPersisted()
		s.bus.Publish(events.TopicAutoLogout, ReasonTokenExpired, eventTimeout)
		return ErrTokenExpired
	}

	s.establish(token, claims)
	s.bus.Publish(events.TopicAutoLogin, claims.UserID, eventTimeout)
	log.Debug().Str("user_id", claims.UserID).Str("role", claims.Role).Msg("session restored")
	return nil
}

// Credentials are the sign-in inputs.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult reports the outcome of a login attempt. When the account still
// has a mandatory password change outstanding, Established is false and
// PendingResetToken carries the credential the reset screen must present.
type LoginResult struct {
	Established       bool
	PendingResetToken string
	Role              roles.Role
	DisplayName       string
}

// Login authenticates against the portal. On success the session is
// established and persisted; learner sessions additionally get a learner
// envelope and a realtime channel keyed by user id. Accounts flagged
// password_changed=false do not get a session — the caller receives a
// pending-reset token and must complete the reset first.
func (s *Store) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	payload, err := json.Marshal(creds)
	if err != nil {
		return nil, ErrAuth.Err(err)
	}

	body, err := s.client.Post(ctx, "/user/login", payload)
	if err != nil {
		return nil, err
	}

	token := gjson.GetBytes(body, "data.accessToken").String()
	if token == "" {
		return nil, ErrAuth.Msg("login response did not include an access token")
	}

	claims, err := DecodeToken(token)
	if err != nil {
		return nil, err
	}

	if pc := gjson.GetBytes(body, "data.password_changed"); pc.Exists() && !pc.Bool() {
		log.Info().Str("user_id", claims.UserID).Msg("login deferred pending password reset")
		return &LoginResult{PendingResetToken: token}, nil
	}

	return s.finalizeLogin(token, claims)
}

// CompletePasswordReset finishes a deferred login. The pending token from
// Login authorizes the reset call; the fresh token in the response then
// establishes the session.
func (s *Store) CompletePasswordReset(ctx context.Context, pendingToken, newPassword string) (*LoginResult, error) {
	if pendingToken == "" {
		return nil, ErrResetRequired.Msg("no pending reset token")
	}

	payload, err := json.Marshal(map[string]string{"password": newPassword})
	if err != nil {
		return nil, ErrAuth.Err(err)
	}

	body, err := s.client.DoRequest(ctx, httpclient.RequestOptions{
		Method: http.MethodPost,
		Path:   "/user/resetpassword",
		Body:   payload,
		Token:  pendingToken,
	})
	if err != nil {
		return nil, err
	}

	token := gjson.GetBytes(body, "data.accessToken").String()
	if token == "" {
		token = pendingToken
	}
	claims, err := DecodeToken(token)
	if err != nil {
		return nil, err
	}

	return s.finalizeLogin(token, claims)
}

// ChangeRole re-issues the session token for another of the account's roles
// and replaces the session in place, without a full re-authentication.
func (s *Store) ChangeRole(ctx context.Context, role roles.Role) (*LoginResult, error) {
	if _, _, ok := s.Current(); !ok {
		return nil, ErrNoSession
	}

	payload, err := json.Marshal(map[string]string{"role": string(role)})
	if err != nil {
		return nil, ErrAuth.Err(err)
	}

	body, err := s.client.Post(ctx, "/user/changerole", payload)
	if err != nil {
		return nil, err
	}

	token := gjson.GetBytes(body, "data.accessToken").String()
	if token == "" {
		return nil, ErrAuth.Msg("changerole response did not include an access token")
	}
	claims, err := DecodeToken(token)
	if err != nil {
		return nil, err
	}

	return s.finalizeLogin(token, claims)
}

// Logout clears the persisted token, the learner envelope, and the realtime
// channel, and announces the logout.
func (s *Store) Logout() {
	s.teardown()
	s.bus.Publish(events.TopicLogout, nil, eventTimeout)
}

// finalizeLogin establishes the session, persists the token, and emits the
// login event. It is shared by Login, CompletePasswordReset, and ChangeRole.
func (s *Store) finalizeLogin(token string, claims *Claims) (*LoginResult, error) {
	role, ok := roles.Parse(claims.Role)
	if !ok {
		return nil, ErrInvalidToken.Msg("token carries an unknown role: " + claims.Role)
	}

	s.establish(token, claims)

	if err := s.cfg.SaveToken(token, claims.Expiry()); err != nil {
		log.Warn().Err(err).Msg("failed to persist access token")
	}

	result := &LoginResult{
		Established: true,
		Role:        role,
		DisplayName: claims.DisplayName(),
	}

	if role == roles.Learner {
		s.envelopes.Set(LearnerEnvelope{
			AccessToken: token,
			DisplayName: claims.DisplayName(),
		})
		s.openRealtime(claims.UserID)
	} else {
		// a role switch away from Learner drops the learner-only state
		s.envelopes.Clear()
		s.closeRealtime()
	}

	s.bus.Publish(events.TopicLogin, claims.UserID, eventTimeout)
	log.Info().Str("user_id", claims.UserID).Str("role", claims.Role).Msg("session established")
	return result, nil
}

// handleUnauthorized is the 401 interceptor target. Requests flagged as
// retries never reach here, so an invalid credential produces exactly one
// auto-logout emission.
func (s *Store) handleUnauthorized() {
	s.mu.RLock()
	hadSession := s.claims != nil
	s.mu.RUnlock()
	if !hadSession {
		return
	}

	s.teardown()
	s.bus.Publish(events.TopicAutoLogout, ReasonInvalidToken, eventTimeout)
	log.Warn().Msg("server rejected access token, session cleared")
}

func (s *Store) establish(token string, claims *Claims) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.claims = claims
}

func (s *Store) teardown() {
	s.mu.Lock()
	userID := ""
	if s.claims != nil {
		userID = s.claims.UserID
	}
	s.token = ""
	s.claims = nil
	s.realtime = nil
	stop := s.realtimeStop
	s.realtimeStop = nil
	s.mu.Unlock()

	s.envelopes.Clear()
	s.clearPersisted()
	if stop != nil {
		stop()
	}
	if userID != "" {
		s.bus.CloseTopic(events.RealtimeTopic(userID))
	}
}

func (s *Store) closeRealtime() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.realtimeStop != nil {
		s.realtimeStop()
		s.realtimeStop = nil
	}
	s.realtime = nil
}

func (s *Store) openRealtime(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.realtimeStop != nil {
		s.realtimeStop()
	}
	s.realtime, s.realtimeStop = s.bus.Subscribe(events.RealtimeTopic(userID), 16)
}

func (s *Store) clearPersisted() {
	if err := s.cfg.ClearToken(); err != nil {
		log.Warn().Err(err).Msg("failed to clear persisted token")
	}
}
