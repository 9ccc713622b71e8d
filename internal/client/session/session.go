// Package session holds the admin authentication state on top of the
// token store.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/atinyakov/folio/internal/client/storage"
	"github.com/atinyakov/folio/internal/client/transport"
	"github.com/atinyakov/folio/internal/models"
	"github.com/atinyakov/folio/internal/resource"
	"go.uber.org/zap"
)

// loginFailed is reported when the server rejects a login without a message.
const loginFailed = "Login failed"

// Poster is the write side of the dispatcher.
type Poster interface {
	Post(ctx context.Context, ep resource.Endpoint, body any) (*models.Envelope, error)
}

// Result is the outcome of a login attempt.
type Result struct {
	Success bool
	Message string
}

// Session tracks the signed-in user. The token itself lives in the token
// store; the user is only held in memory.
type Session struct {
	api      Poster
	tokens   *storage.TokenStore
	nav      transport.Navigator
	log      *zap.Logger
	fallback models.User

	mu   sync.RWMutex
	user *models.User
}

// New returns a signed-out session. fallback is the user assumed by Restore.
func New(api Poster, tokens *storage.TokenStore, nav transport.Navigator, log *zap.Logger, fallback models.User) *Session {
	if nav == nil {
		nav = transport.NavigatorFunc(func(string) {})
	}
	return &Session{api: api, tokens: tokens, nav: nav, log: log, fallback: fallback}
}

// Login posts the credentials. On success the returned token is persisted
// and the user is kept in memory. Failures are reported in the Result, not
// as an error.
func (s *Session) Login(ctx context.Context, email, password string) Result {
	env, err := s.api.Post(ctx, resource.Action(resource.Auth, resource.ActionLogin),
		models.Credentials{Email: email, Password: password})
	if err != nil {
		s.log.Info("login rejected", zap.String("email", email), zap.Error(err))
		var apiErr *transport.APIError
		if errors.As(err, &apiErr) {
			return Result{Message: apiErr.Message}
		}
		return Result{Message: err.Error()}
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = loginFailed
		}
		return Result{Message: msg}
	}

	if env.Token != "" {
		if err := s.tokens.SetToken(env.Token); err != nil {
			s.log.Error("persist token", zap.Error(err))
			return Result{Message: err.Error()}
		}
	}

	user := s.fallback
	if env.User != nil {
		user = *env.User
	}
	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()

	s.log.Info("logged in", zap.String("email", user.Email))
	return Result{Success: true}
}

// Logout notifies the server, then clears the token and user and sends the
// UI to the login route regardless of the server's answer.
func (s *Session) Logout(ctx context.Context) {
	if _, err := s.api.Post(ctx, resource.Action(resource.Auth, resource.ActionLogout), nil); err != nil {
		s.log.Warn("logout request failed", zap.Error(err))
	}
	if err := s.tokens.ClearToken(); err != nil {
		s.log.Warn("clear token", zap.Error(err))
	}
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
	s.nav.Navigate(transport.LoginRoute)
}

// Restore rebuilds the session from a persisted token. The server offers no
// "current user" endpoint, so the fallback user is assumed.
func (s *Session) Restore() bool {
	if !s.tokens.IsAuthenticated() {
		return false
	}
	user := s.fallback
	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()
	return true
}

// CurrentUser returns the signed-in user, or nil.
func (s *Session) CurrentUser() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// IsAuthenticated reports whether a user is signed in.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}
