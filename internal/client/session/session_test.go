package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/atinyakov/folio/internal/client/fixtures"
	"github.com/atinyakov/folio/internal/client/storage"
	"github.com/atinyakov/folio/internal/client/transport"
	"github.com/atinyakov/folio/internal/models"
	"github.com/atinyakov/folio/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type routeRecorder struct{ routes []string }

func (r *routeRecorder) Navigate(route string) { r.routes = append(r.routes, route) }

func newMockSession(t *testing.T) (*Session, *storage.TokenStore, *routeRecorder) {
	t.Helper()
	tokens := storage.NewMemoryTokenStore()
	m := transport.NewMock(fixtures.MustLoad(), tokens, zap.NewNop(),
		transport.WithLatency(func() time.Duration { return 0 }))
	d := transport.NewDispatcher(m, nil, transport.Options{MockMode: true})
	nav := &routeRecorder{}
	return New(d, tokens, nav, zap.NewNop(), transport.MockUser), tokens, nav
}

func TestLogin_MockSuccessThenLogout(t *testing.T) {
	s, tokens, nav := newMockSession(t)

	res := s.Login(context.Background(), transport.MockEmail, transport.MockPassword)
	require.True(t, res.Success, res.Message)
	assert.Regexp(t, regexp.MustCompile(`^mock_\d+$`), tokens.Token())
	assert.True(t, s.IsAuthenticated())
	require.NotNil(t, s.CurrentUser())
	assert.Equal(t, transport.MockEmail, s.CurrentUser().Email)

	s.Logout(context.Background())
	assert.False(t, s.IsAuthenticated())
	assert.Nil(t, s.CurrentUser())
	assert.False(t, tokens.IsAuthenticated())
	assert.Equal(t, []string{transport.LoginRoute}, nav.routes)
}

func TestLogin_MockWrongPassword(t *testing.T) {
	s, tokens, _ := newMockSession(t)

	res := s.Login(context.Background(), transport.MockEmail, "wrong")
	assert.False(t, res.Success)
	assert.Equal(t, "Invalid credentials", res.Message)
	assert.Empty(t, tokens.Token())
	assert.False(t, s.IsAuthenticated())
}

type posterFunc func(ctx context.Context, ep resource.Endpoint, body any) (*models.Envelope, error)

func (f posterFunc) Post(ctx context.Context, ep resource.Endpoint, body any) (*models.Envelope, error) {
	return f(ctx, ep, body)
}

func TestLogin_ServerRejections(t *testing.T) {
	tests := []struct {
		name string
		env  *models.Envelope
		err  error
		want string
	}{
		{"envelope with message", &models.Envelope{Message: "Account locked"}, nil, "Account locked"},
		{"envelope without message", &models.Envelope{}, nil, loginFailed},
		{"api error", nil, &transport.APIError{Status: 422, Message: "email is required"}, "email is required"},
		{"network", nil, errors.New("dial tcp: refused"), "dial tcp: refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := posterFunc(func(context.Context, resource.Endpoint, any) (*models.Envelope, error) {
				return tt.env, tt.err
			})
			s := New(api, storage.NewMemoryTokenStore(), nil, zap.NewNop(), transport.MockUser)

			res := s.Login(context.Background(), "a@b.c", "x")
			assert.False(t, res.Success)
			assert.Equal(t, tt.want, res.Message)
			assert.False(t, s.IsAuthenticated())
		})
	}
}

func TestLogin_LivePersistsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"token":"abc","user":{"id":"7","name":"Ann","email":"ann@example.com","role":"admin"}}`))
	}))
	defer srv.Close()

	tokens := storage.NewMemoryTokenStore()
	live := transport.NewLive(srv.Client(), srv.URL+"/api", tokens, nil, zap.NewNop())
	s := New(transport.NewDispatcher(nil, live, transport.Options{}), tokens, nil, zap.NewNop(), transport.MockUser)

	res := s.Login(context.Background(), "ann@example.com", "secret")
	require.True(t, res.Success)
	assert.Equal(t, "abc", tokens.Token())
	assert.Equal(t, "7", s.CurrentUser().ID)
}

func TestLogout_BestEffort(t *testing.T) {
	tokens := storage.NewMemoryTokenStore()
	require.NoError(t, tokens.SetToken("t"))
	nav := &routeRecorder{}
	api := posterFunc(func(context.Context, resource.Endpoint, any) (*models.Envelope, error) {
		return nil, errors.New("offline")
	})
	s := New(api, tokens, nav, zap.NewNop(), transport.MockUser)
	require.True(t, s.Restore())

	s.Logout(context.Background())
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, tokens.Token())
	assert.Equal(t, []string{transport.LoginRoute}, nav.routes)
}

func TestRestore(t *testing.T) {
	tokens := storage.NewMemoryTokenStore()
	s := New(nil, tokens, nil, zap.NewNop(), transport.MockUser)

	assert.False(t, s.Restore())
	assert.Nil(t, s.CurrentUser())

	require.NoError(t, tokens.SetToken("mock_1"))
	assert.True(t, s.Restore())
	assert.Equal(t, transport.MockUser, *s.CurrentUser())
}
