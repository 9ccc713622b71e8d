package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/atinyakov/folio/internal/client/fixtures"
	"github.com/atinyakov/folio/internal/client/storage"
	"github.com/atinyakov/folio/internal/models"
	"github.com/atinyakov/folio/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func noDelay() time.Duration { return 0 }

func newTestMock(t *testing.T, opts ...MockOption) (*Mock, *storage.TokenStore) {
	t.Helper()
	tokens := storage.NewMemoryTokenStore()
	opts = append([]MockOption{WithLatency(noDelay)}, opts...)
	return NewMock(fixtures.MustLoad(), tokens, zap.NewNop(), opts...), tokens
}

func TestUniformLatency_Bounds(t *testing.T) {
	next := UniformLatency(MinLatency, MaxLatency)
	for i := 0; i < 10000; i++ {
		d := next()
		require.GreaterOrEqual(t, d, MinLatency)
		require.Less(t, d, MaxLatency)
	}
	assert.Equal(t, MinLatency, UniformLatency(MinLatency, MinLatency)())
}

func TestMock_DefaultLatencyNeverEarly(t *testing.T) {
	m := NewMock(fixtures.MustLoad(), storage.NewMemoryTokenStore(), zap.NewNop())

	start := time.Now()
	_, err := m.Serve(context.Background(), Request{Endpoint: resource.At(resource.Profile), Method: http.MethodGet})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, MinLatency)
}

func TestMock_WaitHonoursCancel(t *testing.T) {
	m, _ := newTestMock(t, WithLatency(func() time.Duration { return time.Hour }))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Serve(ctx, Request{Endpoint: resource.At(resource.Profile), Method: http.MethodGet})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMock_LoginSuccess(t *testing.T) {
	m, tokens := newTestMock(t, WithClock(func() time.Time { return time.UnixMilli(1700000000123) }))

	env, err := m.Serve(context.Background(), Request{
		Endpoint: resource.Action(resource.Auth, resource.ActionLogin),
		Method:   http.MethodPost,
		Body:     models.Credentials{Email: MockEmail, Password: MockPassword},
	})
	require.NoError(t, err)
	assert.True(t, env.Success)
	assert.Equal(t, "mock_1700000000123", env.Token)
	assert.Regexp(t, regexp.MustCompile(`^mock_\d+$`), env.Token)
	require.NotNil(t, env.User)
	assert.Equal(t, "admin", env.User.Role)

	assert.True(t, tokens.IsAuthenticated())
	assert.Equal(t, env.Token, tokens.Token())
}

func TestMock_LoginRejected(t *testing.T) {
	cases := []struct {
		name string
		body any
	}{
		{"wrong password", models.Credentials{Email: MockEmail, Password: "nope"}},
		{"wrong email", map[string]string{"email": "x@example.com", "password": MockPassword}},
		{"no body", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, tokens := newTestMock(t)
			_, err := m.Serve(context.Background(), Request{
				Endpoint: resource.Action(resource.Auth, resource.ActionLogin),
				Method:   http.MethodPost,
				Body:     tc.body,
			})
			require.ErrorIs(t, err, ErrInvalidCredentials)
			assert.Equal(t, "Invalid credentials", err.Error())
			assert.False(t, tokens.IsAuthenticated())
		})
	}
}

func TestMock_Logout(t *testing.T) {
	m, tokens := newTestMock(t)
	require.NoError(t, tokens.SetToken("mock_1"))

	env, err := m.Serve(context.Background(), Request{
		Endpoint: resource.Action(resource.Auth, resource.ActionLogout),
		Method:   http.MethodPost,
	})
	require.NoError(t, err)
	assert.True(t, env.Success)
	assert.False(t, tokens.IsAuthenticated())
}

func TestMock_GetFixtures(t *testing.T) {
	m, _ := newTestMock(t)
	fx := fixtures.MustLoad()

	for _, r := range []resource.Resource{
		resource.Profile, resource.Resume, resource.Education, resource.Experience,
		resource.Skills, resource.Portfolio, resource.Blog, resource.Messages,
		resource.Services, resource.Testimonials, resource.Clients, resource.Settings,
		resource.Certificates, resource.Team,
	} {
		t.Run(r.String(), func(t *testing.T) {
			env, err := m.Serve(context.Background(), Request{Endpoint: resource.At(r), Method: http.MethodGet})
			require.NoError(t, err)
			want, _ := fx.Lookup(r)
			assert.JSONEq(t, string(want), string(env.Data))
		})
	}
}

func TestMock_GetSingleItem(t *testing.T) {
	m, _ := newTestMock(t)

	env, err := m.Serve(context.Background(), Request{Endpoint: resource.Record(resource.Experience, "99"), Method: http.MethodGet})
	require.NoError(t, err)

	var item models.Item
	require.NoError(t, env.Decode(&item))
	assert.Equal(t, "1", item.ID)
}

func TestMock_GetNotFound(t *testing.T) {
	m, _ := newTestMock(t)

	for _, ep := range []resource.Endpoint{
		resource.At(resource.Contact),
		resource.Action(resource.Profile, resource.ActionUpdate),
		resource.Record(resource.Profile, "1"),
	} {
		_, err := m.Serve(context.Background(), Request{Endpoint: ep, Method: http.MethodGet})
		require.ErrorIs(t, err, ErrEndpointNotFound, ep.Path())
		assert.True(t, strings.HasSuffix(err.Error(), ep.Path()))
	}
}

func TestMock_WriteEchoesBody(t *testing.T) {
	m, _ := newTestMock(t)
	body := map[string]any{"name": "Go", "percentage": float64(90), "extra": []any{"a", "b"}}

	for _, method := range []string{http.MethodPost, http.MethodPut} {
		env, err := m.Serve(context.Background(), Request{
			Endpoint: resource.Record(resource.Skills, "42"),
			Method:   method,
			Body:     body,
		})
		require.NoError(t, err)
		assert.True(t, env.Success)

		var got map[string]any
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, body, got)
	}
}

func TestMock_WriteDoesNotPersist(t *testing.T) {
	m, _ := newTestMock(t)
	ctx := context.Background()

	_, err := m.Serve(ctx, Request{Endpoint: resource.At(resource.Profile), Method: http.MethodPut, Body: models.Profile{Name: "Changed"}})
	require.NoError(t, err)

	env, err := m.Serve(ctx, Request{Endpoint: resource.At(resource.Profile), Method: http.MethodGet})
	require.NoError(t, err)
	var p models.Profile
	require.NoError(t, env.Decode(&p))
	assert.Equal(t, "Richard Hanrick", p.Name)
}

func TestMock_UploadEcho(t *testing.T) {
	m, _ := newTestMock(t)

	env, err := m.Serve(context.Background(), Request{
		Endpoint: resource.At(resource.Portfolio),
		Method:   http.MethodPost,
		Upload: &Upload{
			Field:    "image",
			Filename: "shot.png",
			Content:  strings.NewReader("png"),
			Fields:   map[string]string{"title": "Shot"},
		},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"image":"shot.png","title":"Shot"}`, string(env.Data))
}

func TestMock_Delete(t *testing.T) {
	m, _ := newTestMock(t)

	env, err := m.Serve(context.Background(), Request{Endpoint: resource.Record(resource.Blog, "1"), Method: http.MethodDelete})
	require.NoError(t, err)
	assert.True(t, env.Success)
	assert.Equal(t, "Item deleted successfully", env.Message)
}

func TestMock_UnknownMethod(t *testing.T) {
	m, _ := newTestMock(t)

	_, err := m.Serve(context.Background(), Request{Endpoint: resource.At(resource.Blog), Method: http.MethodPatch})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrEndpointNotFound))
}
