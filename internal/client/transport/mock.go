package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/atinyakov/folio/internal/client/fixtures"
	"github.com/atinyakov/folio/internal/client/storage"
	"github.com/atinyakov/folio/internal/models"
	"github.com/atinyakov/folio/internal/resource"
	"go.uber.org/zap"
)

// Mock latency bounds: every call resolves after [MinLatency, MaxLatency).
const (
	MinLatency = 300 * time.Millisecond
	MaxLatency = 800 * time.Millisecond
)

// Mock login credentials.
const (
	MockEmail    = "admin@example.com"
	MockPassword = "password"
)

// MockUser is returned by a successful mock login.
var MockUser = models.User{
	ID:    "1",
	Name:  "Richard Hanrick",
	Email: MockEmail,
	Role:  "admin",
}

// UniformLatency returns a delay uniformly distributed in [lo, hi).
func UniformLatency(lo, hi time.Duration) func() time.Duration {
	return func() time.Duration {
		if hi <= lo {
			return lo
		}
		return lo + rand.N(hi-lo)
	}
}

// Mock serves fixtures with simulated latency. Writes are echoed and never
// persisted: a later GET returns the original fixture.
type Mock struct {
	fixtures *fixtures.Store
	tokens   *storage.TokenStore
	log      *zap.Logger
	latency  func() time.Duration
	now      func() time.Time
}

// MockOption configures a Mock.
type MockOption func(*Mock)

// WithLatency replaces the latency source.
func WithLatency(f func() time.Duration) MockOption {
	return func(m *Mock) { m.latency = f }
}

// WithClock replaces the clock used to mint tokens.
func WithClock(now func() time.Time) MockOption {
	return func(m *Mock) { m.now = now }
}

// NewMock returns a Mock transport over fx. Login and logout update tokens.
func NewMock(fx *fixtures.Store, tokens *storage.TokenStore, log *zap.Logger, opts ...MockOption) *Mock {
	m := &Mock{
		fixtures: fx,
		tokens:   tokens,
		log:      log,
		latency:  UniformLatency(MinLatency, MaxLatency),
		now:      time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Serve implements Transport.
func (m *Mock) Serve(ctx context.Context, req Request) (*models.Envelope, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	ep := req.Endpoint
	if ep.Resource == resource.Auth {
		switch ep.Action {
		case resource.ActionLogin:
			return m.login(req.Body)
		case resource.ActionLogout:
			if err := m.tokens.ClearToken(); err != nil {
				m.log.Warn("mock logout: clear token", zap.Error(err))
			}
			return &models.Envelope{Success: true}, nil
		}
	}

	switch req.Method {
	case http.MethodGet:
		return m.get(ep)
	case http.MethodPost, http.MethodPut:
		data, err := echo(req)
		if err != nil {
			return nil, err
		}
		m.log.Debug("mock write", zap.String("method", req.Method), zap.String("endpoint", ep.Path()))
		return &models.Envelope{
			Success: true,
			Message: "Operation completed successfully",
			Data:    data,
		}, nil
	case http.MethodDelete:
		m.log.Debug("mock delete", zap.String("endpoint", ep.Path()))
		return &models.Envelope{Success: true, Message: "Item deleted successfully"}, nil
	}
	return nil, fmt.Errorf("unknown request method %q", req.Method)
}

func (m *Mock) wait(ctx context.Context) error {
	timer := time.NewTimer(m.latency())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (m *Mock) login(body any) (*models.Envelope, error) {
	var creds models.Credentials
	if b, err := json.Marshal(body); err == nil {
		_ = json.Unmarshal(b, &creds)
	}
	if creds.Email != MockEmail || creds.Password != MockPassword {
		return nil, ErrInvalidCredentials
	}

	token := "mock_" + strconv.FormatInt(m.now().UnixMilli(), 10)
	if err := m.tokens.SetToken(token); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	user := MockUser
	return &models.Envelope{Success: true, Token: token, User: &user}, nil
}

func (m *Mock) get(ep resource.Endpoint) (*models.Envelope, error) {
	if ep.Action == "" {
		var (
			doc json.RawMessage
			ok  bool
		)
		if ep.ID == "" {
			doc, ok = m.fixtures.Lookup(ep.Resource)
		} else if ep.Resource.IsCollection() {
			doc, ok = m.fixtures.First(ep.Resource)
		}
		if ok {
			return &models.Envelope{Success: true, Data: doc}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrEndpointNotFound, ep.Path())
}

// echo returns the submitted body unchanged. For uploads it is the form
// fields plus the file name under the upload field.
func echo(req Request) (json.RawMessage, error) {
	if req.Upload != nil {
		fields := make(map[string]string, len(req.Upload.Fields)+1)
		for k, v := range req.Upload.Fields {
			fields[k] = v
		}
		fields[req.Upload.Field] = req.Upload.Filename
		if req.Upload.Content != nil {
			_, _ = io.Copy(io.Discard, req.Upload.Content)
		}
		return json.Marshal(fields)
	}
	if req.Body == nil {
		return nil, nil
	}
	if raw, ok := req.Body.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(req.Body)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return b, nil
}
