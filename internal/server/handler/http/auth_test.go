package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atinyakov/folio/internal/models"
	"github.com/atinyakov/folio/internal/service"
	"go.uber.org/zap"
)

// fakeAuthService implements AuthService for testing.
type fakeAuthService struct {
	token     string
	user      *models.User
	loginErr  error
	logoutErr error
	loggedOut string
}

func (f *fakeAuthService) Login(ctx context.Context, creds models.Credentials) (string, *models.User, error) {
	return f.token, f.user, f.loginErr
}

func (f *fakeAuthService) Logout(ctx context.Context, token string) error {
	f.loggedOut = token
	return f.logoutErr
}

func TestAuthHandler_Login(t *testing.T) {
	admin := &models.User{ID: "u1", Name: "Admin", Email: "admin@example.com", Role: "admin"}
	tests := []struct {
		name           string
		body           string
		service        *fakeAuthService
		expectedCode   int
		expectedSubstr string
	}{
		{
			name:           "invalid JSON",
			body:           `not a json`,
			service:        &fakeAuthService{},
			expectedCode:   http.StatusBadRequest,
			expectedSubstr: "invalid request",
		},
		{
			name:           "missing password",
			body:           `{"email":"admin@example.com"}`,
			service:        &fakeAuthService{},
			expectedCode:   http.StatusUnprocessableEntity,
			expectedSubstr: "password is required",
		},
		{
			name:           "malformed email",
			body:           `{"email":"admin","password":"x"}`,
			service:        &fakeAuthService{},
			expectedCode:   http.StatusUnprocessableEntity,
			expectedSubstr: "email must be a valid email",
		},
		{
			name:           "wrong password",
			body:           `{"email":"admin@example.com","password":"nope"}`,
			service:        &fakeAuthService{loginErr: service.ErrInvalidCredentials},
			expectedCode:   http.StatusUnprocessableEntity,
			expectedSubstr: "Invalid credentials",
		},
		{
			name:           "storage failure",
			body:           `{"email":"admin@example.com","password":"password"}`,
			service:        &fakeAuthService{loginErr: errors.New("db down")},
			expectedCode:   http.StatusInternalServerError,
			expectedSubstr: "internal error",
		},
		{
			name:           "successful login",
			body:           `{"email":"admin@example.com","password":"password"}`,
			service:        &fakeAuthService{token: "tok-1", user: admin},
			expectedCode:   http.StatusOK,
			expectedSubstr: `"token":"tok-1"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(tt.body))
			h := NewAuthHandler(tt.service, zap.NewNop())
			h.Login(rec, req)
			res := rec.Result()
			defer res.Body.Close()

			if res.StatusCode != tt.expectedCode {
				t.Fatalf("expected status %d, got %d", tt.expectedCode, res.StatusCode)
			}

			buf := new(bytes.Buffer)
			if _, err := buf.ReadFrom(res.Body); err != nil {
				t.Fatalf("failed to read body: %v", err)
			}
			if !bytes.Contains(buf.Bytes(), []byte(tt.expectedSubstr)) {
				t.Errorf("expected body to contain %q, got %q", tt.expectedSubstr, buf.String())
			}
		})
	}
}

func TestAuthHandler_LoginEnvelope(t *testing.T) {
	admin := &models.User{ID: "u1", Name: "Admin", Role: "admin"}
	h := NewAuthHandler(&fakeAuthService{token: "tok-1", user: admin}, zap.NewNop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		bytes.NewBufferString(`{"email":"admin@example.com","password":"password"}`))
	h.Login(rec, req)

	var env models.Envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if !env.Success || env.Token != "tok-1" || env.User == nil || env.User.ID != "u1" {
		t.Errorf("envelope = %+v", env)
	}
}
