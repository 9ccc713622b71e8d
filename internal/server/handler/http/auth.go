// Package http provides the chi handlers of the content API.
package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/atinyakov/folio/internal/middleware"
	"github.com/atinyakov/folio/internal/models"
	"github.com/atinyakov/folio/internal/service"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// AuthService defines the interface for authentication operations
// required by the HTTP handlers.
type AuthService interface {
	// Login checks credentials and returns a new session token.
	Login(ctx context.Context, creds models.Credentials) (string, *models.User, error)
	// Logout ends the session of token.
	Logout(ctx context.Context, token string) error
}

// AuthHandler handles HTTP requests for login and logout.
type AuthHandler struct {
	// AuthService performs the underlying authentication operations.
	AuthService AuthService
	Validate    *validator.Validate
	Log         *zap.Logger
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(auth AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{AuthService: auth, Validate: service.NewValidator(), Log: log}
}

// Login handles POST /api/auth/login.
// It expects {"email","password"} and answers with the session token and
// the account. Rejected credentials are a 422, not a 401, so a client does
// not read them as an expired session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}
	if err := service.Validate(h.Validate, creds); err != nil {
		writeError(w, h.Log, err)
		return
	}

	token, user, err := h.AuthService.Login(r.Context(), creds)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.Log.Info("admin logged in", zap.String("user", user.ID))
	writeEnvelope(w, http.StatusOK, models.Envelope{
		Success: true,
		Message: "Login successful",
		Token:   token,
		User:    user,
	})
}

// Logout handles POST /api/auth/logout for the session in the request
// context.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.AuthService.Logout(r.Context(), middleware.TokenFromContext(r.Context())); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeEnvelope(w, http.StatusOK, models.Envelope{Success: true, Message: "Logged out"})
}
