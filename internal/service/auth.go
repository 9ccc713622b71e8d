// Package service provides the content API business logic, delegating
// persistence to repository interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/folio/internal/models"
	"github.com/atinyakov/folio/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned by Login for an unknown email or a
	// wrong password.
	ErrInvalidCredentials = errors.New("Invalid credentials")
	// ErrUnauthorized is returned by Authenticate for an unknown or expired
	// token.
	ErrUnauthorized = models.ErrUnauthenticated
)

// AuthRepository defines the persistence operations
// required by the authentication service.
type AuthRepository interface {
	// UserByEmail returns the account and its password hash, or
	// repository.ErrNotFound.
	UserByEmail(ctx context.Context, email string) (*models.User, string, error)
	// UpsertUser creates or updates an account keyed by email.
	UpsertUser(ctx context.Context, u models.User, hash string) error
	CreateSession(ctx context.Context, token, userID string, expiresAt time.Time) error
	// SessionUser returns the owner of a live token, or repository.ErrNotFound.
	SessionUser(ctx context.Context, token string, now time.Time) (*models.User, error)
	DeleteSession(ctx context.Context, token string) error
}

// AuthService issues and checks bearer session tokens.
type AuthService struct {
	repo AuthRepository
	ttl  time.Duration
	now  func() time.Time
	// newToken mints session tokens.
	newToken func() string
}

// NewAuthService constructs an AuthService whose sessions last ttl.
func NewAuthService(repo AuthRepository, ttl time.Duration) *AuthService {
	return &AuthService{
		repo:     repo,
		ttl:      ttl,
		now:      time.Now,
		newToken: uuid.NewString,
	}
}

// Login checks the credentials and opens a session.
func (s *AuthService) Login(ctx context.Context, creds models.Credentials) (string, *models.User, error) {
	user, hash, err := s.repo.UserByEmail(ctx, creds.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(creds.Password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token := s.newToken()
	if err := s.repo.CreateSession(ctx, token, user.ID, s.now().Add(s.ttl)); err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Logout ends the session of token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.repo.DeleteSession(ctx, token)
}

// Authenticate resolves a bearer token to its user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	user, err := s.repo.SessionUser(ctx, token, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SeedAdmin creates or refreshes the admin account.
func (s *AuthService) SeedAdmin(ctx context.Context, email, password, name string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	id := uuid.NewString()
	if existing, _, err := s.repo.UserByEmail(ctx, email); err == nil {
		id = existing.ID
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return s.repo.UpsertUser(ctx, models.User{ID: id, Email: email, Name: name, Role: "admin"}, string(hash))
}
