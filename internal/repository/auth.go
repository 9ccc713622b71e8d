// Package repository provides PostgreSQL persistence for accounts, login
// sessions and site content.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/folio/internal/models"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// PostgresAuthRepository implements account and session storage using a
// PostgreSQL database.
type PostgresAuthRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresAuthRepository creates a new PostgresAuthRepository with the
// given database connection.
func NewPostgresAuthRepository(db *sql.DB) *PostgresAuthRepository {
	return &PostgresAuthRepository{DB: db}
}

// UserByEmail returns the account with email and its bcrypt password hash.
func (s *PostgresAuthRepository) UserByEmail(ctx context.Context, email string) (*models.User, string, error) {
	var (
		u    models.User
		hash string
	)
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, email, name, role, password_hash FROM users WHERE email = $1`,
		email,
	).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("UserByEmail: %w", err)
	}
	return &u, hash, nil
}

// UpsertUser creates the account, or updates name, role and password of an
// existing account with the same email.
func (s *PostgresAuthRepository) UpsertUser(ctx context.Context, u models.User, hash string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO users (id, email, name, role, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			password_hash = EXCLUDED.password_hash
	`, u.ID, u.Email, u.Name, u.Role, hash)
	if err != nil {
		return fmt.Errorf("UpsertUser: %w", err)
	}
	return nil
}

// CreateSession stores a login token for userID.
func (s *PostgresAuthRepository) CreateSession(ctx context.Context, token, userID string, expiresAt time.Time) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, expires_at) VALUES ($1, $2, $3)`,
		token, userID, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("CreateSession: %w", err)
	}
	return nil
}

// SessionUser returns the owner of a token that has not expired at now.
func (s *PostgresAuthRepository) SessionUser(ctx context.Context, token string, now time.Time) (*models.User, error) {
	var u models.User
	err := s.DB.QueryRowContext(ctx, `
		SELECT u.id, u.email, u.name, u.role
		  FROM sessions s
		  JOIN users u ON u.id = s.user_id
		 WHERE s.token = $1 AND s.expires_at > $2
	`, token, now).Scan(&u.ID, &u.Email, &u.Name, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("SessionUser: %w", err)
	}
	return &u, nil
}

// DeleteSession removes a token. Deleting an unknown token is not an error.
func (s *PostgresAuthRepository) DeleteSession(ctx context.Context, token string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("DeleteSession: %w", err)
	}
	return nil
}
