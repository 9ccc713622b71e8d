package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgresContentRepository stores ordered collections in documents and
// single-object resources in singletons, both as JSONB.
type PostgresContentRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

// NewPostgresContentRepository creates a new PostgresContentRepository.
func NewPostgresContentRepository(db *sql.DB) *PostgresContentRepository {
	return &PostgresContentRepository{DB: db}
}

// List returns the bodies of a collection in position order.
func (s *PostgresContentRepository) List(ctx context.Context, resource string) ([]json.RawMessage, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT body FROM documents WHERE resource = $1 ORDER BY position, id
	`, resource)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer rows.Close()

	out := []json.RawMessage{}
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, json.RawMessage(body))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return out, nil
}

// Get returns one record body.
func (s *PostgresContentRepository) Get(ctx context.Context, resource, id string) (json.RawMessage, error) {
	var body []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE resource = $1 AND id = $2`,
		resource, id,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return body, nil
}

// Insert appends a record at the end of its collection.
func (s *PostgresContentRepository) Insert(ctx context.Context, resource, id string, body json.RawMessage) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO documents (resource, id, position, body)
		VALUES ($1, $2, (SELECT COALESCE(MAX(position) + 1, 0) FROM documents WHERE resource = $1), $3)
	`, resource, id, []byte(body))
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	return nil
}

// Update replaces a record body, keeping its position.
func (s *PostgresContentRepository) Update(ctx context.Context, resource, id string, body json.RawMessage) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE documents SET body = $3 WHERE resource = $1 AND id = $2`,
		resource, id, []byte(body),
	)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	return affected(res, 1)
}

// Delete removes a record.
func (s *PostgresContentRepository) Delete(ctx context.Context, resource, id string) error {
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM documents WHERE resource = $1 AND id = $2`,
		resource, id,
	)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return affected(res, 1)
}

// Reorder sets each record's position to its index in ids. ids must name
// every record of the collection exactly once, otherwise nothing changes
// and ErrNotFound is returned.
func (s *PostgresContentRepository) Reorder(ctx context.Context, resource string, ids []string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var total int64
	if err := tx.QueryRowContext(ctx,
		`SELECT count(*) FROM documents WHERE resource = $1`,
		resource,
	).Scan(&total); err != nil {
		return fmt.Errorf("reorder: %w", err)
	}
	if total != int64(len(ids)) {
		return ErrNotFound
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE documents
		   SET position = array_position($2::text[], id) - 1
		 WHERE resource = $1 AND id = ANY($2)
	`, resource, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("reorder: %w", err)
	}
	if err := affected(res, int64(len(ids))); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetSingleton returns the body of a single-object resource.
func (s *PostgresContentRepository) GetSingleton(ctx context.Context, resource string) (json.RawMessage, error) {
	var body []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT body FROM singletons WHERE resource = $1`,
		resource,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetSingleton: %w", err)
	}
	return body, nil
}

// PutSingleton creates or replaces a single-object resource.
func (s *PostgresContentRepository) PutSingleton(ctx context.Context, resource string, body json.RawMessage) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO singletons (resource, body) VALUES ($1, $2)
		ON CONFLICT (resource) DO UPDATE SET body = EXCLUDED.body
	`, resource, []byte(body))
	if err != nil {
		return fmt.Errorf("PutSingleton: %w", err)
	}
	return nil
}

func affected(res sql.Result, want int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n != want {
		return ErrNotFound
	}
	return nil
}
