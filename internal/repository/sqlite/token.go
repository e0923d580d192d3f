package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/Dav1dde/notifico/internal/apperror"
	"github.com/Dav1dde/notifico/internal/model"
	"github.com/Dav1dde/notifico/internal/repository"
)

// compile-time check that *TokenDB implements repository.AuthTokenRepository
var _ repository.AuthTokenRepository = (*TokenDB)(nil)

// Create stores a linked-service credential.
func (db *TokenDB) Create(ctx context.Context, token *model.AuthToken) error {
	token.ID = xid.New().String()
	token.Created = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO auth_tokens (id, created, name, token, owner_id)
		 VALUES (?, ?, ?, ?, ?)`,
		token.ID,
		token.Created,
		token.Name,
		token.Token,
		token.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting auth token %q: %w", token.Name, err)
	}
	return nil
}

// GetByID retrieves a single auth token.
func (db *TokenDB) GetByID(ctx context.Context, id string) (*model.AuthToken, error) {
	var t model.AuthToken
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, created, name, token, owner_id FROM auth_tokens WHERE id = ?`,
		id,
	).Scan(&t.ID, &t.Created, &t.Name, &t.Token, &t.OwnerID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("auth token", id)
		}
		return nil, fmt.Errorf("sqlite: getting auth token %s: %w", id, err)
	}
	return &t, nil
}

// ListByOwner returns all of one user's linked-service tokens, newest
// first.
func (db *TokenDB) ListByOwner(ctx context.Context, ownerID string) ([]model.AuthToken, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, created, name, token, owner_id
		 FROM auth_tokens
		 WHERE owner_id = ?
		 ORDER BY created DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing auth tokens for %s: %w", ownerID, err)
	}
	defer rows.Close()

	var tokens []model.AuthToken
	for rows.Next() {
		var t model.AuthToken
		if err := rows.Scan(&t.ID, &t.Created, &t.Name, &t.Token, &t.OwnerID); err != nil {
			return nil, fmt.Errorf("sqlite: scanning auth token row: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating auth tokens: %w", err)
	}

	return tokens, nil
}

// Delete unlinks a stored credential.
func (db *TokenDB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM auth_tokens WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting auth token %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("auth token", id)
	}
	return nil
}
