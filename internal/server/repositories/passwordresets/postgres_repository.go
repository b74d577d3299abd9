// Package passwordresets provides the PostgreSQL repository of the
// password_resets table.
package passwordresets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sessionauth/internal/common"
	"github.com/dmitrijs2005/sessionauth/internal/dbx"
	"github.com/dmitrijs2005/sessionauth/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, pr *models.PasswordReset) error {
	query := `INSERT INTO password_resets (id, user_id, reset_token, created_at, expires_at) VALUES ($1, $2, $3, $4, $5)`

	if _, err := r.db.ExecContext(ctx, query, pr.ID, pr.UserID, pr.TokenHash, pr.CreatedAt, pr.ExpiresAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordReset, error) {
	query := `SELECT id, user_id, reset_token, created_at, expires_at, used_at FROM password_resets WHERE reset_token = $1 FOR UPDATE`

	pr := &models.PasswordReset{}
	var usedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, tokenHash).
		Scan(&pr.ID, &pr.UserID, &pr.TokenHash, &pr.CreatedAt, &pr.ExpiresAt, &usedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if usedAt.Valid {
		pr.UsedAt = &usedAt.Time
	}
	return pr, nil
}

// MarkUsed consumes the token. A token that was already used yields
// common.ErrTokenUsed.
func (r *PostgresRepository) MarkUsed(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE password_resets SET used_at = $2 WHERE id = $1 AND used_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrTokenUsed
	}
	return nil
}
