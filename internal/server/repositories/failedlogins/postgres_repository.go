// Package failedlogins provides the PostgreSQL repository of the
// failed_login_attempts table.
package failedlogins

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

func scanFailedLogin(row *sql.Row) (*models.FailedLogin, error) {
	f := &models.FailedLogin{}
	var until sql.NullTime
	if err := row.Scan(&f.UserID, &f.Count, &f.LastFailedAttempt, &until); err != nil {
		return nil, err
	}
	if until.Valid {
		f.LockoutUntil = &until.Time
	}
	return f, nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.FailedLogin, error) {
	query := `SELECT user_id, failed_attempt_count, last_failed_attempt, lockout_until FROM failed_login_attempts WHERE user_id = $1`

	f, err := scanFailedLogin(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

// Increment is a single upsert so concurrent failures for one user are
// never lost.
func (r *PostgresRepository) Increment(ctx context.Context, rowID, userID string, at time.Time) (*models.FailedLogin, error) {
	query := `
		INSERT INTO failed_login_attempts (id, user_id, failed_attempt_count, last_failed_attempt)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET failed_attempt_count = failed_login_attempts.failed_attempt_count + 1,
		    last_failed_attempt = EXCLUDED.last_failed_attempt
		RETURNING user_id, failed_attempt_count, last_failed_attempt, lockout_until
	`
	f, err := scanFailedLogin(r.db.QueryRowContext(ctx, query, rowID, userID, at))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) SetLockout(ctx context.Context, userID string, until time.Time) error {
	query := `UPDATE failed_login_attempts SET lockout_until = $2 WHERE user_id = $1`

	res, err := r.db.ExecContext(ctx, query, userID, until)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Reset(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM failed_login_attempts WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
