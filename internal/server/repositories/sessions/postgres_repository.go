// Package sessions provides the PostgreSQL repository of the sessions table.
package sessions

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

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `id, user_id, family_id, token, refresh_token, status, created_at, expires_at,
	revoked_at, last_used_at, user_agent, ip_address, timeout_minutes,
	refresh_token_expires_at, last_refresh_at, replaced_by`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*models.Session, error) {
	s := &models.Session{}
	var status string
	var revokedAt, lastUsedAt, lastRefreshAt sql.NullTime
	var userAgent, ipAddress, replacedBy sql.NullString
	var timeoutMinutes sql.NullInt32

	err := row.Scan(&s.ID, &s.UserID, &s.FamilyID, &s.TokenHash, &s.RefreshTokenHash, &status,
		&s.CreatedAt, &s.ExpiresAt, &revokedAt, &lastUsedAt, &userAgent, &ipAddress,
		&timeoutMinutes, &s.RefreshTokenExpiresAt, &lastRefreshAt, &replacedBy)
	if err != nil {
		return nil, err
	}

	s.Status = models.SessionStatus(status)
	s.UserAgent = userAgent.String
	s.IPAddress = ipAddress.String
	if revokedAt.Valid {
		s.RevokedAt = &revokedAt.Time
	}
	if lastUsedAt.Valid {
		s.LastUsedAt = &lastUsedAt.Time
	}
	if lastRefreshAt.Valid {
		s.LastRefreshAt = &lastRefreshAt.Time
	}
	if timeoutMinutes.Valid {
		m := int(timeoutMinutes.Int32)
		s.TimeoutMinutes = &m
	}
	if replacedBy.Valid {
		s.ReplacedBy = &replacedBy.String
	}
	return s, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*models.Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, family_id, token, refresh_token, status, created_at,
			expires_at, user_agent, ip_address, timeout_minutes, refresh_token_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	var timeout sql.NullInt32
	if s.TimeoutMinutes != nil {
		timeout = sql.NullInt32{Int32: int32(*s.TimeoutMinutes), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query, s.ID, s.UserID, s.FamilyID, s.TokenHash, s.RefreshTokenHash,
		string(s.Status), s.CreatedAt, s.ExpiresAt, s.UserAgent, s.IPAddress, timeout, s.RefreshTokenExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token = $1 FOR UPDATE`, tokenHash)
}

func (r *PostgresRepository) GetByRefreshTokenHash(ctx context.Context, refreshHash string) (*models.Session, error) {
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE refresh_token = $1 FOR UPDATE`, refreshHash)
}

func (r *PostgresRepository) ListActiveByUser(ctx context.Context, userID string) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = $1 AND status = 'active' ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Touch(ctx context.Context, id string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE sessions SET last_used_at = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Revoke moves an active session to revoked. It reports false when the
// session was not active (already revoked, expired or missing).
func (r *PostgresRepository) Revoke(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `UPDATE sessions SET status = 'revoked', revoked_at = $2 WHERE id = $1 AND status = 'active'`
	n, err := r.exec(ctx, query, id, at)
	return n > 0, err
}

func (r *PostgresRepository) Expire(ctx context.Context, id string) (bool, error) {
	query := `UPDATE sessions SET status = 'expired' WHERE id = $1 AND status = 'active'`
	n, err := r.exec(ctx, query, id)
	return n > 0, err
}

// MarkRotated retires a session whose refresh token has just been used.
func (r *PostgresRepository) MarkRotated(ctx context.Context, id string, replacedBy string, at time.Time) error {
	query := `
		UPDATE sessions
		SET status = 'revoked', revoked_at = $3, last_refresh_at = $3, replaced_by = $2
		WHERE id = $1 AND status = 'active'
	`
	n, err := r.exec(ctx, query, id, replacedBy, at)
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) RevokeFamily(ctx context.Context, familyID string, at time.Time) (int64, error) {
	query := `UPDATE sessions SET status = 'revoked', revoked_at = $2 WHERE family_id = $1 AND status = 'active'`
	return r.exec(ctx, query, familyID, at)
}

func (r *PostgresRepository) RevokeByUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	query := `UPDATE sessions SET status = 'revoked', revoked_at = $2 WHERE user_id = $1 AND status = 'active'`
	return r.exec(ctx, query, userID, at)
}

// ExpireStale marks active sessions expired once their refresh token
// lapsed or their idle timeout elapsed.
func (r *PostgresRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE sessions SET status = 'expired'
		WHERE status = 'active'
		  AND (refresh_token_expires_at <= $1
		       OR (timeout_minutes > 0
		           AND COALESCE(last_used_at, created_at) + make_interval(mins => timeout_minutes) < $1))
	`
	return r.exec(ctx, query, now)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
