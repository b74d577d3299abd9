// Package auditlogs provides the PostgreSQL repository of the audit_logs
// table.
package auditlogs

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sessionauth/internal/dbx"
	"github.com/dmitrijs2005/sessionauth/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, e *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (id, user_id, ip_address, user_agent, action, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, e.ID, e.UserID, e.IPAddress, e.UserAgent, string(e.Action), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, user_id, ip_address, user_agent, action, created_at
		FROM audit_logs
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	return r.list(ctx, query, userID, limit)
}

func (r *PostgresRepository) ListAfter(ctx context.Context, after time.Time, afterID string, limit int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, user_id, ip_address, user_agent, action, created_at
		FROM audit_logs
		WHERE (created_at, id) > ($1, $2)
		ORDER BY created_at, id
		LIMIT $3
	`
	return r.list(ctx, query, after, afterID, limit)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.AuditLog
	for rows.Next() {
		e := &models.AuditLog{}
		var ip, ua sql.NullString
		var action string
		if err := rows.Scan(&e.ID, &e.UserID, &ip, &ua, &action, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		e.IPAddress = ip.String
		e.UserAgent = ua.String
		e.Action = models.AuditAction(action)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
