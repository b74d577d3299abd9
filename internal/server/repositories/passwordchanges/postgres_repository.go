// Package passwordchanges provides the PostgreSQL repository of the
// password_change_requests_logs table.
package passwordchanges

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/sessionauth/internal/dbx"
	"github.com/dmitrijs2005/sessionauth/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, l *models.PasswordChangeLog) error {
	query := `
		INSERT INTO password_change_requests_logs (id, user_id, request_time, status, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, l.ID, l.UserID, l.RequestTime, string(l.Status), l.IPAddress, l.UserAgent)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.PasswordChangeLog, error) {
	query := `
		SELECT id, user_id, request_time, status, ip_address, user_agent
		FROM password_change_requests_logs
		WHERE user_id = $1
		ORDER BY request_time
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.PasswordChangeLog
	for rows.Next() {
		l := &models.PasswordChangeLog{}
		var status, ip, ua sql.NullString
		if err := rows.Scan(&l.ID, &l.UserID, &l.RequestTime, &status, &ip, &ua); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		l.Status = models.PasswordChangeStatus(status.String)
		l.IPAddress = ip.String
		l.UserAgent = ua.String
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
