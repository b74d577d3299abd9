package auditlogs

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sessionauth/internal/server/models"
)

// Repository appends to audit_logs. Rows are never updated or deleted
// except by the user cascade.
type Repository interface {
	Create(ctx context.Context, e *models.AuditLog) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.AuditLog, error)
	// ListAfter returns up to limit rows ordered by (created_at, id) that
	// sort strictly after the given cursor.
	ListAfter(ctx context.Context, after time.Time, afterID string, limit int) ([]*models.AuditLog, error)
}
