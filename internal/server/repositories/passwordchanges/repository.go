package passwordchanges

import (
	"context"

	"github.com/dmitrijs2005/sessionauth/internal/server/models"
)

// Repository appends to password_change_requests_logs. Rows are never
// updated.
type Repository interface {
	Create(ctx context.Context, l *models.PasswordChangeLog) error
	ListByUser(ctx context.Context, userID string) ([]*models.PasswordChangeLog, error)
}
