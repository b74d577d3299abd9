package passwordresets

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sessionauth/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, pr *models.PasswordReset) error
	// GetByTokenHash locks the row when called inside a transaction.
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordReset, error)
	MarkUsed(ctx context.Context, id string, at time.Time) error
}
