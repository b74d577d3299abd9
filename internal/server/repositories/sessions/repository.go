package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sessionauth/internal/server/models"
)

// Repository persists sessions. Lookups by token digest lock the row when
// called inside a transaction.
type Repository interface {
	Create(ctx context.Context, s *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)
	GetByRefreshTokenHash(ctx context.Context, refreshHash string) (*models.Session, error)
	ListActiveByUser(ctx context.Context, userID string) ([]*models.Session, error)
	Touch(ctx context.Context, id string, at time.Time) error
	Revoke(ctx context.Context, id string, at time.Time) (bool, error)
	Expire(ctx context.Context, id string) (bool, error)
	MarkRotated(ctx context.Context, id string, replacedBy string, at time.Time) error
	RevokeFamily(ctx context.Context, familyID string, at time.Time) (int64, error)
	RevokeByUser(ctx context.Context, userID string, at time.Time) (int64, error)
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}
