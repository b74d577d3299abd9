package failedlogins

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sessionauth/internal/server/models"
)

// Repository owns failed_login_attempts. Only the lockout tracker writes it.
type Repository interface {
	Get(ctx context.Context, userID string) (*models.FailedLogin, error)
	// Increment adds one failure for userID, creating the row with rowID
	// when absent, and returns the updated state.
	Increment(ctx context.Context, rowID, userID string, at time.Time) (*models.FailedLogin, error)
	SetLockout(ctx context.Context, userID string, until time.Time) error
	Reset(ctx context.Context, userID string) error
}
