package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dmitrijs2005/sessionauth/internal/common"
	"github.com/dmitrijs2005/sessionauth/internal/dbx"
	"github.com/dmitrijs2005/sessionauth/internal/server/models"
	"github.com/dmitrijs2005/sessionauth/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// LockoutPolicy selects how the lockout window grows with repeated failures.
type LockoutPolicy string

const (
	// LockoutFixed locks for the base window every time.
	LockoutFixed LockoutPolicy = "fixed"
	// LockoutExponential doubles the window for every failure past the
	// threshold, up to the cap.
	LockoutExponential LockoutPolicy = "exponential"
)

func ParseLockoutPolicy(s string) (LockoutPolicy, error) {
	switch p := LockoutPolicy(s); p {
	case LockoutFixed, LockoutExponential:
		return p, nil
	}
	return "", fmt.Errorf("unknown lockout policy %q", s)
}

type LockoutConfig struct {
	Threshold  int
	BaseWindow time.Duration
	MaxWindow  time.Duration
	Policy     LockoutPolicy
}

// Window returns how long an account stays locked after its count-th
// consecutive failure. It is zero below the threshold.
func (c LockoutConfig) Window(count int) time.Duration {
	if c.Threshold <= 0 || count < c.Threshold {
		return 0
	}
	if c.Policy != LockoutExponential {
		return c.BaseWindow
	}

	w := c.BaseWindow
	for i := c.Threshold; i < count; i++ {
		if (c.MaxWindow > 0 && w >= c.MaxWindow) || w > math.MaxInt64/2 {
			break
		}
		w *= 2
	}
	if c.MaxWindow > 0 && w > c.MaxWindow {
		w = c.MaxWindow
	}
	return w
}

// LockoutTracker owns failed_login_attempts. A user is clear, counting
// failures, or locked until a point in time.
type LockoutTracker struct {
	store       dbx.Store
	repomanager repomanager.RepositoryManager
	cfg         LockoutConfig
	env
}

func NewLockoutTracker(store dbx.Store, m repomanager.RepositoryManager, cfg LockoutConfig, opts ...Option) *LockoutTracker {
	return &LockoutTracker{
		store:       store,
		repomanager: m,
		cfg:         cfg,
		env:         newEnv("lockout", opts),
	}
}

// State returns the current row, or nil when the user has no recorded
// failures.
func (t *LockoutTracker) State(ctx context.Context, userID string) (*models.FailedLogin, error) {
	f, err := t.repomanager.FailedLogins(t.store.Conn()).Get(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, unavailable(err)
	}
	return f, nil
}

// Attempt is a login attempt that has already been counted.
type Attempt struct {
	UserID string
	// Count is the number of consecutive failures including this attempt.
	Count int
	// LockedUntil is set when this attempt reached the threshold. The
	// lockout stands unless the attempt turns out to be a success.
	LockedUntil time.Time
}

// StartedLockout reports whether this attempt reached the threshold.
func (a *Attempt) StartedLockout() bool {
	return !a.LockedUntil.IsZero()
}

// Reserve counts an attempt for userID before its password is checked and
// fails with common.ErrAccountLocked while a lockout is in force; the
// refused attempt is still counted. The increment, the check and a lockout
// started by reaching the threshold commit together, so concurrent
// attempts get at most Threshold password checks per lockout window. A
// reserved attempt that succeeds must be cleared with RecordSuccess or
// reset.
func (t *LockoutTracker) Reserve(ctx context.Context, userID string) (*Attempt, error) {
	var (
		attempt *Attempt
		result  error
	)
	err := t.store.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		attempt, err = t.reserve(ctx, tx, userID)
		if errors.Is(err, common.ErrAccountLocked) {
			result = err
			return nil
		}
		return err
	})
	if err != nil {
		return nil, unavailable(err)
	}
	if result != nil {
		return nil, result
	}
	return attempt, nil
}

func (t *LockoutTracker) reserve(ctx context.Context, tx dbx.DBTX, userID string) (*Attempt, error) {
	now := t.now()
	repo := t.repomanager.FailedLogins(tx)

	// The upsert holds the row lock until commit and returns the lockout
	// as it stood before this attempt.
	state, err := repo.Increment(ctx, uuid.NewString(), userID, now)
	if err != nil {
		return nil, err
	}
	if state.Locked(now) {
		return nil, common.ErrAccountLocked
	}

	attempt := &Attempt{UserID: userID, Count: state.Count}
	window := t.cfg.Window(state.Count)
	if window <= 0 {
		return attempt, nil
	}

	attempt.LockedUntil = now.Add(window)
	if err := repo.SetLockout(ctx, userID, attempt.LockedUntil); err != nil {
		return nil, err
	}
	return attempt, nil
}

// RecordSuccess clears the failure history of the user.
func (t *LockoutTracker) RecordSuccess(ctx context.Context, userID string) error {
	if err := t.reset(ctx, t.store.Conn(), userID); err != nil {
		return unavailable(err)
	}
	return nil
}

func (t *LockoutTracker) reset(ctx context.Context, db dbx.DBTX, userID string) error {
	return t.repomanager.FailedLogins(db).Reset(ctx, userID)
}
