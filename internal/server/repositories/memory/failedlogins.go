package memory

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sessionauth/internal/common"
	"github.com/dmitrijs2005/sessionauth/internal/dbx"
	"github.com/dmitrijs2005/sessionauth/internal/server/models"
)

type failedLoginRepo struct {
	m  *Manager
	db dbx.DBTX
}

func (r *failedLoginRepo) Get(_ context.Context, userID string) (*models.FailedLogin, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	f, ok := r.m.failed[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *f
	return &c, nil
}

func (r *failedLoginRepo) Increment(_ context.Context, _ string, userID string, at time.Time) (*models.FailedLogin, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if err := r.m.userExists(userID); err != nil {
		return nil, err
	}
	f, ok := r.m.failed[userID]
	if ok {
		prev := *f
		r.m.onRollback(r.db, func() { *f = prev })
	} else {
		f = &models.FailedLogin{UserID: userID}
		r.m.failed[userID] = f
		r.m.onRollback(r.db, func() { delete(r.m.failed, userID) })
	}
	f.Count++
	f.LastFailedAttempt = at

	c := *f
	return &c, nil
}

func (r *failedLoginRepo) SetLockout(_ context.Context, userID string, until time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	f, ok := r.m.failed[userID]
	if !ok {
		return common.ErrorNotFound
	}
	prev := f.LockoutUntil
	r.m.onRollback(r.db, func() { f.LockoutUntil = prev })
	t := until
	f.LockoutUntil = &t
	return nil
}

func (r *failedLoginRepo) Reset(_ context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if f, ok := r.m.failed[userID]; ok {
		delete(r.m.failed, userID)
		r.m.onRollback(r.db, func() { r.m.failed[userID] = f })
	}
	return nil
}
