package memory

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sessionauth/internal/common"
	"github.com/dmitrijs2005/sessionauth/internal/dbx"
	"github.com/dmitrijs2005/sessionauth/internal/server/models"
)

type resetRepo struct {
	m  *Manager
	db dbx.DBTX
}

func (r *resetRepo) Create(_ context.Context, pr *models.PasswordReset) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if err := r.m.userExists(pr.UserID); err != nil {
		return err
	}
	c := *pr
	r.m.resets[c.TokenHash] = &c
	r.m.onRollback(r.db, func() { delete(r.m.resets, c.TokenHash) })
	return nil
}

func (r *resetRepo) GetByTokenHash(_ context.Context, tokenHash string) (*models.PasswordReset, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	pr, ok := r.m.resets[tokenHash]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *pr
	return &c, nil
}

func (r *resetRepo) MarkUsed(_ context.Context, id string, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, pr := range r.m.resets {
		if pr.ID != id {
			continue
		}
		if pr.UsedAt != nil {
			return common.ErrTokenUsed
		}
		r.m.onRollback(r.db, func() { pr.UsedAt = nil })
		t := at
		pr.UsedAt = &t
		return nil
	}
	return common.ErrTokenUsed
}

type changeRepo struct {
	m  *Manager
	db dbx.DBTX
}

func (r *changeRepo) Create(_ context.Context, l *models.PasswordChangeLog) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if err := r.m.userExists(l.UserID); err != nil {
		return err
	}
	c := *l
	r.m.changes = append(r.m.changes, &c)
	r.m.onRollback(r.db, func() { r.m.changes = without(r.m.changes, &c) })
	return nil
}

func (r *changeRepo) ListByUser(_ context.Context, userID string) ([]*models.PasswordChangeLog, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var out []*models.PasswordChangeLog
	for _, l := range r.m.changes {
		if l.UserID == userID {
			c := *l
			out = append(out, &c)
		}
	}
	return out, nil
}
