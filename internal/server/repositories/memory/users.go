package memory

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sessionauth/internal/common"
	"github.com/dmitrijs2005/sessionauth/internal/dbx"
	"github.com/dmitrijs2005/sessionauth/internal/server/models"
)

type userRepo struct {
	m  *Manager
	db dbx.DBTX
}

func (r *userRepo) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.byName[user.UserName]; ok {
		return nil, common.ErrUserExists
	}
	u := *user
	u.UpdatedAt = u.CreatedAt
	r.m.users[u.ID] = &u
	r.m.byName[u.UserName] = u.ID
	r.m.onRollback(r.db, func() {
		delete(r.m.users, u.ID)
		delete(r.m.byName, u.UserName)
	})

	out := u
	return &out, nil
}

func (r *userRepo) GetByUserName(_ context.Context, userName string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	id, ok := r.m.byName[userName]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u := *r.m.users[id]
	return &u, nil
}

func (r *userRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	u, ok := r.m.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *u
	return &out, nil
}

func (r *userRepo) update(id string, fn func(u *models.User)) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	u, ok := r.m.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	prev := *u
	r.m.onRollback(r.db, func() { *u = prev })
	fn(u)
	return nil
}

func (r *userRepo) UpdatePasswordHash(_ context.Context, id string, hash string, at time.Time) error {
	return r.update(id, func(u *models.User) {
		u.PasswordHash = hash
		u.UpdatedAt = at
	})
}

func (r *userRepo) SetActive(_ context.Context, id string, active bool, at time.Time) error {
	return r.update(id, func(u *models.User) {
		u.IsActive = active
		u.UpdatedAt = at
	})
}

func (r *userRepo) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(u *models.User) {
		t := at
		u.LastLogin = &t
	})
}

// Delete removes the user and every dependent row.
func (r *userRepo) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	u, ok := r.m.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	failed, hadFailed := r.m.failed[id]

	delete(r.m.users, id)
	delete(r.m.byName, u.UserName)
	delete(r.m.failed, id)

	sessions := map[string]*models.Session{}
	for k, s := range r.m.sessions {
		if s.UserID == id {
			sessions[k] = s
			delete(r.m.sessions, k)
		}
	}
	resets := map[string]*models.PasswordReset{}
	for k, pr := range r.m.resets {
		if pr.UserID == id {
			resets[k] = pr
			delete(r.m.resets, k)
		}
	}

	var removedChanges []*models.PasswordChangeLog
	changes := r.m.changes[:0]
	for _, l := range r.m.changes {
		if l.UserID != id {
			changes = append(changes, l)
		} else {
			removedChanges = append(removedChanges, l)
		}
	}
	r.m.changes = changes

	var removedAudit []*models.AuditLog
	audit := r.m.audit[:0]
	for _, e := range r.m.audit {
		if e.UserID != id {
			audit = append(audit, e)
		} else {
			removedAudit = append(removedAudit, e)
		}
	}
	r.m.audit = audit

	r.m.onRollback(r.db, func() {
		r.m.users[id] = u
		r.m.byName[u.UserName] = id
		if hadFailed {
			r.m.failed[id] = failed
		}
		for k, s := range sessions {
			r.m.sessions[k] = s
		}
		for k, pr := range resets {
			r.m.resets[k] = pr
		}
		r.m.changes = append(r.m.changes, removedChanges...)
		r.m.audit = append(r.m.audit, removedAudit...)
	})
	return nil
}
