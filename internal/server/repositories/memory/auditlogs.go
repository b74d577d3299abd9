package memory

import (
	"context"
	"sort"
	"time"

	"github.com/dmitrijs2005/sessionauth/internal/dbx"
	"github.com/dmitrijs2005/sessionauth/internal/server/models"
)

type auditRepo struct {
	m  *Manager
	db dbx.DBTX
}

func (r *auditRepo) Create(_ context.Context, e *models.AuditLog) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if err := r.m.userExists(e.UserID); err != nil {
		return err
	}
	c := *e
	r.m.audit = append(r.m.audit, &c)
	r.m.onRollback(r.db, func() { r.m.audit = without(r.m.audit, &c) })
	return nil
}

func (r *auditRepo) sorted() []*models.AuditLog {
	out := make([]*models.AuditLog, 0, len(r.m.audit))
	for _, e := range r.m.audit {
		c := *e
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *auditRepo) ListByUser(_ context.Context, userID string, limit int) ([]*models.AuditLog, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	all := r.sorted()
	var out []*models.AuditLog
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		if all[i].UserID == userID {
			out = append(out, all[i])
		}
	}
	return out, nil
}

func (r *auditRepo) ListAfter(_ context.Context, after time.Time, afterID string, limit int) ([]*models.AuditLog, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var out []*models.AuditLog
	for _, e := range r.sorted() {
		if len(out) == limit {
			break
		}
		if e.CreatedAt.After(after) || (e.CreatedAt.Equal(after) && e.ID > afterID) {
			out = append(out, e)
		}
	}
	return out, nil
}
