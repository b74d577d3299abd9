package memory

import (
	"context"
	"sort"
	"time"

	"github.com/dmitrijs2005/sessionauth/internal/common"
	"github.com/dmitrijs2005/sessionauth/internal/dbx"
	"github.com/dmitrijs2005/sessionauth/internal/server/models"
)

type sessionRepo struct {
	m  *Manager
	db dbx.DBTX
}

func (r *sessionRepo) Create(_ context.Context, s *models.Session) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if err := r.m.userExists(s.UserID); err != nil {
		return err
	}
	c := *s
	r.m.sessions[c.ID] = &c
	r.m.onRollback(r.db, func() { delete(r.m.sessions, c.ID) })
	return nil
}

func (r *sessionRepo) find(match func(s *models.Session) bool) (*models.Session, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, s := range r.m.sessions {
		if match(s) {
			c := *s
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *sessionRepo) GetByID(_ context.Context, id string) (*models.Session, error) {
	return r.find(func(s *models.Session) bool { return s.ID == id })
}

func (r *sessionRepo) GetByTokenHash(_ context.Context, tokenHash string) (*models.Session, error) {
	return r.find(func(s *models.Session) bool { return s.TokenHash == tokenHash })
}

func (r *sessionRepo) GetByRefreshTokenHash(_ context.Context, refreshHash string) (*models.Session, error) {
	return r.find(func(s *models.Session) bool { return s.RefreshTokenHash == refreshHash })
}

func (r *sessionRepo) ListActiveByUser(_ context.Context, userID string) ([]*models.Session, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var out []*models.Session
	for _, s := range r.m.sessions {
		if s.UserID == userID && s.Status == models.SessionActive {
			c := *s
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *sessionRepo) Touch(_ context.Context, id string, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if s, ok := r.m.sessions[id]; ok {
		prev := s.LastUsedAt
		r.m.onRollback(r.db, func() { s.LastUsedAt = prev })
		t := at
		s.LastUsedAt = &t
	}
	return nil
}

// updateActive applies fn to every active session matched by match and
// returns how many were changed.
func (r *sessionRepo) updateActive(match func(s *models.Session) bool, fn func(s *models.Session)) int64 {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var n int64
	for _, s := range r.m.sessions {
		if s.Status == models.SessionActive && match(s) {
			prev := *s
			r.m.onRollback(r.db, func() { *s = prev })
			fn(s)
			n++
		}
	}
	return n
}

func revokeAt(at time.Time) func(s *models.Session) {
	return func(s *models.Session) {
		t := at
		s.Status = models.SessionRevoked
		s.RevokedAt = &t
	}
}

func (r *sessionRepo) Revoke(_ context.Context, id string, at time.Time) (bool, error) {
	n := r.updateActive(func(s *models.Session) bool { return s.ID == id }, revokeAt(at))
	return n > 0, nil
}

func (r *sessionRepo) Expire(_ context.Context, id string) (bool, error) {
	n := r.updateActive(func(s *models.Session) bool { return s.ID == id }, func(s *models.Session) {
		s.Status = models.SessionExpired
	})
	return n > 0, nil
}

func (r *sessionRepo) MarkRotated(_ context.Context, id string, replacedBy string, at time.Time) error {
	n := r.updateActive(func(s *models.Session) bool { return s.ID == id }, func(s *models.Session) {
		t, next := at, replacedBy
		revokeAt(at)(s)
		s.LastRefreshAt = &t
		s.ReplacedBy = &next
	})
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *sessionRepo) RevokeFamily(_ context.Context, familyID string, at time.Time) (int64, error) {
	return r.updateActive(func(s *models.Session) bool { return s.FamilyID == familyID }, revokeAt(at)), nil
}

func (r *sessionRepo) RevokeByUser(_ context.Context, userID string, at time.Time) (int64, error) {
	return r.updateActive(func(s *models.Session) bool { return s.UserID == userID }, revokeAt(at)), nil
}

func (r *sessionRepo) ExpireStale(_ context.Context, now time.Time) (int64, error) {
	stale := func(s *models.Session) bool {
		return !now.Before(s.RefreshTokenExpiresAt) || s.IdleExpired(now)
	}
	return r.updateActive(stale, func(s *models.Session) { s.Status = models.SessionExpired }), nil
}
