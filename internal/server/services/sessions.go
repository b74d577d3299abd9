package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/sessionauth/internal/common"
	"github.com/dmitrijs2005/sessionauth/internal/cryptox"
	"github.com/dmitrijs2005/sessionauth/internal/dbx"
	"github.com/dmitrijs2005/sessionauth/internal/server/auth"
	"github.com/dmitrijs2005/sessionauth/internal/server/models"
	"github.com/dmitrijs2005/sessionauth/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

type SessionConfig struct {
	SecretKey   []byte
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	IdleTimeout time.Duration
}

// IssuedSession is a freshly created session together with the raw tokens.
// The tokens exist only here; the store keeps their digests.
type IssuedSession struct {
	Session      *models.Session
	AccessToken  string
	RefreshToken string
}

// SessionManager issues, validates, rotates and revokes sessions.
type SessionManager struct {
	store       dbx.Store
	repomanager repomanager.RepositoryManager
	cfg         SessionConfig
	env
}

func NewSessionManager(store dbx.Store, m repomanager.RepositoryManager, cfg SessionConfig, opts ...Option) *SessionManager {
	return &SessionManager{
		store:       store,
		repomanager: m,
		cfg:         cfg,
		env:         newEnv("sessions", opts),
	}
}

// Issue starts a new session chain for the user.
func (m *SessionManager) Issue(ctx context.Context, userID string, client models.ClientInfo) (*IssuedSession, error) {
	var issued *IssuedSession
	err := m.store.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		issued, err = m.issue(ctx, tx, userID, "", client)
		return err
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return issued, nil
}

// issue creates a session in familyID, or a new family rooted at the
// session itself when familyID is empty.
func (m *SessionManager) issue(ctx context.Context, tx dbx.DBTX, userID, familyID string, client models.ClientInfo) (*IssuedSession, error) {
	now := m.now()
	id := uuid.NewString()
	if familyID == "" {
		familyID = id
	}

	access, err := auth.GenerateToken(userID, id, m.cfg.SecretKey, now, m.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := common.MakeRandHexString(common.TokenBytes)
	if err != nil {
		return nil, err
	}

	s := &models.Session{
		ID:                    id,
		UserID:                userID,
		FamilyID:              familyID,
		TokenHash:             cryptox.HashToken(access),
		RefreshTokenHash:      cryptox.HashToken(refresh),
		Status:                models.SessionActive,
		CreatedAt:             now,
		ExpiresAt:             now.Add(m.cfg.AccessTTL),
		UserAgent:             client.UserAgent,
		IPAddress:             client.IPAddress,
		RefreshTokenExpiresAt: now.Add(m.cfg.RefreshTTL),
	}
	if m.cfg.IdleTimeout > 0 {
		minutes := int(m.cfg.IdleTimeout / time.Minute)
		if minutes < 1 {
			minutes = 1
		}
		s.TimeoutMinutes = &minutes
	}

	if err := m.repomanager.Sessions(tx).Create(ctx, s); err != nil {
		return nil, err
	}

	return &IssuedSession{Session: s, AccessToken: access, RefreshToken: refresh}, nil
}

// Validate resolves an access token to its active session and stamps
// last_used_at. A session whose idle timeout elapsed is marked expired.
func (m *SessionManager) Validate(ctx context.Context, accessToken string) (*models.Session, error) {
	now := m.now()

	claims, err := auth.ParseToken(accessToken, m.cfg.SecretKey, now)
	accessExpired := errors.Is(err, common.ErrSessionExpired)
	if err != nil && !accessExpired {
		return nil, common.ErrSessionNotFound
	}

	var (
		session *models.Session
		result  error
	)
	err = m.store.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := m.repomanager.Sessions(tx)

		s, err := repo.GetByTokenHash(ctx, cryptox.HashToken(accessToken))
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				result = common.ErrSessionNotFound
				return nil
			}
			return err
		}
		if s.ID != claims.SessionID {
			result = common.ErrSessionNotFound
			return nil
		}

		switch s.Status {
		case models.SessionRevoked:
			result = common.ErrSessionRevoked
			return nil
		case models.SessionExpired:
			result = common.ErrSessionExpired
			return nil
		}

		if s.IdleExpired(now) || !now.Before(s.RefreshTokenExpiresAt) {
			if _, err := repo.Expire(ctx, s.ID); err != nil {
				return err
			}
			result = common.ErrSessionExpired
			return nil
		}
		if accessExpired || !now.Before(s.ExpiresAt) {
			result = common.ErrSessionExpired
			return nil
		}

		if err := repo.Touch(ctx, s.ID, now); err != nil {
			return err
		}
		s.LastUsedAt = &now
		session = s
		return nil
	})
	if err != nil {
		return nil, unavailable(err)
	}
	if result != nil {
		return nil, result
	}
	return session, nil
}

// Refresh rotates the session behind refreshToken: a successor is issued
// in the same family and the old session is retired. Presenting a refresh
// token that was already rotated revokes the whole family and yields
// common.ErrRefreshReused.
func (m *SessionManager) Refresh(ctx context.Context, refreshToken string, client models.ClientInfo) (*IssuedSession, error) {
	issued, _, err := m.refresh(ctx, refreshToken, client)
	return issued, err
}

// refresh also returns the presented session so callers can attribute the
// outcome to its user.
func (m *SessionManager) refresh(ctx context.Context, refreshToken string, client models.ClientInfo) (*IssuedSession, *models.Session, error) {
	var (
		issued  *IssuedSession
		current *models.Session
		result  error
	)

	err := m.store.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		now := m.now()
		repo := m.repomanager.Sessions(tx)

		s, err := repo.GetByRefreshTokenHash(ctx, cryptox.HashToken(refreshToken))
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				result = common.ErrSessionNotFound
				return nil
			}
			return err
		}
		current = s

		if s.ReplacedBy != nil {
			n, err := repo.RevokeFamily(ctx, s.FamilyID, now)
			if err != nil {
				return err
			}
			m.log.Warn(ctx, "refresh token reused, family revoked",
				"user_id", s.UserID, "family_id", s.FamilyID, "revoked", n)
			result = common.ErrRefreshReused
			return nil
		}

		switch s.Status {
		case models.SessionRevoked:
			result = common.ErrSessionRevoked
			return nil
		case models.SessionExpired:
			result = common.ErrSessionExpired
			return nil
		}

		if s.IdleExpired(now) || !now.Before(s.RefreshTokenExpiresAt) {
			if _, err := repo.Expire(ctx, s.ID); err != nil {
				return err
			}
			result = common.ErrSessionExpired
			return nil
		}

		next, err := m.issue(ctx, tx, s.UserID, s.FamilyID, client)
		if err != nil {
			return err
		}
		if err := repo.MarkRotated(ctx, s.ID, next.Session.ID, now); err != nil {
			return err
		}
		issued = next
		return nil
	})
	if err != nil {
		return nil, current, unavailable(err)
	}
	if result != nil {
		return nil, current, result
	}
	return issued, current, nil
}

// Revoke ends a session. Revoking a session that is no longer active is a
// no-op; an unknown id yields common.ErrSessionNotFound.
func (m *SessionManager) Revoke(ctx context.Context, sessionID string) error {
	_, err := m.revoke(ctx, sessionID)
	return err
}

func (m *SessionManager) revoke(ctx context.Context, sessionID string) (*models.Session, error) {
	var (
		session *models.Session
		result  error
	)
	err := m.store.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := m.repomanager.Sessions(tx)

		s, err := repo.GetByID(ctx, sessionID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				result = common.ErrSessionNotFound
				return nil
			}
			return err
		}
		session = s

		_, err = repo.Revoke(ctx, sessionID, m.now())
		return err
	})
	if err != nil {
		return nil, unavailable(err)
	}
	if result != nil {
		return nil, result
	}
	return session, nil
}

// RevokeAllForUser ends every active session of the user.
func (m *SessionManager) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	n, err := m.revokeAllForUser(ctx, m.store.Conn(), userID)
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

func (m *SessionManager) revokeAllForUser(ctx context.Context, db dbx.DBTX, userID string) (int64, error) {
	return m.repomanager.Sessions(db).RevokeByUser(ctx, userID, m.now())
}

// ListActive returns the user's active sessions, oldest first.
func (m *SessionManager) ListActive(ctx context.Context, userID string) ([]*models.Session, error) {
	list, err := m.repomanager.Sessions(m.store.Conn()).ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, unavailable(err)
	}
	return list, nil
}

// SweepExpired marks every active session whose refresh token lapsed or
// whose idle timeout elapsed as expired.
func (m *SessionManager) SweepExpired(ctx context.Context) (int64, error) {
	n, err := m.repomanager.Sessions(m.store.Conn()).ExpireStale(ctx, m.now())
	if err != nil {
		return 0, unavailable(err)
	}
	if n > 0 {
		m.log.Info(ctx, "expired stale sessions", "count", n)
	}
	return n, nil
}
