package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/sessionauth/internal/common"
	"github.com/dmitrijs2005/sessionauth/internal/dbx"
	"github.com/dmitrijs2005/sessionauth/internal/server/models"
	"github.com/dmitrijs2005/sessionauth/internal/server/repositories/repomanager"
)

// TokenPair is what a successful login or refresh hands to the caller.
type TokenPair struct {
	SessionID        string
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

func newTokenPair(i *IssuedSession) *TokenPair {
	return &TokenPair{
		SessionID:        i.Session.ID,
		AccessToken:      i.AccessToken,
		RefreshToken:     i.RefreshToken,
		AccessExpiresAt:  i.Session.ExpiresAt,
		RefreshExpiresAt: i.Session.RefreshTokenExpiresAt,
	}
}

// AuthService orchestrates login, logout, refresh and validation on top of
// the credential store, lockout tracker, session manager and audit recorder.
type AuthService struct {
	store       dbx.Store
	repomanager repomanager.RepositoryManager
	credentials *CredentialStore
	lockout     *LockoutTracker
	sessions    *SessionManager
	audit       *AuditRecorder
	env
}

func NewAuthService(store dbx.Store, m repomanager.RepositoryManager, credentials *CredentialStore,
	lockout *LockoutTracker, sessions *SessionManager, audit *AuditRecorder, opts ...Option) *AuthService {
	return &AuthService{
		store:       store,
		repomanager: m,
		credentials: credentials,
		lockout:     lockout,
		sessions:    sessions,
		audit:       audit,
		env:         newEnv("auth", opts),
	}
}

// Login authenticates userName and opens a session. The attempt is counted
// by the lockout tracker before the password is checked and cleared again
// on success. Unknown users, wrong passwords, locked and inactive accounts
// all fail with errors that print the same text.
func (s *AuthService) Login(ctx context.Context, userName, password string, client models.ClientInfo) (*TokenPair, error) {
	user, err := s.credentials.Lookup(ctx, userName)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}
	if user == nil {
		s.credentials.CheckPassword(ctx, nil, password)
		s.log.Info(ctx, "login for unknown user", "ip", client.IPAddress)
		return nil, common.ErrInvalidCredentials
	}

	attempt, err := s.lockout.Reserve(ctx, user.ID)
	if err != nil {
		if errors.Is(err, common.ErrAccountLocked) {
			s.credentials.CheckPassword(ctx, nil, password)
			s.audit.Record(ctx, user.ID, models.ActionAccountLoginBlocked, client)
		}
		return nil, err
	}

	if !s.credentials.CheckPassword(ctx, user, password) {
		s.audit.Record(ctx, user.ID, models.ActionAccountLoginFailed, client)
		if attempt.StartedLockout() {
			s.log.Warn(ctx, "account locked after failed logins", "user_id", user.ID,
				"failures", attempt.Count, "until", attempt.LockedUntil)
			s.audit.Record(ctx, user.ID, models.ActionAccountLockout, client)
		}
		return nil, common.ErrInvalidCredentials
	}

	if !user.IsActive {
		if err := s.lockout.RecordSuccess(ctx, user.ID); err != nil {
			return nil, err
		}
		s.audit.Record(ctx, user.ID, models.ActionAccountLoginBlocked, client)
		return nil, common.ErrAccountInactive
	}

	var issued *IssuedSession
	err = s.store.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.lockout.reset(ctx, tx, user.ID); err != nil {
			return err
		}
		if err := s.repomanager.Users(tx).TouchLastLogin(ctx, user.ID, s.now()); err != nil {
			return err
		}
		var err error
		issued, err = s.sessions.issue(ctx, tx, user.ID, "", client)
		return err
	})
	if err != nil {
		return nil, unavailable(err)
	}

	s.audit.Record(ctx, user.ID, models.ActionAccountLogin, client)
	s.log.Info(ctx, "user logged in", "user_id", user.ID, "session_id", issued.Session.ID)
	return newTokenPair(issued), nil
}

// Logout revokes the session. Logging out twice succeeds.
func (s *AuthService) Logout(ctx context.Context, sessionID string, client models.ClientInfo) error {
	session, err := s.sessions.revoke(ctx, sessionID)
	if err != nil {
		return err
	}
	s.audit.Record(ctx, session.UserID, models.ActionAccountLogout, client)
	return nil
}

// RefreshSession rotates the session behind refreshToken. Reuse of a
// rotated token is audited as both a reuse and a lockout of the chain.
func (s *AuthService) RefreshSession(ctx context.Context, refreshToken string, client models.ClientInfo) (*TokenPair, error) {
	issued, presented, err := s.sessions.refresh(ctx, refreshToken, client)
	if err != nil {
		if errors.Is(err, common.ErrRefreshReused) && presented != nil {
			s.audit.Record(ctx, presented.UserID, models.ActionSessionRefreshReused, client)
			s.audit.Record(ctx, presented.UserID, models.ActionAccountLockout, client)
		}
		return nil, err
	}

	s.audit.Record(ctx, issued.Session.UserID, models.ActionSessionRefreshed, client)
	return newTokenPair(issued), nil
}

// ValidateSession resolves an access token to its active session.
func (s *AuthService) ValidateSession(ctx context.Context, accessToken string) (*models.Session, error) {
	return s.sessions.Validate(ctx, accessToken)
}
