package services

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/sessionauth/internal/common"
	"github.com/dmitrijs2005/sessionauth/internal/cryptox"
	"github.com/dmitrijs2005/sessionauth/internal/dbx"
	"github.com/dmitrijs2005/sessionauth/internal/server/models"
	"github.com/dmitrijs2005/sessionauth/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// UserService manages accounts: registration, activation, purge, password
// change and reset, and manual unlock.
type UserService struct {
	store       dbx.Store
	repomanager repomanager.RepositoryManager
	hasher      *cryptox.Hasher
	credentials *CredentialStore
	lockout     *LockoutTracker
	sessions    *SessionManager
	audit       *AuditRecorder
	resetTTL    time.Duration
	env
}

func NewUserService(store dbx.Store, m repomanager.RepositoryManager, hasher *cryptox.Hasher, credentials *CredentialStore,
	lockout *LockoutTracker, sessions *SessionManager, audit *AuditRecorder, resetTTL time.Duration, opts ...Option) *UserService {
	return &UserService{
		store:       store,
		repomanager: m,
		hasher:      hasher,
		credentials: credentials,
		lockout:     lockout,
		sessions:    sessions,
		audit:       audit,
		resetTTL:    resetTTL,
		env:         newEnv("users", opts),
	}
}

func checkPasswordPolicy(password string) error {
	if utf8.RuneCountInString(password) < common.MinPasswordLength {
		return common.ErrPasswordPolicy
	}
	return nil
}

// Register creates an active user.
func (s *UserService) Register(ctx context.Context, userName, password string, client models.ClientInfo) (*models.User, error) {
	name, err := NormalizeUserName(userName)
	if err != nil {
		return nil, err
	}
	if err := checkPasswordPolicy(password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.store.Conn()).Create(ctx, &models.User{
		ID:           uuid.NewString(),
		UserName:     name,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    s.now(),
	})
	if err != nil {
		if errors.Is(err, common.ErrUserExists) {
			return nil, err
		}
		return nil, unavailable(err)
	}

	s.audit.Record(ctx, user.ID, models.ActionAccountCreated, client)
	s.log.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// GetByUserName returns the user registered under the (normalised) name.
func (s *UserService) GetByUserName(ctx context.Context, userName string) (*models.User, error) {
	return s.credentials.Lookup(ctx, userName)
}

// Deactivate soft-deletes the user and revokes every session.
func (s *UserService) Deactivate(ctx context.Context, userID string, client models.ClientInfo) error {
	if err := s.setActive(ctx, userID, false); err != nil {
		return err
	}
	s.audit.Record(ctx, userID, models.ActionAccountDeactivated, client)
	return nil
}

func (s *UserService) Activate(ctx context.Context, userID string, client models.ClientInfo) error {
	if err := s.setActive(ctx, userID, true); err != nil {
		return err
	}
	s.audit.Record(ctx, userID, models.ActionAccountActivated, client)
	return nil
}

func (s *UserService) setActive(ctx context.Context, userID string, active bool) error {
	err := s.store.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).SetActive(ctx, userID, active, s.now()); err != nil {
			return err
		}
		if active {
			return nil
		}
		_, err := s.sessions.revokeAllForUser(ctx, tx, userID)
		return err
	})
	return storeError(err)
}

// Purge hard-deletes the user; the schema cascades to every dependent row.
func (s *UserService) Purge(ctx context.Context, userID string) error {
	err := s.store.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Users(tx).Delete(ctx, userID)
	})
	if err != nil {
		return storeError(err)
	}
	s.log.Info(ctx, "user purged", "user_id", userID)
	return nil
}

// ChangePassword replaces the password after checking the current one.
// Checks of the current password are throttled by the lockout tracker like
// logins. Every attempt is logged; success revokes all sessions of the user.
func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string, client models.ClientInfo) error {
	user, err := s.repomanager.Users(s.store.Conn()).GetByID(ctx, userID)
	if err != nil {
		return storeError(err)
	}

	if err := checkPasswordPolicy(newPassword); err != nil {
		s.changeFailed(ctx, userID, client)
		return err
	}

	attempt, err := s.lockout.Reserve(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrAccountLocked) {
			s.credentials.CheckPassword(ctx, nil, oldPassword)
			s.changeFailed(ctx, userID, client)
		}
		return err
	}

	if !s.credentials.CheckPassword(ctx, user, oldPassword) {
		s.changeFailed(ctx, userID, client)
		if attempt.StartedLockout() {
			s.log.Warn(ctx, "account locked after failed password changes", "user_id", userID,
				"failures", attempt.Count, "until", attempt.LockedUntil)
			s.audit.Record(ctx, userID, models.ActionAccountLockout, client)
		}
		return common.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.applyNewPassword(ctx, tx, userID, hash, client); err != nil {
			return err
		}
		return s.lockout.reset(ctx, tx, userID)
	})
	if err != nil {
		return unavailable(err)
	}

	s.audit.Record(ctx, userID, models.ActionPasswordChanged, client)
	return nil
}

func (s *UserService) changeFailed(ctx context.Context, userID string, client models.ClientInfo) {
	err := s.repomanager.PasswordChanges(s.store.Conn()).Create(ctx, s.changeLog(userID, models.PasswordChangeFailed, client))
	if err != nil {
		s.log.Error(ctx, "password change log not written", "user_id", userID, "error", err)
	}
	s.audit.Record(ctx, userID, models.ActionPasswordChangeFailed, client)
}

func (s *UserService) changeLog(userID string, status models.PasswordChangeStatus, client models.ClientInfo) *models.PasswordChangeLog {
	return &models.PasswordChangeLog{
		ID:          uuid.NewString(),
		UserID:      userID,
		RequestTime: s.now(),
		Status:      status,
		IPAddress:   client.IPAddress,
		UserAgent:   client.UserAgent,
	}
}

// applyNewPassword stores hash, logs the change and ends every session.
func (s *UserService) applyNewPassword(ctx context.Context, tx dbx.DBTX, userID, hash string, client models.ClientInfo) error {
	if err := s.repomanager.Users(tx).UpdatePasswordHash(ctx, userID, hash, s.now()); err != nil {
		return err
	}
	if err := s.repomanager.PasswordChanges(tx).Create(ctx, s.changeLog(userID, models.PasswordChangeSuccess, client)); err != nil {
		return err
	}
	_, err := s.sessions.revokeAllForUser(ctx, tx, userID)
	return err
}

// RequestReset issues a single-use reset token for the user. Only its
// digest is stored. Unknown and inactive accounts get no token but no
// error either, so callers answer every request the same way: an empty
// token means nothing is to be delivered.
func (s *UserService) RequestReset(ctx context.Context, userName string, client models.ClientInfo) (string, error) {
	user, err := s.credentials.Lookup(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.log.Info(ctx, "password reset for unknown user", "ip", client.IPAddress)
			return "", nil
		}
		return "", err
	}
	if !user.IsActive {
		s.log.Info(ctx, "password reset for inactive user", "user_id", user.ID)
		return "", nil
	}

	token, err := common.MakeRandHexString(common.TokenBytes)
	if err != nil {
		return "", err
	}

	now := s.now()
	err = s.repomanager.PasswordResets(s.store.Conn()).Create(ctx, &models.PasswordReset{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: cryptox.HashToken(token),
		CreatedAt: now,
		ExpiresAt: now.Add(s.resetTTL),
	})
	if err != nil {
		return "", unavailable(err)
	}

	s.audit.Record(ctx, user.ID, models.ActionPasswordResetRequest, client)
	return token, nil
}

// ResetPassword consumes a reset token and sets a new password. It fails
// with common.ErrorNotFound, common.ErrTokenUsed or common.ErrTokenExpired
// when the token cannot be used.
func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string, client models.ClientInfo) error {
	if err := checkPasswordPolicy(newPassword); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	var (
		userID string
		result error
	)
	err = s.store.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		now := s.now()
		resets := s.repomanager.PasswordResets(tx)

		pr, err := resets.GetByTokenHash(ctx, cryptox.HashToken(token))
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				result = common.ErrorNotFound
				return nil
			}
			return err
		}
		switch {
		case pr.UsedAt != nil:
			result = common.ErrTokenUsed
			return nil
		case !now.Before(pr.ExpiresAt):
			result = common.ErrTokenExpired
			return nil
		}

		if err := resets.MarkUsed(ctx, pr.ID, now); err != nil {
			if errors.Is(err, common.ErrTokenUsed) {
				result = err
				return nil
			}
			return err
		}
		if err := s.applyNewPassword(ctx, tx, pr.UserID, hash, client); err != nil {
			return err
		}
		userID = pr.UserID
		return s.lockout.reset(ctx, tx, pr.UserID)
	})
	if err != nil {
		return unavailable(err)
	}
	if result != nil {
		return result
	}

	s.audit.Record(ctx, userID, models.ActionPasswordReset, client)
	return nil
}

// Unlock clears a lockout before its window elapses.
func (s *UserService) Unlock(ctx context.Context, userID string, client models.ClientInfo) error {
	if _, err := s.repomanager.Users(s.store.Conn()).GetByID(ctx, userID); err != nil {
		return storeError(err)
	}
	if err := s.lockout.RecordSuccess(ctx, userID); err != nil {
		return err
	}
	s.audit.Record(ctx, userID, models.ActionAccountUnlocked, client)
	return nil
}

// storeError keeps ErrorNotFound as is and marks everything else as a
// store failure.
func storeError(err error) error {
	if err == nil || errors.Is(err, common.ErrorNotFound) {
		return err
	}
	return unavailable(err)
}
