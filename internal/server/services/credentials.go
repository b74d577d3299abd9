package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/sessionauth/internal/common"
	"github.com/dmitrijs2005/sessionauth/internal/cryptox"
	"github.com/dmitrijs2005/sessionauth/internal/dbx"
	"github.com/dmitrijs2005/sessionauth/internal/server/models"
	"github.com/dmitrijs2005/sessionauth/internal/server/repositories/repomanager"
)

// NormalizeUserName trims and lower-cases a user name. Names are matched
// case-insensitively everywhere.
func NormalizeUserName(name string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" || utf8.RuneCountInString(n) > common.MaxUserNameLength {
		return "", common.ErrInvalidUserName
	}
	return n, nil
}

// CredentialStore looks users up and verifies their passwords. It never
// writes.
type CredentialStore struct {
	store       dbx.Store
	repomanager repomanager.RepositoryManager
	hasher      *cryptox.Hasher
	dummyHash   string
	env
}

// NewCredentialStore prepares a dummy hash with the hasher's parameters so
// that verifying an unknown user costs the same as verifying a real one.
func NewCredentialStore(store dbx.Store, m repomanager.RepositoryManager, hasher *cryptox.Hasher, opts ...Option) (*CredentialStore, error) {
	secret, err := common.MakeRandHexString(common.TokenBytes)
	if err != nil {
		return nil, err
	}
	dummy, err := hasher.Hash(secret)
	if err != nil {
		return nil, err
	}

	return &CredentialStore{
		store:       store,
		repomanager: m,
		hasher:      hasher,
		dummyHash:   dummy,
		env:         newEnv("credentials", opts),
	}, nil
}

// Lookup returns the user registered under userName or common.ErrorNotFound.
func (c *CredentialStore) Lookup(ctx context.Context, userName string) (*models.User, error) {
	name, err := NormalizeUserName(userName)
	if err != nil {
		return nil, common.ErrorNotFound
	}

	user, err := c.repomanager.Users(c.store.Conn()).GetByUserName(ctx, name)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, unavailable(err)
	}
	return user, nil
}

// CheckPassword reports whether password matches the user's hash. A nil
// user is checked against the dummy hash and always fails.
func (c *CredentialStore) CheckPassword(ctx context.Context, user *models.User, password string) bool {
	encoded := c.dummyHash
	if user != nil {
		encoded = user.PasswordHash
	}

	ok, err := c.hasher.Verify(password, encoded)
	if err != nil {
		if user != nil {
			c.log.Error(ctx, "stored password hash is unreadable", "user_id", user.ID, "error", err)
		}
		return false
	}
	return ok && user != nil
}

// Verify combines Lookup and CheckPassword. Unknown users and wrong
// passwords both yield common.ErrInvalidCredentials.
func (c *CredentialStore) Verify(ctx context.Context, userName, password string) (*models.User, error) {
	user, err := c.Lookup(ctx, userName)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	if !c.CheckPassword(ctx, user, password) {
		return nil, common.ErrInvalidCredentials
	}
	return user, nil
}
