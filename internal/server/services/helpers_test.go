package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/sessionauth/internal/cryptox"
	"github.com/dmitrijs2005/sessionauth/internal/server/models"
	"github.com/dmitrijs2005/sessionauth/internal/server/repositories/memory"
	"github.com/stretchr/testify/require"
)

// cheapParams keep argon2 fast in tests.
var cheapParams = cryptox.Params{Memory: 64, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

var client = models.ClientInfo{IPAddress: "10.0.0.1", UserAgent: "test-agent"}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// stack is every service wired over the in-memory store.
type stack struct {
	clock    *fakeClock
	manager  *memory.Manager
	store    *memory.Store
	creds    *CredentialStore
	lockout  *LockoutTracker
	sessions *SessionManager
	audit    *AuditRecorder
	auth     *AuthService
	users    *UserService
}

func defaultLockout() LockoutConfig {
	return LockoutConfig{Threshold: 5, BaseWindow: 15 * time.Minute, MaxWindow: 4 * time.Hour, Policy: LockoutExponential}
}

func defaultSessions() SessionConfig {
	return SessionConfig{
		SecretKey:   []byte("test-secret"),
		AccessTTL:   15 * time.Minute,
		RefreshTTL:  24 * time.Hour,
		IdleTimeout: 30 * time.Minute,
	}
}

func newStack(t *testing.T) *stack {
	return newStackWith(t, defaultLockout(), defaultSessions())
}

func newStackWith(t *testing.T, lc LockoutConfig, sc SessionConfig) *stack {
	t.Helper()

	st := &stack{clock: newFakeClock(), manager: memory.NewManager(), store: memory.NewStore()}
	opts := []Option{WithClock(st.clock.Now)}
	hasher := cryptox.NewHasher(cheapParams)

	var err error
	st.creds, err = NewCredentialStore(st.store, st.manager, hasher, opts...)
	require.NoError(t, err)
	st.lockout = NewLockoutTracker(st.store, st.manager, lc, opts...)
	st.sessions = NewSessionManager(st.store, st.manager, sc, opts...)
	st.audit = NewAuditRecorder(st.store, st.manager, AuditConfig{Attempts: 3, BaseDelay: time.Millisecond, Timeout: time.Second}, opts...)
	st.auth = NewAuthService(st.store, st.manager, st.creds, st.lockout, st.sessions, st.audit, opts...)
	st.users = NewUserService(st.store, st.manager, hasher, st.creds, st.lockout, st.sessions, st.audit, time.Hour, opts...)
	return st
}

func (st *stack) register(t *testing.T, name, password string) *models.User {
	t.Helper()
	u, err := st.users.Register(context.Background(), name, password, client)
	require.NoError(t, err)
	return u
}

// actions lists the audit trail of the user. Entries sharing a timestamp
// come in no particular order.
func (st *stack) actions(t *testing.T, userID string) []models.AuditAction {
	t.Helper()
	list, err := st.manager.AuditLogs(nil).ListByUser(context.Background(), userID, 1000)
	require.NoError(t, err)

	out := make([]models.AuditAction, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		out = append(out, list[i].Action)
	}
	return out
}

func countAction(actions []models.AuditAction, a models.AuditAction) int {
	n := 0
	for _, x := range actions {
		if x == a {
			n++
		}
	}
	return n
}
