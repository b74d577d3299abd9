// Package memory keeps every table in process memory. It backs the server
// when no DSN is configured and the service tests. Transactions are
// serialised and undone row by row when they fail.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/sessionauth/internal/dbx"
	"github.com/dmitrijs2005/sessionauth/internal/server/models"
	"github.com/dmitrijs2005/sessionauth/internal/server/repositories/auditlogs"
	"github.com/dmitrijs2005/sessionauth/internal/server/repositories/failedlogins"
	"github.com/dmitrijs2005/sessionauth/internal/server/repositories/passwordchanges"
	"github.com/dmitrijs2005/sessionauth/internal/server/repositories/passwordresets"
	"github.com/dmitrijs2005/sessionauth/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/sessionauth/internal/server/repositories/users"
)

var (
	errForeignKey = errors.New("foreign key violation")
	errNoSQL      = errors.New("memory store does not run SQL")
)

// Manager implements repomanager.RepositoryManager. The DBTX arguments are
// ignored; all repositories share the same tables.
type Manager struct {
	mu       sync.Mutex
	users    map[string]*models.User
	byName   map[string]string
	sessions map[string]*models.Session
	failed   map[string]*models.FailedLogin
	resets   map[string]*models.PasswordReset
	changes  []*models.PasswordChangeLog
	audit    []*models.AuditLog
}

func NewManager() *Manager {
	return &Manager{
		users:    make(map[string]*models.User),
		byName:   make(map[string]string),
		sessions: make(map[string]*models.Session),
		failed:   make(map[string]*models.FailedLogin),
		resets:   make(map[string]*models.PasswordReset),
	}
}

// RunMigrations is a no-op: the tables are plain maps.
func (m *Manager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m *Manager) Users(db dbx.DBTX) users.Repository {
	return &userRepo{m: m, db: db}
}

func (m *Manager) Sessions(db dbx.DBTX) sessions.Repository {
	return &sessionRepo{m: m, db: db}
}

func (m *Manager) FailedLogins(db dbx.DBTX) failedlogins.Repository {
	return &failedLoginRepo{m: m, db: db}
}

func (m *Manager) PasswordResets(db dbx.DBTX) passwordresets.Repository {
	return &resetRepo{m: m, db: db}
}

func (m *Manager) PasswordChanges(db dbx.DBTX) passwordchanges.Repository {
	return &changeRepo{m: m, db: db}
}

func (m *Manager) AuditLogs(db dbx.DBTX) auditlogs.Repository {
	return &auditRepo{m: m, db: db}
}

// userExists must be called with mu held.
func (m *Manager) userExists(id string) error {
	if _, ok := m.users[id]; !ok {
		return fmt.Errorf("db error: %w", errForeignKey)
	}
	return nil
}

// onRollback queues fn to run, with mu held, if the transaction behind db
// fails. Outside a transaction it does nothing. Must be called with mu held.
func (m *Manager) onRollback(db dbx.DBTX, fn func()) {
	t, ok := db.(*tx)
	if !ok {
		return
	}
	t.undo = append(t.undo, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		fn()
	})
}

// tx is the handle WithTx passes to its function. It only collects undo
// steps; the repositories never run SQL through it.
type tx struct {
	undo []func()
}

func (*tx) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errNoSQL
}

func (*tx) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errNoSQL
}

func (*tx) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// Store implements dbx.Store on top of a Manager. Transactions hold a
// single mutex for their whole duration, which gives row locks the same
// observable effect as SELECT ... FOR UPDATE. A transaction whose function
// fails or panics has every change it made undone.
type Store struct {
	txMu sync.Mutex
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Conn() dbx.DBTX {
	return nil
}

func (s *Store) WithTx(ctx context.Context, fn dbx.TxFunc) (err error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	t := &tx{}
	defer func() {
		if p := recover(); p != nil {
			t.rollback()
			panic(p)
		}
		if err != nil {
			t.rollback()
		}
	}()

	return fn(ctx, t)
}

// without returns s minus the element v, keeping order.
func without[T comparable](s []T, v T) []T {
	out := s[:0]
	for _, e := range s {
		if e != v {
			out = append(out, e)
		}
	}
	return out
}
