// Package services contains the server-side business logic of the
// authentication core: credential checks, lockout tracking, session
// lifecycle, audit recording and the orchestrating Auth and User services.
//
// Every service works against a dbx.Store and a repomanager.RepositoryManager
// so the same code runs on PostgreSQL and on the in-memory store.
package services

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/sessionauth/internal/common"
	"github.com/dmitrijs2005/sessionauth/internal/logging"
)

// env is the ambient wiring shared by all services.
type env struct {
	now func() time.Time
	log logging.Logger
}

// Option customises a service at construction.
type Option func(*env)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *env) { e.now = now }
}

func WithLogger(l logging.Logger) Option {
	return func(e *env) { e.log = l }
}

func newEnv(module string, opts []Option) env {
	e := env{now: time.Now, log: logging.Nop{}}
	for _, o := range opts {
		o(&e)
	}
	e.log = e.log.With("module", module)
	return e
}

// unavailable marks an unexpected store failure. Callers match it with
// errors.Is(err, common.ErrStoreUnavailable).
func unavailable(err error) error {
	return fmt.Errorf("%w: %w", common.ErrStoreUnavailable, err)
}
