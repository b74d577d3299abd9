// Package repomanager vends the per-table repositories bound to a
// database handle (pool or transaction) and applies the schema.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/sessionauth/internal/dbx"
	"github.com/dmitrijs2005/sessionauth/internal/server/repositories/auditlogs"
	"github.com/dmitrijs2005/sessionauth/internal/server/repositories/failedlogins"
	"github.com/dmitrijs2005/sessionauth/internal/server/repositories/passwordchanges"
	"github.com/dmitrijs2005/sessionauth/internal/server/repositories/passwordresets"
	"github.com/dmitrijs2005/sessionauth/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/sessionauth/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	FailedLogins(db dbx.DBTX) failedlogins.Repository
	PasswordResets(db dbx.DBTX) passwordresets.Repository
	PasswordChanges(db dbx.DBTX) passwordchanges.Repository
	AuditLogs(db dbx.DBTX) auditlogs.Repository
}
