// Package server wires the authentication core together: it opens the
// store (PostgreSQL or in-memory), applies the schema, builds the services
// and runs the background maintenance loops until shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/sessionauth/internal/cryptox"
	"github.com/dmitrijs2005/sessionauth/internal/dbx"
	"github.com/dmitrijs2005/sessionauth/internal/logging"
	"github.com/dmitrijs2005/sessionauth/internal/server/auditarchive"
	"github.com/dmitrijs2005/sessionauth/internal/server/config"
	"github.com/dmitrijs2005/sessionauth/internal/server/repositories/memory"
	"github.com/dmitrijs2005/sessionauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sessionauth/internal/server/services"
)

// ErrArchiveDisabled is returned by Archive when no bucket is configured.
var ErrArchiveDisabled = errors.New("audit archive is not configured")

// Seams for tests.
var (
	sqlOpen     = sql.Open
	newS3Client = func(ctx context.Context, cfg auditarchive.Config) (auditarchive.ObjectStore, error) {
		return auditarchive.NewS3Client(ctx, cfg)
	}
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB

	Store dbx.Store
	Repos repomanager.RepositoryManager

	Credentials *services.CredentialStore
	Lockout     *services.LockoutTracker
	Sessions    *services.SessionManager
	Audit       *services.AuditRecorder
	Auth        *services.AuthService
	Users       *services.UserService

	archiver *auditarchive.Archiver
}

// NewApp opens the store described by c, brings the schema up to date and
// builds every service. The caller must Close the app.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	policy, err := services.ParseLockoutPolicy(c.LockoutPolicy)
	if err != nil {
		return nil, err
	}

	app := &App{config: c, logger: logger}

	if err := app.openStore(ctx); err != nil {
		return nil, err
	}

	opts := []services.Option{services.WithLogger(logger)}
	hasher := cryptox.NewHasher(cryptox.DefaultParams)

	app.Credentials, err = services.NewCredentialStore(app.Store, app.Repos, hasher, opts...)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("credential store init error: %w", err)
	}

	app.Lockout = services.NewLockoutTracker(app.Store, app.Repos, services.LockoutConfig{
		Threshold:  c.LockoutThreshold,
		BaseWindow: c.LockoutWindow,
		MaxWindow:  c.LockoutMaxWindow,
		Policy:     policy,
	}, opts...)

	app.Sessions = services.NewSessionManager(app.Store, app.Repos, services.SessionConfig{
		SecretKey:   []byte(c.SecretKey),
		AccessTTL:   c.AccessTokenTTL,
		RefreshTTL:  c.RefreshTokenTTL,
		IdleTimeout: c.IdleTimeout,
	}, opts...)

	app.Audit = services.NewAuditRecorder(app.Store, app.Repos, services.AuditConfig{
		Attempts:  uint64(c.AuditAttempts),
		BaseDelay: c.AuditRetryDelay,
		Timeout:   c.AuditTimeout,
	}, opts...)

	app.Auth = services.NewAuthService(app.Store, app.Repos, app.Credentials, app.Lockout, app.Sessions, app.Audit, opts...)
	app.Users = services.NewUserService(app.Store, app.Repos, hasher, app.Credentials, app.Lockout,
		app.Sessions, app.Audit, c.PasswordResetTTL, opts...)

	if c.ArchiveBucket != "" {
		acfg := auditarchive.Config{
			Bucket:    c.ArchiveBucket,
			Prefix:    c.ArchivePrefix,
			Region:    c.S3Region,
			Endpoint:  c.S3BaseEndpoint,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
			BatchSize: c.ArchiveBatchSize,
		}
		client, err := newS3Client(ctx, acfg)
		if err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("s3 client init error: %w", err)
		}
		app.archiver = auditarchive.New(app.Store, app.Repos, client, acfg, logger)
	}

	return app, nil
}

func (app *App) openStore(ctx context.Context) error {
	if app.config.DatabaseDSN == "" {
		app.logger.Warn(ctx, "no database configured, using in-memory store")
		app.Store = memory.NewStore()
		app.Repos = memory.NewManager()
		return nil
	}

	db, err := sqlOpen("pgx", app.config.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return fmt.Errorf("migrations error: %w", err)
	}

	app.db = db
	app.Store = dbx.NewSQLStore(db)
	app.Repos = repos
	return nil
}

// Close releases the database pool, if any.
func (app *App) Close() error {
	if app.db == nil {
		return nil
	}
	return app.db.Close()
}

// Sweep expires lapsed sessions once.
func (app *App) Sweep(ctx context.Context) (int64, error) {
	n, err := app.Sessions.SweepExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		app.logger.Info(ctx, "expired sessions swept", "count", n)
	}
	return n, nil
}

// Archive exports new audit rows once.
func (app *App) Archive(ctx context.Context) (int, error) {
	if app.archiver == nil {
		return 0, ErrArchiveDisabled
	}
	return app.archiver.Run(ctx)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// every calls fn each interval until ctx is done. Errors are logged and do
// not stop the loop.
func (app *App) every(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				app.logger.Error(ctx, name+" failed", "error", err)
			}
		}
	}
}

// Run starts the maintenance loops and blocks until ctx is cancelled or
// the process receives a termination signal.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "in_memory", app.db == nil, "archive", app.archiver != nil)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.every(ctx, "session sweep", app.config.SweepInterval, func(ctx context.Context) error {
			_, err := app.Sweep(ctx)
			return err
		})
	}()

	if app.archiver != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.every(ctx, "audit archive", app.config.ArchiveInterval, func(ctx context.Context) error {
				_, err := app.Archive(ctx)
				return err
			})
		}()
	}

	<-ctx.Done()
	wg.Wait()

	app.logger.Info(context.Background(), "App stopped", "audit_failures", app.Audit.Failures())
}
