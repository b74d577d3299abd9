package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/sessionauth/internal/dbx"
	"github.com/dmitrijs2005/sessionauth/internal/server/models"
	"github.com/dmitrijs2005/sessionauth/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

type AuditConfig struct {
	// Attempts is the total number of writes tried per entry.
	Attempts  uint64
	BaseDelay time.Duration
	// Timeout bounds all attempts of one entry together.
	Timeout time.Duration
}

// AuditRecorder appends security events to audit_logs. A failed write
// never fails the operation being audited: it is retried, then logged and
// counted.
type AuditRecorder struct {
	store       dbx.Store
	repomanager repomanager.RepositoryManager
	cfg         AuditConfig
	failures    atomic.Int64
	env
}

func NewAuditRecorder(store dbx.Store, m repomanager.RepositoryManager, cfg AuditConfig, opts ...Option) *AuditRecorder {
	if cfg.Attempts == 0 {
		cfg.Attempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 10 * time.Millisecond
	}
	return &AuditRecorder{
		store:       store,
		repomanager: m,
		cfg:         cfg,
		env:         newEnv("audit", opts),
	}
}

// Record writes one entry. The write outlives cancellation of ctx.
func (r *AuditRecorder) Record(ctx context.Context, userID string, action models.AuditAction, client models.ClientInfo) {
	if userID == "" {
		r.log.Info(ctx, "audit event without user", "action", action, "ip", client.IPAddress)
		return
	}

	entry := &models.AuditLog{
		ID:        uuid.NewString(),
		UserID:    userID,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		Action:    action,
		CreatedAt: r.now(),
	}

	wctx := context.WithoutCancel(ctx)
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(wctx, r.cfg.Timeout)
		defer cancel()
	}

	b := retry.WithMaxRetries(r.cfg.Attempts-1, retry.NewExponential(r.cfg.BaseDelay))
	err := retry.Do(wctx, b, func(ctx context.Context) error {
		if err := r.repomanager.AuditLogs(r.store.Conn()).Create(ctx, entry); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		r.failures.Add(1)
		r.log.Warn(ctx, "audit entry dropped", "user_id", userID, "action", action, "error", err)
	}
}

// Failures is the number of entries dropped since start.
func (r *AuditRecorder) Failures() int64 {
	return r.failures.Load()
}
