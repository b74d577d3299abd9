package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJSON(t *testing.T) {
	path := writeTempJSON(t, "", "", map[string]any{
		"database_dsn":       "postgres://auth@localhost/auth",
		"secret_key":         "my_secret_key",
		"access_token_ttl":   "5m",
		"refresh_token_ttl":  "48h",
		"idle_timeout":       "10m",
		"lockout_threshold":  3,
		"lockout_window":     "1m",
		"lockout_policy":     "fixed",
		"audit_attempts":     4,
		"audit_retry_delay":  int64(time.Second),
		"archive_bucket":     "audit",
		"archive_batch_size": 50,
		"s3_base_endpoint":   "http://minio:9000",
	})

	cfg := &Config{}
	cfg.LoadDefaults()
	require.NoError(t, parseJSON(cfg, path))

	assert.Equal(t, "postgres://auth@localhost/auth", cfg.DatabaseDSN)
	assert.Equal(t, "my_secret_key", cfg.SecretKey)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 48*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 10*time.Minute, cfg.IdleTimeout)
	assert.Equal(t, 3, cfg.LockoutThreshold)
	assert.Equal(t, time.Minute, cfg.LockoutWindow)
	assert.Equal(t, "fixed", cfg.LockoutPolicy)
	assert.Equal(t, 4, cfg.AuditAttempts)
	assert.Equal(t, time.Second, cfg.AuditRetryDelay)
	assert.Equal(t, "audit", cfg.ArchiveBucket)
	assert.Equal(t, 50, cfg.ArchiveBatchSize)
	assert.Equal(t, "http://minio:9000", cfg.S3BaseEndpoint)

	// absent keys keep their defaults
	assert.Equal(t, 24*time.Hour, cfg.LockoutMaxWindow)
	assert.Equal(t, "audit/", cfg.ArchivePrefix)
	assert.Equal(t, "us-east-1", cfg.S3Region)
}

func Test_parseJSON_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		cfg := &Config{}
		assert.Error(t, parseJSON(cfg, filepath.Join(t.TempDir(), "nope.json")))
	})

	t.Run("bad duration", func(t *testing.T) {
		path := writeTempJSON(t, "", "", map[string]any{"access_token_ttl": "soon"})
		cfg := &Config{}
		assert.Error(t, parseJSON(cfg, path))
	})

	t.Run("malformed", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
		cfg := &Config{}
		assert.Error(t, parseJSON(cfg, path))
	})
}
