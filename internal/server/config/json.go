package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/sessionauth/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations
// accept strings such as "15m" or integer nanoseconds. Absent keys keep
// their current value.
type JsonConfig struct {
	DatabaseDSN string `json:"database_dsn"`
	SecretKey   string `json:"secret_key"`
	LogLevel    string `json:"log_level"`

	AccessTokenTTL   timex.Duration `json:"access_token_ttl"`
	RefreshTokenTTL  timex.Duration `json:"refresh_token_ttl"`
	IdleTimeout      timex.Duration `json:"idle_timeout"`
	PasswordResetTTL timex.Duration `json:"password_reset_ttl"`
	SweepInterval    timex.Duration `json:"sweep_interval"`

	LockoutThreshold int            `json:"lockout_threshold"`
	LockoutWindow    timex.Duration `json:"lockout_window"`
	LockoutMaxWindow timex.Duration `json:"lockout_max_window"`
	LockoutPolicy    string         `json:"lockout_policy"`

	AuditAttempts   int            `json:"audit_attempts"`
	AuditRetryDelay timex.Duration `json:"audit_retry_delay"`
	AuditTimeout    timex.Duration `json:"audit_timeout"`

	ArchiveBucket    string         `json:"archive_bucket"`
	ArchivePrefix    string         `json:"archive_prefix"`
	ArchiveInterval  timex.Duration `json:"archive_interval"`
	ArchiveBatchSize int            `json:"archive_batch_size"`
	S3Region         string         `json:"s3_region"`
	S3BaseEndpoint   string         `json:"s3_base_endpoint"`
	S3AccessKey      string         `json:"s3_access_key"`
	S3SecretKey      string         `json:"s3_secret_key"`
}

// parseJSON overlays the values present in the file at path.
func parseJSON(config *Config, path string) error {
	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.LogLevel, c.LogLevel)

	setDuration(&config.AccessTokenTTL, c.AccessTokenTTL)
	setDuration(&config.RefreshTokenTTL, c.RefreshTokenTTL)
	setDuration(&config.IdleTimeout, c.IdleTimeout)
	setDuration(&config.PasswordResetTTL, c.PasswordResetTTL)
	setDuration(&config.SweepInterval, c.SweepInterval)

	setInt(&config.LockoutThreshold, c.LockoutThreshold)
	setDuration(&config.LockoutWindow, c.LockoutWindow)
	setDuration(&config.LockoutMaxWindow, c.LockoutMaxWindow)
	setString(&config.LockoutPolicy, c.LockoutPolicy)

	setInt(&config.AuditAttempts, c.AuditAttempts)
	setDuration(&config.AuditRetryDelay, c.AuditRetryDelay)
	setDuration(&config.AuditTimeout, c.AuditTimeout)

	setString(&config.ArchiveBucket, c.ArchiveBucket)
	setString(&config.ArchivePrefix, c.ArchivePrefix)
	setDuration(&config.ArchiveInterval, c.ArchiveInterval)
	setInt(&config.ArchiveBatchSize, c.ArchiveBatchSize)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
