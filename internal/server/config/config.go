// Package config handles configuration for the auth server and authctl:
// defaults, then a JSON file, then environment variables, then
// command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/sessionauth/internal/flagx"
)

// Config holds runtime settings.
//
// An empty DatabaseDSN selects the in-memory store, which keeps nothing
// across restarts and is meant for development only. An empty
// ArchiveBucket disables the audit archive.
type Config struct {
	DatabaseDSN string
	SecretKey   string
	LogLevel    string

	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	IdleTimeout      time.Duration
	PasswordResetTTL time.Duration
	SweepInterval    time.Duration

	LockoutThreshold int
	LockoutWindow    time.Duration
	LockoutMaxWindow time.Duration
	LockoutPolicy    string

	AuditAttempts   int
	AuditRetryDelay time.Duration
	AuditTimeout    time.Duration

	ArchiveBucket    string
	ArchivePrefix    string
	ArchiveInterval  time.Duration
	ArchiveBatchSize int
	S3Region         string
	S3BaseEndpoint   string
	S3AccessKey      string
	S3SecretKey      string
}

// LoadDefaults populates Config with development defaults.
// NOTE: the secret key must be overridden in production.
func (c *Config) LoadDefaults() {
	c.DatabaseDSN = ""
	c.SecretKey = "secretKey"
	c.LogLevel = "info"

	c.AccessTokenTTL = 15 * time.Minute
	c.RefreshTokenTTL = 7 * 24 * time.Hour
	c.IdleTimeout = 30 * time.Minute
	c.PasswordResetTTL = time.Hour
	c.SweepInterval = 5 * time.Minute

	c.LockoutThreshold = 5
	c.LockoutWindow = 15 * time.Minute
	c.LockoutMaxWindow = 24 * time.Hour
	c.LockoutPolicy = "exponential"

	c.AuditAttempts = 3
	c.AuditRetryDelay = 50 * time.Millisecond
	c.AuditTimeout = 5 * time.Second

	c.ArchiveBucket = ""
	c.ArchivePrefix = "audit/"
	c.ArchiveInterval = time.Hour
	c.ArchiveBatchSize = 500
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = ""
}

// LoadConfig builds a Config from os.Args and the environment.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(os.Args[1:], os.LookupEnv)
}

// LoadConfigFrom applies defaults, the JSON file named by -c/-config, the
// environment and finally the flags found in args.
func LoadConfigFrom(args []string, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if path := flagx.ConfigPath(args); path != "" {
		if err := parseJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	parseEnv(cfg, lookupEnv)
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is empty"))
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	if c.RefreshTokenTTL < c.AccessTokenTTL {
		errs = append(errs, errors.New("refresh token lifetime is shorter than access token lifetime"))
	}
	if c.LockoutThreshold <= 0 || c.LockoutWindow <= 0 {
		errs = append(errs, errors.New("lockout threshold and window must be positive"))
	}
	if c.LockoutPolicy != "fixed" && c.LockoutPolicy != "exponential" {
		errs = append(errs, fmt.Errorf("unknown lockout policy %q", c.LockoutPolicy))
	}
	if c.AuditAttempts <= 0 {
		errs = append(errs, errors.New("audit attempts must be positive"))
	}
	return errors.Join(errs...)
}
