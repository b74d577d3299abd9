package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/sessionauth/internal/flagx"
)

// Flags lists every value-taking flag of the server and authctl, so
// positional arguments can be told apart from flag values.
var Flags = []string{"-c", "-config", "-d", "-s", "-t", "-r", "-i", "-n", "-w", "-m", "-p", "-l", "-x", "-b", "-g", "-e", "-u", "-k", "-y"}

// parseFlags overlays the flags found in args.
//
// Supported flags (short forms):
//
//	-d string   PostgreSQL DSN (empty: in-memory store)
//	-s string   JWT HMAC secret key
//	-t int      access token lifetime, minutes
//	-r int      refresh token lifetime, minutes
//	-i int      session idle timeout, minutes (0 disables)
//	-n int      failed logins before lockout
//	-w int      base lockout window, minutes
//	-m int      maximum lockout window, minutes
//	-p string   lockout policy: fixed or exponential
//	-l string   log level
//	-x duration expired-session sweep interval
//	-b string   audit archive bucket (empty disables the archive)
//	-g string   S3 region
//	-e string   S3 base endpoint
//	-u string   S3 access key
//	-k string   S3 secret key
//	-y duration audit archive interval
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, Flags[2:])

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTTL := fs.Int("t", int(config.AccessTokenTTL.Minutes()), "access token lifetime (in minutes)")
	refreshTTL := fs.Int("r", int(config.RefreshTokenTTL.Minutes()), "refresh token lifetime (in minutes)")
	idle := fs.Int("i", int(config.IdleTimeout.Minutes()), "session idle timeout (in minutes)")

	fs.IntVar(&config.LockoutThreshold, "n", config.LockoutThreshold, "failed logins before lockout")
	window := fs.Int("w", int(config.LockoutWindow.Minutes()), "lockout window (in minutes)")
	maxWindow := fs.Int("m", int(config.LockoutMaxWindow.Minutes()), "maximum lockout window (in minutes)")
	fs.StringVar(&config.LockoutPolicy, "p", config.LockoutPolicy, "lockout policy")

	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.DurationVar(&config.SweepInterval, "x", config.SweepInterval, "session sweep interval")

	fs.StringVar(&config.ArchiveBucket, "b", config.ArchiveBucket, "audit archive bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "k", config.S3SecretKey, "S3 secret key")
	fs.DurationVar(&config.ArchiveInterval, "y", config.ArchiveInterval, "audit archive interval")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.AccessTokenTTL = time.Duration(*accessTTL) * time.Minute
	config.RefreshTokenTTL = time.Duration(*refreshTTL) * time.Minute
	config.IdleTimeout = time.Duration(*idle) * time.Minute
	config.LockoutWindow = time.Duration(*window) * time.Minute
	config.LockoutMaxWindow = time.Duration(*maxWindow) * time.Minute
	return nil
}
