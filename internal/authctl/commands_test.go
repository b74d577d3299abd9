package authctl

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/dmitrijs2005/sessionauth/internal/common"
	"github.com/dmitrijs2005/sessionauth/internal/logging"
	"github.com/dmitrijs2005/sessionauth/internal/server"
	"github.com/dmitrijs2005/sessionauth/internal/server/config"
	"github.com/dmitrijs2005/sessionauth/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    Command
		wantErr bool
	}{
		{name: "plain", args: []string{"sweep"}, want: Command{Name: "sweep", Args: []string{}}},
		{name: "flags around", args: []string{"-d", "postgres://x", "useradd", "alice", "-n", "3"}, want: Command{Name: "useradd", Args: []string{"alice"}}},
		{name: "config flag", args: []string{"-c", "auth.json", "unlock", "bob"}, want: Command{Name: "unlock", Args: []string{"bob"}}},
		{name: "empty", args: nil, wantErr: true},
		{name: "unknown", args: []string{"frobnicate"}, wantErr: true},
		{name: "missing arg", args: []string{"purge"}, wantErr: true},
		{name: "extra arg", args: []string{"sweep", "now"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.args)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUsage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUsage(t *testing.T) {
	var out bytes.Buffer
	Usage(&out)
	for name := range commands {
		assert.Contains(t, out.String(), "  "+name)
	}
	assert.Contains(t, out.String(), "useradd <username>")
}

func newApp(t *testing.T) *server.App {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	app, err := server.NewApp(context.Background(), cfg, logging.Nop{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func exec(t *testing.T, app *server.App, input string, args ...string) (string, error) {
	t.Helper()
	cmd, err := ParseCommand(args)
	require.NoError(t, err)
	var out bytes.Buffer
	err = New(app, strings.NewReader(input), &out).Exec(context.Background(), cmd)
	return out.String(), err
}

func TestCLI_AccountLifecycle(t *testing.T) {
	stubTerminal(t, false, nil)
	ctx := context.Background()
	app := newApp(t)
	client := models.ClientInfo{IPAddress: "10.0.0.1"}

	out, err := exec(t, app, "first password\nfirst password\n", "useradd", "Alice")
	require.NoError(t, err)
	assert.Contains(t, out, "user alice created")

	_, err = exec(t, app, "first password\nother\n", "useradd", "bob")
	assert.ErrorIs(t, err, ErrPasswordMismatch)

	_, err = app.Auth.Login(ctx, "alice", "first password", client)
	require.NoError(t, err)

	out, err = exec(t, app, "", "sessions", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "10.0.0.1")

	out, err = exec(t, app, "second password\nsecond password\n", "passwd", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "password for alice updated")

	_, err = app.Auth.Login(ctx, "alice", "first password", client)
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	_, err = app.Auth.Login(ctx, "alice", "second password", client)
	require.NoError(t, err)

	out, err = exec(t, app, "", "deactivate", "alice")
	require.NoError(t, err)
	assert.Equal(t, "user alice deactivated\n", out)

	_, err = exec(t, app, "third password\nthird password\n", "passwd", "alice")
	assert.ErrorIs(t, err, ErrUserInactive)
	_, err = exec(t, app, "", "passwd", "nobody")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = app.Auth.Login(ctx, "alice", "second password", client)
	assert.ErrorIs(t, err, common.ErrAccountInactive)

	_, err = exec(t, app, "", "activate", "alice")
	require.NoError(t, err)

	_, err = exec(t, app, "", "unlock", "alice")
	require.NoError(t, err)

	_, err = exec(t, app, "", "purge", "alice")
	require.NoError(t, err)

	_, err = exec(t, app, "", "purge", "alice")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestCLI_Maintenance(t *testing.T) {
	app := newApp(t)

	out, err := exec(t, app, "", "migrate")
	require.NoError(t, err)
	assert.Equal(t, "schema is up to date\n", out)

	out, err = exec(t, app, "", "sweep")
	require.NoError(t, err)
	assert.Equal(t, "0 session(s) expired\n", out)

	_, err = exec(t, app, "", "archive")
	assert.ErrorIs(t, err, server.ErrArchiveDisabled)
}
