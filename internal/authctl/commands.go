// Package authctl implements the administrative command line: schema
// migration, account maintenance and one-off runs of the maintenance jobs.
package authctl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/sessionauth/internal/flagx"
	"github.com/dmitrijs2005/sessionauth/internal/server"
	"github.com/dmitrijs2005/sessionauth/internal/server/config"
	"github.com/dmitrijs2005/sessionauth/internal/server/models"
)

var (
	ErrUsage            = errors.New("usage error")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrUserInactive     = errors.New("user is inactive")
)

// Command is a parsed invocation: the verb and its positional arguments.
type Command struct {
	Name string
	Args []string
}

type verb struct {
	args  []string
	usage string
}

var commands = map[string]verb{
	"migrate":    {nil, "apply the embedded schema"},
	"useradd":    {[]string{"username"}, "create an account (password read from the terminal)"},
	"passwd":     {[]string{"username"}, "set a new password and revoke all sessions"},
	"deactivate": {[]string{"username"}, "disable an account and revoke its sessions"},
	"activate":   {[]string{"username"}, "re-enable an account"},
	"purge":      {[]string{"username"}, "delete an account and everything it owns"},
	"unlock":     {[]string{"username"}, "clear failed-login state"},
	"sessions":   {[]string{"username"}, "list active sessions"},
	"sweep":      {nil, "expire lapsed sessions now"},
	"archive":    {nil, "export new audit rows to the archive bucket now"},
}

// Usage writes the command summary to w.
func Usage(w io.Writer) {
	fmt.Fprintln(w, "usage: authctl [flags] <command> [args]")
	fmt.Fprintln(w)
	for _, name := range []string{"migrate", "useradd", "passwd", "deactivate", "activate", "purge", "unlock", "sessions", "sweep", "archive"} {
		s := commands[name]
		fmt.Fprintf(w, "  %-28s %s\n", strings.TrimSpace(name+" "+argList(s.args)), s.usage)
	}
}

func argList(args []string) string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = "<" + a + ">"
	}
	return strings.Join(out, " ")
}

// ParseCommand picks the command out of args, skipping flags and their
// values.
func ParseCommand(args []string) (Command, error) {
	pos := flagx.Positional(args, config.Flags)
	if len(pos) == 0 {
		return Command{}, fmt.Errorf("%w: no command given", ErrUsage)
	}

	name, rest := pos[0], pos[1:]
	s, ok := commands[name]
	if !ok {
		return Command{}, fmt.Errorf("%w: unknown command %q", ErrUsage, name)
	}
	if len(rest) != len(s.args) {
		return Command{}, fmt.Errorf("%w: %s expects %s", ErrUsage, name, argList(s.args))
	}
	return Command{Name: name, Args: rest}, nil
}

// CLI executes commands against a running App.
type CLI struct {
	app    *server.App
	in     *bufio.Reader
	out    io.Writer
	client models.ClientInfo
}

func New(app *server.App, in io.Reader, out io.Writer) *CLI {
	host, _ := os.Hostname()
	return &CLI{
		app:    app,
		in:     bufio.NewReader(in),
		out:    out,
		client: models.ClientInfo{IPAddress: "127.0.0.1", UserAgent: "authctl@" + host},
	}
}

// Exec runs cmd.
func (c *CLI) Exec(ctx context.Context, cmd Command) error {
	switch cmd.Name {
	case "migrate":
		// NewApp has already brought the schema up to date.
		fmt.Fprintln(c.out, "schema is up to date")
		return nil
	case "useradd":
		return c.userAdd(ctx, cmd.Args[0])
	case "passwd":
		return c.passwd(ctx, cmd.Args[0])
	case "deactivate":
		return c.withUser(ctx, cmd.Args[0], func(id string) error {
			return c.app.Users.Deactivate(ctx, id, c.client)
		}, "deactivated")
	case "activate":
		return c.withUser(ctx, cmd.Args[0], func(id string) error {
			return c.app.Users.Activate(ctx, id, c.client)
		}, "activated")
	case "purge":
		return c.withUser(ctx, cmd.Args[0], func(id string) error {
			return c.app.Users.Purge(ctx, id)
		}, "purged")
	case "unlock":
		return c.withUser(ctx, cmd.Args[0], func(id string) error {
			return c.app.Users.Unlock(ctx, id, c.client)
		}, "unlocked")
	case "sessions":
		return c.sessions(ctx, cmd.Args[0])
	case "sweep":
		n, err := c.app.Sweep(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%d session(s) expired\n", n)
		return nil
	case "archive":
		n, err := c.app.Archive(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%d audit row(s) archived\n", n)
		return nil
	}
	return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd.Name)
}

func (c *CLI) userAdd(ctx context.Context, name string) error {
	pw, err := GetNewPassword(c.in, c.out)
	if err != nil {
		return err
	}
	u, err := c.app.Users.Register(ctx, name, pw, c.client)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "user %s created (id %s)\n", u.UserName, u.ID)
	return nil
}

// passwd goes through the reset flow so the change is logged, audited and
// revokes sessions exactly like a user-initiated reset.
func (c *CLI) passwd(ctx context.Context, name string) error {
	u, err := c.app.Users.GetByUserName(ctx, name)
	if err != nil {
		return fmt.Errorf("user %s: %w", name, err)
	}
	if !u.IsActive {
		return fmt.Errorf("user %s: %w", name, ErrUserInactive)
	}

	pw, err := GetNewPassword(c.in, c.out)
	if err != nil {
		return err
	}
	token, err := c.app.Users.RequestReset(ctx, name, c.client)
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("user %s: no reset token issued", name)
	}
	if err := c.app.Users.ResetPassword(ctx, token, pw, c.client); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "password for %s updated\n", name)
	return nil
}

func (c *CLI) withUser(ctx context.Context, name string, fn func(id string) error, done string) error {
	u, err := c.app.Users.GetByUserName(ctx, name)
	if err != nil {
		return fmt.Errorf("user %s: %w", name, err)
	}
	if err := fn(u.ID); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "user %s %s\n", u.UserName, done)
	return nil
}

func (c *CLI) sessions(ctx context.Context, name string) error {
	u, err := c.app.Users.GetByUserName(ctx, name)
	if err != nil {
		return fmt.Errorf("user %s: %w", name, err)
	}
	list, err := c.app.Sessions.ListActive(ctx, u.ID)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tLAST USED\tIP\tUSER AGENT")
	for _, s := range list {
		lastUsed := "-"
		if s.LastUsedAt != nil {
			lastUsed = s.LastUsedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.CreatedAt.Format(time.RFC3339), lastUsed, s.IPAddress, s.UserAgent)
	}
	return tw.Flush()
}
