// Command authctl administers the authentication store.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/sessionauth/internal/authctl"
	"github.com/dmitrijs2005/sessionauth/internal/logging"
	"github.com/dmitrijs2005/sessionauth/internal/server"
	"github.com/dmitrijs2005/sessionauth/internal/server/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd, err := authctl.ParseCommand(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		authctl.Usage(os.Stderr)
		return 2
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx := context.Background()
	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer app.Close()

	if err := authctl.New(app, os.Stdin, os.Stdout).Exec(ctx, cmd); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, authctl.ErrUsage) {
			return 2
		}
		return 1
	}
	return 0
}
