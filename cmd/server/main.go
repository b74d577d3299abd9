package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/sessionauth/internal/logging"
	"github.com/dmitrijs2005/sessionauth/internal/server"
	"github.com/dmitrijs2005/sessionauth/internal/server/config"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	logger := logging.NewJSONLogger(os.Stdout, cfg.LogLevel)

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer app.Close()

	app.Run(ctx)
}
