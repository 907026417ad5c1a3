package main

import (
	"context"
	"os"
	"os/signal"

	config "github.com/avvvet/deckbuilder-services/configs"
	"github.com/avvvet/deckbuilder-services/internal/cli"
)

const SERVICE_NAME = "catalogctl"

func init() {
	config.Logging(SERVICE_NAME, true)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewRootCommand(cli.OpenLive).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
