package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/jessety/simple-hmac-auth/cmd/simple-hmac-auth/keys"
	"github.com/jessety/simple-hmac-auth/cmd/simple-hmac-auth/request"
	"github.com/jessety/simple-hmac-auth/cmd/simple-hmac-auth/serve"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "simple-hmac-auth",
		Usage: "Sign and verify HMAC-authenticated HTTP requests",
		Commands: []*cli.Command{
			serve.Cmd(),
			request.Cmd(),
			keys.Cmd(),
		},
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	err := app.RunContext(ctx, os.Args)
	if err != nil {
		log.Error().Err(err).Msg("Application failed")
	}
}
