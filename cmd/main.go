package main

import (
	"context"
	"os"

	"github.com/hc-nolan/ratingrelay/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:     "ratingrelay",
		Usage:    "Relay track ratings between a Plex server and ListenBrainz/Last.fm",
		Version:  "1.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
