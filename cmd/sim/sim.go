package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"bourse/internal/config"
	"bourse/internal/console"
	"bourse/internal/engine"
	"bourse/internal/logging"

	"github.com/rs/zerolog/log"
)

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	// The menu owns stdout, keep logs quiet unless configured otherwise.
	base := config.Default()
	base.Logging.Level = "warn"
	base.Logging.Pretty = true
	cfg, err := config.LoadWith("", base)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load config")
	}
	logging.Setup(cfg.Logging)

	if err := console.New(engine.New(), os.Stdin, os.Stdout).Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("console stopped")
	}
}
