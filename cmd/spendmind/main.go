package main

import (
	"context"
	"os"
	"time"

	"spendmind/internal/app"
	"spendmind/internal/cli"
	"spendmind/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Stdout, os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.MustLoadConfig(logger)

	var a *app.App
	ctx, done := cli.GracefulShutdown(context.Background(), logger, 30*time.Second, func(ctx context.Context) {
		if a == nil {
			return
		}
		if err := a.Shutdown(ctx); err != nil {
			logger.Error("Shutdown error", log.FieldError, err)
		}
	})

	var err error
	a, err = app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to build application", log.FieldError, err, log.FieldOperation, log.OpStartup)
		os.Exit(1)
	}

	if err := a.Run(); err != nil {
		logger.Error("Server error", log.FieldError, err)
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
}
