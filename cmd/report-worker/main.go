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
	logger := cli.SetupLogger(os.Stdout, os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	cfg := cli.MustLoadConfig(logger)

	w, err := app.BuildWorker(cfg, logger)
	if err != nil {
		logger.Error("Failed to build report worker", log.FieldError, err, log.FieldOperation, log.OpStartup)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(context.Background(), logger, 30*time.Second, func(context.Context) {
		if err := w.Close(); err != nil {
			logger.Error("Failed to close AMQP connection", log.FieldError, err)
		}
	})

	if err := w.Run(ctx); err != nil {
		logger.Error("Report worker stopped", log.FieldError, err)
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
}
