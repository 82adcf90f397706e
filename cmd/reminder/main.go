package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"analytics-intake/handler"
	"analytics-intake/internal/app"
	"analytics-intake/internal/config"
	"analytics-intake/internal/logging"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadReminder("")
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	awsCfg, err := app.LoadAWS(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	reminder, err := app.NewReminder(cfg, awsCfg, logger)
	if err != nil {
		slog.Error("failed to create reminder service", "err", err)
		os.Exit(1)
	}
	h, err := handler.NewReminderHandler(reminder)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
