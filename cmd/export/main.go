package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"analytics-intake/internal/app"
	"analytics-intake/internal/config"
	"analytics-intake/internal/export"
	"analytics-intake/internal/logging"
	"analytics-intake/internal/repository"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults to $INTAKE_CONFIG)")
	period := flag.String("period", repository.Period(time.Now()), "ledger month to export (YYYY-MM)")
	out := flag.String("out", "", "output file (defaults to analytics-<period>.xlsx)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	awsCfg, err := app.LoadAWS(ctx)
	if err != nil {
		logger.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}
	ledger, err := app.NewLedger(cfg, awsCfg)
	if err != nil {
		logger.Error("failed to create ledger client", "err", err)
		os.Exit(1)
	}
	svc, err := export.NewService(ledger, logger)
	if err != nil {
		logger.Error("failed to create export service", "err", err)
		os.Exit(1)
	}

	data, err := svc.Workbook(ctx, *period)
	if err != nil {
		logger.Error("export failed", "period", *period, "err", err)
		os.Exit(1)
	}

	path := *out
	if path == "" {
		path = fmt.Sprintf("analytics-%s.xlsx", *period)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logger.Error("failed to write workbook", "path", path, "err", err)
		os.Exit(1)
	}
	logger.Info("workbook written", "path", path, "bytes", len(data))
}
