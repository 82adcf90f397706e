package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"analytics-intake/handler"
	"analytics-intake/internal/app"
	"analytics-intake/internal/config"
	"analytics-intake/internal/logging"
	"analytics-intake/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults to $INTAKE_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := app.LoadAWS(ctx)
	if err != nil {
		logger.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	intake, err := app.NewIntake(cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to create intake service", "err", err)
		os.Exit(1)
	}
	h, err := handler.NewHandler(intake)
	if err != nil {
		logger.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	// The reminder is optional locally; it runs only when fully configured.
	var ticker *scheduler.Ticker
	if err := cfg.ValidateReminder(); err != nil {
		logger.Info("weekly reminder disabled", "reason", err.Error())
	} else {
		reminder, err := app.NewReminder(cfg, awsCfg, logger)
		if err != nil {
			logger.Error("failed to create reminder service", "err", err)
			os.Exit(1)
		}
		ticker, err = scheduler.NewTicker(cfg.Discord.ReminderInterval)
		if err != nil {
			logger.Error("failed to create reminder ticker", "err", err)
			os.Exit(1)
		}
		job := func(ctx context.Context, _ time.Time) {
			if err := reminder.Send(ctx); err != nil {
				logger.Error("weekly reminder failed", "err", err)
			}
		}
		if err := ticker.Start(ctx, job); err != nil {
			logger.Error("failed to start reminder ticker", "err", err)
			os.Exit(1)
		}
		logger.Info("weekly reminder scheduled", "interval", cfg.Discord.ReminderInterval.String())
	}

	server := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: handler.NewRouter(h, handler.RouterConfig{
			RateLimitRequests: cfg.HTTP.RateLimitRequests,
			RateLimitWindow:   time.Minute,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.HTTP.Addr, "state_backend", cfg.State.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if ticker != nil {
		if err := ticker.Stop(shutdownCtx); err != nil {
			logger.Error("reminder ticker did not stop", "err", err)
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "err", err)
	}
	logger.Info("server stopped")
}
