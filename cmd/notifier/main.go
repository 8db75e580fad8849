package main

import (
	"context"
	"os/signal"
	"syscall"

	app "tradenotifier/internal/application/app"
	"tradenotifier/internal/config"

	"github.com/sirupsen/logrus"
)

// One run per invocation; meant to be started by cron or another scheduler.
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := app.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}
	app.ApplyLogLevel(logger, cfg)

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("init notifier: %v", err)
	}

	report, err := a.Notifier.Run(ctx)
	a.Close()

	entry := logger.WithFields(logrus.Fields{
		"run_id":    report.RunID.String(),
		"outcome":   report.Outcome,
		"fetched":   report.Fetched,
		"delivered": report.Delivered,
		"took_ms":   report.Took.Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("run failed")
		logger.Exit(1)
	}
	entry.Info("run finished")
}
