package app

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	notifier "tradenotifier/internal/application/service/notifier"
	"tradenotifier/internal/config"
	interfaces "tradenotifier/internal/domain/interfaces"
	"tradenotifier/internal/infrastructure/broker"
	"tradenotifier/internal/infrastructure/feed"
	"tradenotifier/internal/infrastructure/telegram"
	"tradenotifier/internal/infrastructure/watermark"

	"github.com/sirupsen/logrus"
)

// App holds the wired notifier and the resources it owns.
type App struct {
	Notifier *notifier.Service
	Store    interfaces.WatermarkStore

	closers []func()
}

// NewLogger returns the JSON logger used by every binary.
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	return logger
}

// ApplyLogLevel sets the level from cfg, keeping info on unknown values.
func ApplyLogLevel(logger *logrus.Logger, cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithError(err).Warnf("unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

// Build connects every collaborator described by cfg.
func Build(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*App, error) {
	a := &App{}

	store, closeStore, err := watermark.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open watermark store: %w", err)
	}
	a.Store = store
	a.closers = append(a.closers, closeStore)

	tradeFeed, err := feed.NewClient(cfg.Feed, cfg.HTTP.Timeout, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init trade feed: %w", err)
	}

	sink, err := telegram.NewSink(cfg.Telegram, cfg.HTTP.Timeout, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init telegram sink: %w", err)
	}

	opts := notifier.Options{
		Limit:     cfg.Feed.Limit,
		Formatter: notifier.NewFormatter(rand.New(rand.NewSource(time.Now().UnixNano()))),
	}
	if cfg.RabbitMQ.Enabled() {
		pub, err := broker.Dial(cfg.RabbitMQ, cfg.Feed.HopperID, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init trade mirror: %w", err)
		}
		a.closers = append(a.closers, pub.Close)
		opts.Mirror = pub
	}

	svc, err := notifier.NewService(tradeFeed, store, sink, logger, opts)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init notifier: %w", err)
	}
	a.Notifier = svc
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
