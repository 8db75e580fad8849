package watermark

import (
	"context"
	"fmt"

	"tradenotifier/internal/config"
	interfaces "tradenotifier/internal/domain/interfaces"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Open builds the store selected by cfg.Watermark.Backend. The returned close
// function releases backend connections and is never nil.
func Open(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (interfaces.WatermarkStore, func(), error) {
	noop := func() {}
	log := logger.WithFields(logrus.Fields{
		"component": "watermark",
		"backend":   cfg.Watermark.Backend,
	})

	switch cfg.Watermark.Backend {
	case config.BackendFile:
		store, err := NewFileStore(cfg.Watermark.File)
		if err != nil {
			return nil, noop, err
		}
		log.WithField("path", cfg.Watermark.File).Debug("watermark store ready")
		return store, noop, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("connect to redis: %w", err)
		}
		store, err := NewRedisStore(client, cfg.Watermark.Key)
		if err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		log.WithField("key", cfg.Watermark.Key).Debug("watermark store ready")
		return store, func() {
			if err := client.Close(); err != nil {
				log.WithError(err).Warn("close redis client")
			}
		}, nil

	case config.BackendPostgres:
		store, err := NewPostgresStore(ctx, cfg.Postgres.DSN, cfg.Watermark.Key)
		if err != nil {
			return nil, noop, err
		}
		log.WithField("name", cfg.Watermark.Key).Debug("watermark store ready")
		return store, store.Close, nil

	case config.BackendMemory:
		log.Warn("memory watermark store does not survive restarts")
		return NewMemoryStore(), noop, nil

	default:
		return nil, noop, fmt.Errorf("unsupported watermark backend %q", cfg.Watermark.Backend)
	}
}
