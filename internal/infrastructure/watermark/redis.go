package watermark

import (
	"context"
	"errors"
	"fmt"
	"strings"

	trades "tradenotifier/internal/domain/entity/trades"
	interfaces "tradenotifier/internal/domain/interfaces"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the watermark under a single key without expiry.
type RedisStore struct {
	client *redis.Client
	key    string
}

var _ interfaces.WatermarkStore = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, key string) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is nil")
	}
	if key == "" {
		return nil, errors.New("watermark key is required")
	}
	return &RedisStore{client: client, key: key}, nil
}

func (s *RedisStore) Load(ctx context.Context) (trades.TradeID, bool, error) {
	value, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", s.key, err)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false, nil
	}
	return trades.TradeID(value), true, nil
}

func (s *RedisStore) Save(ctx context.Context, id trades.TradeID) error {
	if err := s.client.Set(ctx, s.key, id.String(), 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", s.key, err)
	}
	return nil
}
