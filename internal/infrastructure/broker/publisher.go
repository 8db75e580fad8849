package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"tradenotifier/internal/config"
	trades "tradenotifier/internal/domain/entity/trades"
	interfaces "tradenotifier/internal/domain/interfaces"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher mirrors notified trades to a durable fanout exchange.
type Publisher struct {
	conn     *amqp.Connection
	channel  channel
	exchange string
	hopperID string
	logger   *logrus.Entry
	now      func() time.Time
	mu       sync.Mutex
}

var _ interfaces.TradeMirror = (*Publisher)(nil)

// Dial connects to RabbitMQ and declares the trades exchange.
func Dial(cfg config.RabbitMQConfig, hopperID string, logger *logrus.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	if cfg.TradesExchange == "" {
		return nil, errors.New("exchange name cannot be empty")
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.TradesExchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.TradesExchange, err)
	}
	p := newPublisher(ch, cfg.TradesExchange, hopperID, logger)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange, hopperID string, logger *logrus.Logger) *Publisher {
	return &Publisher{
		channel:  ch,
		exchange: exchange,
		hopperID: hopperID,
		logger:   logger.WithFields(logrus.Fields{"component": "trade_mirror", "exchange": exchange}),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (p *Publisher) PublishTrade(ctx context.Context, trade *trades.Trade) error {
	if trade == nil {
		return errors.New("trade is nil")
	}
	now := p.now()
	body, err := json.Marshal(TradeMessage{
		HopperID:   p.hopperID,
		Trade:      trade,
		NotifiedAt: now,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, p.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    trade.ID.String(),
		Timestamp:    now,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish trade %s: %w", trade.ID, err)
	}
	return nil
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if err := p.channel.Close(); err != nil {
		p.logger.Errorf("close rabbitmq channel: %v", err)
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			p.logger.Errorf("close rabbitmq connection: %v", err)
		}
	}
}
