package interfaces

import (
	"context"

	trades "tradenotifier/internal/domain/entity/trades"
)

// TradeFeed returns the most recent trades of the bot, newest first.
type TradeFeed interface {
	Fetch(ctx context.Context, limit int) ([]trades.Trade, error)
}

// WatermarkStore keeps the identifier of the last notified trade.
// Load reports ok=false when no watermark has been saved yet.
type WatermarkStore interface {
	Load(ctx context.Context) (id trades.TradeID, ok bool, err error)
	Save(ctx context.Context, id trades.TradeID) error
}

type NotificationSink interface {
	Deliver(ctx context.Context, text string) error
}

// TradeMirror receives every trade after its notification was delivered.
type TradeMirror interface {
	PublishTrade(ctx context.Context, trade *trades.Trade) error
}
