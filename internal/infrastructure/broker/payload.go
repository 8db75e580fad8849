package broker

import (
	"time"

	trades "tradenotifier/internal/domain/entity/trades"
)

// TradeMessage is the body published for every notified trade.
type TradeMessage struct {
	HopperID   string        `json:"hopper_id"`
	Trade      *trades.Trade `json:"trade"`
	NotifiedAt time.Time     `json:"notified_at"`
}
