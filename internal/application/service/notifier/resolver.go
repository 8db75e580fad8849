package notifier

import (
	trades "tradenotifier/internal/domain/entity/trades"
)

// ResolveNewTrades returns the trades of batch that were not notified yet,
// oldest first. batch must be newest first.
//
// The scan stops at the first trade whose id equals the watermark; that trade
// and everything older is dropped. When the watermark is absent or outside the
// fetched window the whole batch is new, so trades older than the window are
// lost. Duplicate ids inside a batch are kept as separate entries.
func ResolveNewTrades(batch []trades.Trade, watermark trades.TradeID, hasWatermark bool) ([]trades.Trade, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	end := len(batch)
	if hasWatermark {
		for i, trade := range batch {
			if trade.ID == watermark {
				end = i
				break
			}
		}
	}

	// Trades past the watermark were notified already; only the new ones and
	// the watermark trade itself take part in the order check.
	checked := batch
	if end < len(batch) {
		checked = batch[:end+1]
	}
	if err := checkOrder(checked); err != nil {
		return nil, err
	}

	pending := make([]trades.Trade, end)
	copy(pending, batch[:end])

	for i, j := 0, len(pending)-1; i < j; i, j = i+1, j-1 {
		pending[i], pending[j] = pending[j], pending[i]
	}
	return pending, nil
}

// checkOrder verifies the newest-first contract for neighbours that both carry
// an execution time.
func checkOrder(batch []trades.Trade) error {
	for i := 1; i < len(batch); i++ {
		newer, older := batch[i-1].ExecutedAt, batch[i].ExecutedAt
		if newer.IsZero() || older.IsZero() {
			continue
		}
		if older.After(newer) {
			return trades.ErrBatchOutOfOrder
		}
	}
	return nil
}
