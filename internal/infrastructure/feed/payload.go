package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	trades "tradenotifier/internal/domain/entity/trades"

	"github.com/shopspring/decimal"
)

const datetimeLayout = "2006-01-02 15:04:05"

type tradesResponse struct {
	Data *struct {
		Trades []tradePayload `json:"trades"`
	} `json:"data"`
}

type tradePayload struct {
	ID       trades.TradeID `json:"id"`
	Type     string         `json:"type"`
	Pair     string         `json:"pair"`
	Currency string         `json:"currency"`
	Rate     flexDecimal    `json:"rate"`
	Amount   flexDecimal    `json:"amount"`
	Total    flexDecimal    `json:"total"`
	Result   flexDecimal    `json:"result"`
	Accuracy flexDecimal    `json:"accuracy"`
	Datetime string         `json:"datetime"`
}

func (p tradePayload) toDomain() (trades.Trade, error) {
	if p.ID.IsZero() {
		return trades.Trade{}, errors.New("trade without id")
	}
	pair := strings.TrimSpace(p.Pair)
	if pair == "" {
		pair = strings.TrimSpace(p.Currency)
	}
	trade := trades.Trade{
		ID:       p.ID,
		Kind:     trades.ParseKind(p.Type),
		RawKind:  strings.TrimSpace(p.Type),
		Pair:     pair,
		Price:    p.Rate.value,
		Quantity: p.Amount.value,
		Total:    p.Total.value,
	}
	if p.Result.set {
		trade.Result = decimal.NewNullDecimal(p.Result.value)
	}
	if p.Accuracy.set {
		trade.Accuracy = decimal.NewNullDecimal(p.Accuracy.value)
	}
	if raw := strings.TrimSpace(p.Datetime); raw != "" {
		executedAt, err := parseDatetime(raw)
		if err != nil {
			return trades.Trade{}, fmt.Errorf("trade %s: %w", p.ID, err)
		}
		trade.ExecutedAt = executedAt
	}
	return trade, nil
}

func parseDatetime(raw string) (time.Time, error) {
	if ts, err := time.ParseInLocation(datetimeLayout, raw, time.UTC); err == nil {
		return ts, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse datetime %q: %w", raw, err)
	}
	return ts.UTC(), nil
}

// flexDecimal accepts numbers, numeric strings, empty strings and null.
type flexDecimal struct {
	value decimal.Decimal
	set   bool
}

func (f *flexDecimal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil
		}
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("parse number %s: %w", data, err)
	}
	f.value = value
	f.set = true
	return nil
}
