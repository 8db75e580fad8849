package trades

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TradeID is an opaque identifier assigned by the upstream feed. It is only
// ever compared for equality.
type TradeID string

// String returns the identifier text.
func (id TradeID) String() string {
	return string(id)
}

// IsZero reports whether the identifier is empty.
func (id TradeID) IsZero() bool {
	return id == ""
}

// UnmarshalJSON accepts both string and numeric identifiers so that 42 and
// "42" compare equal after decoding.
func (id *TradeID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode trade id: %w", err)
		}
		*id = TradeID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode trade id: %w", err)
	}
	*id = TradeID(n.String())
	return nil
}

// Kind is the normalized trade direction.
type Kind string

const (
	KindBuy   Kind = "buy"
	KindSell  Kind = "sell"
	KindOther Kind = "other"
)

// ParseKind maps the upstream trade type onto a Kind. Unknown types map to KindOther.
func ParseKind(raw string) Kind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy":
		return KindBuy
	case "sell":
		return KindSell
	default:
		return KindOther
	}
}

// Trade is a single executed trade reported by the trading bot.
type Trade struct {
	ID         TradeID             `json:"id"`
	Kind       Kind                `json:"kind"`
	RawKind    string              `json:"raw_kind,omitempty"`
	Pair       string              `json:"pair"`
	Price      decimal.Decimal     `json:"price"`
	Quantity   decimal.Decimal     `json:"quantity"`
	Total      decimal.Decimal     `json:"total"`
	Result     decimal.NullDecimal `json:"result"`
	Accuracy   decimal.NullDecimal `json:"accuracy"`
	ExecutedAt time.Time           `json:"executed_at,omitempty"`
}

// KindLabel returns the upstream type when known, falling back to the normalized kind.
func (t Trade) KindLabel() string {
	if label := strings.TrimSpace(t.RawKind); label != "" {
		return label
	}
	return string(t.Kind)
}
