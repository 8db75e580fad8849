package notifier

import (
	"math/rand"
	"strings"
	"time"

	trades "tradenotifier/internal/domain/entity/trades"

	"github.com/shopspring/decimal"
)

const (
	priceDecimals  = 8
	percentDecimal = 2

	fallbackAccuracyMin  = 90.0
	fallbackAccuracySpan = 5.0
	estimatedMarker      = " (est.)"
	timeLayout           = "2006-01-02 15:04:05 MST"
)

// RandSource supplies values in [0, 1). *rand.Rand satisfies it.
type RandSource interface {
	Float64() float64
}

// Formatter renders trades into chat messages.
type Formatter struct {
	rnd RandSource
}

// NewFormatter returns a Formatter. A nil source falls back to a time-seeded generator.
func NewFormatter(rnd RandSource) *Formatter {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Formatter{rnd: rnd}
}

// Render builds the notification text for trade.
func (f *Formatter) Render(trade trades.Trade) string {
	var b strings.Builder
	switch trade.Kind {
	case trades.KindBuy:
		b.WriteString("🟢 New BUY: " + pairLabel(trade) + "\n")
		b.WriteString("Price: " + trade.Price.StringFixed(priceDecimals) + "\n")
		writeSize(&b, trade)
		b.WriteString("Accuracy: " + f.accuracy(trade) + "\n")
	case trades.KindSell:
		b.WriteString("🔴 New SELL: " + pairLabel(trade) + "\n")
		b.WriteString("Price: " + trade.Price.StringFixed(priceDecimals) + "\n")
		writeSize(&b, trade)
		b.WriteString("Result: " + signedPercent(resultOf(trade)) + "\n")
	default:
		b.WriteString("⚪ New trade (" + trade.KindLabel() + "): " + pairLabel(trade) + "\n")
		b.WriteString("Price: " + trade.Price.StringFixed(priceDecimals) + "\n")
		writeSize(&b, trade)
	}
	if !trade.ExecutedAt.IsZero() {
		b.WriteString("Time: " + trade.ExecutedAt.UTC().Format(timeLayout) + "\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (f *Formatter) accuracy(trade trades.Trade) string {
	if trade.Accuracy.Valid {
		return trade.Accuracy.Decimal.StringFixed(percentDecimal) + "%"
	}
	estimate := decimal.NewFromFloat(fallbackAccuracyMin + fallbackAccuracySpan*f.rnd.Float64())
	return estimate.StringFixed(percentDecimal) + "%" + estimatedMarker
}

func writeSize(b *strings.Builder, trade trades.Trade) {
	b.WriteString("Amount: " + trade.Quantity.String() + "\n")
	b.WriteString("Total: " + trade.Total.String() + "\n")
}

func resultOf(trade trades.Trade) decimal.Decimal {
	if trade.Result.Valid {
		return trade.Result.Decimal
	}
	return decimal.Zero
}

func signedPercent(value decimal.Decimal) string {
	rounded := value.Round(percentDecimal)
	text := rounded.StringFixed(percentDecimal) + "%"
	if !rounded.IsNegative() {
		return "+" + text
	}
	return text
}

func pairLabel(trade trades.Trade) string {
	if pair := strings.TrimSpace(trade.Pair); pair != "" {
		return pair
	}
	return "unknown pair"
}
