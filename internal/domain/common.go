package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PricePrecision is the number of decimals prices are rounded to before comparison and emission.
const PricePrecision = 6

// Direction represents the side of a synthetic position.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Label returns the human readable label used in outbound events.
func (d Direction) Label() string {
	switch d {
	case Long:
		return "Long"
	case Short:
		return "Short"
	default:
		return "Unknown"
	}
}

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == Long || d == Short
}

// CloseResult indicates why a trade was closed.
type CloseResult string

const (
	ResultTakeProfit CloseResult = "TP"
	ResultStopLoss   CloseResult = "SL"
)

// TradeState is the lifecycle state of a trade.
type TradeState string

const (
	StateOpen               TradeState = "OPEN"
	StateClosedByTakeProfit TradeState = "CLOSED_TP"
	StateClosedByStopLoss   TradeState = "CLOSED_SL"
)

// SizingMode selects how stop-loss and take-profit distances are computed.
type SizingMode string

const (
	SizingPercent SizingMode = "percent" // fixed percentage of entry
	SizingATR     SizingMode = "atr"     // multiple of the average true range
)

// RoundPrice rounds a price to PricePrecision decimals using decimal arithmetic,
// so that duplicate detection is stable against float noise.
func RoundPrice(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(PricePrecision).Float64()
	return f
}

// SymbolToPair converts an exchange symbol like "BTCUSDT" into "BTC/USD".
func SymbolToPair(symbol string) string {
	return strings.Replace(symbol, "USDT", "", 1) + "/USD"
}
