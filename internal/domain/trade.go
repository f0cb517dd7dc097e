package domain

import (
	"time"

	"github.com/google/uuid"
)

// Trade represents a synthetic position tracked by the ledger.
type Trade struct {
	ID         string     `json:"id"`
	Symbol     string     `json:"symbol"`
	Direction  Direction  `json:"direction"`
	EntryPrice float64    `json:"entryPrice"`
	StopLoss   float64    `json:"stopLoss"`
	TakeProfit float64    `json:"takeProfit"`
	RiskPct    float64    `json:"riskPct"`
	State      TradeState `json:"state"`
	OpenedAt   time.Time  `json:"openedAt"`
	ClosedAt   time.Time  `json:"closedAt,omitempty"` // zero while open
	ClosePrice float64    `json:"closePrice,omitempty"`
}

// NewTrade creates an open trade with a fresh ID. Prices are rounded to PricePrecision.
func NewTrade(symbol string, dir Direction, entry, stopLoss, takeProfit, riskPct float64, openedAt time.Time) *Trade {
	return &Trade{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Direction:  dir,
		EntryPrice: RoundPrice(entry),
		StopLoss:   RoundPrice(stopLoss),
		TakeProfit: RoundPrice(takeProfit),
		RiskPct:    riskPct,
		State:      StateOpen,
		OpenedAt:   openedAt,
	}
}

// IsOpen checks if the trade is still open.
func (t *Trade) IsOpen() bool {
	return t.State == StateOpen
}

// BracketValid reports whether stop and target sit on opposite sides of the entry
// in the sense required by the direction.
func (t *Trade) BracketValid() bool {
	switch t.Direction {
	case Long:
		return t.StopLoss < t.EntryPrice && t.EntryPrice < t.TakeProfit
	case Short:
		return t.TakeProfit < t.EntryPrice && t.EntryPrice < t.StopLoss
	default:
		return false
	}
}

// CheckExit evaluates the trade against a live price. The stop-loss is checked
// before the take-profit, so a gap through both closes as a stop.
func (t *Trade) CheckExit(price float64) (CloseResult, bool) {
	if !t.IsOpen() {
		return "", false
	}
	switch t.Direction {
	case Long:
		if price <= t.StopLoss {
			return ResultStopLoss, true
		}
		if price >= t.TakeProfit {
			return ResultTakeProfit, true
		}
	case Short:
		if price >= t.StopLoss {
			return ResultStopLoss, true
		}
		if price <= t.TakeProfit {
			return ResultTakeProfit, true
		}
	}
	return "", false
}

// Close moves the trade into its terminal state.
func (t *Trade) Close(result CloseResult, price float64, at time.Time) {
	if result == ResultTakeProfit {
		t.State = StateClosedByTakeProfit
	} else {
		t.State = StateClosedByStopLoss
	}
	t.ClosePrice = price
	t.ClosedAt = at
}

// Clone returns a copy of the trade.
func (t *Trade) Clone() *Trade {
	c := *t
	return &c
}

// ClosedTradeRecord is an entry of the rolling trade history.
type ClosedTradeRecord struct {
	ID         int64       `json:"id"` // assigned by the store
	TradeID    string      `json:"tradeId"`
	Symbol     string      `json:"symbol"`
	Direction  Direction   `json:"direction"`
	Result     CloseResult `json:"result"`
	EntryPrice float64     `json:"entryPrice"`
	ClosePrice float64     `json:"closePrice"`
	Timestamp  time.Time   `json:"timestamp"`
}

// IsWin reports whether the trade hit its target.
func (r *ClosedTradeRecord) IsWin() bool {
	return r.Result == ResultTakeProfit
}

// RecordFor builds the history record of a closed trade.
func RecordFor(t *Trade) *ClosedTradeRecord {
	result := ResultStopLoss
	if t.State == StateClosedByTakeProfit {
		result = ResultTakeProfit
	}
	return &ClosedTradeRecord{
		TradeID:    t.ID,
		Symbol:     t.Symbol,
		Direction:  t.Direction,
		Result:     result,
		EntryPrice: t.EntryPrice,
		ClosePrice: t.ClosePrice,
		Timestamp:  t.ClosedAt,
	}
}
