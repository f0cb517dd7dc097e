package risk

import (
	"context"
	"fmt"
	"math"

	"cryptoSignalAgent/internal/domain"
	"cryptoSignalAgent/internal/ports"
)

// ProximityBand is the relative distance under which two entries in the same
// direction are treated as the same signal.
const ProximityBand = 0.01

// RiskConfig holds configuration for stop-loss and take-profit sizing
type RiskConfig struct {
	Mode              domain.SizingMode
	StopLossPercent   float64
	TakeProfitPercent float64
	StopLossATR       float64
	TakeProfitATR     float64
}

// ConfigFromParameters extracts the sizing configuration from strategy parameters.
func ConfigFromParameters(p domain.StrategyParameters) RiskConfig {
	return RiskConfig{
		Mode:              p.SizingMode,
		StopLossPercent:   p.StopLossPct,
		TakeProfitPercent: p.TakeProfitPct,
		StopLossATR:       p.StopLossATR,
		TakeProfitATR:     p.TakeProfitATR,
	}
}

// RiskManager computes stop/target brackets for new trades
type RiskManager struct {
	config RiskConfig
}

// NewRiskManager creates a new risk manager instance
func NewRiskManager(config RiskConfig) *RiskManager {
	if config.Mode == "" {
		config.Mode = domain.SizingPercent
	}
	return &RiskManager{config: config}
}

// GetStopLoss calculates the stop loss price for a position
func (r *RiskManager) GetStopLoss(ctx context.Context, entryPrice, atr float64, dir domain.Direction) float64 {
	dist := entryPrice * r.config.StopLossPercent
	if r.config.Mode == domain.SizingATR {
		dist = atr * r.config.StopLossATR
	}
	if dir == domain.Long {
		return domain.RoundPrice(entryPrice - dist)
	}
	return domain.RoundPrice(entryPrice + dist)
}

// GetTakeProfit calculates the take profit price for a position
func (r *RiskManager) GetTakeProfit(ctx context.Context, entryPrice, atr float64, dir domain.Direction) float64 {
	dist := entryPrice * r.config.TakeProfitPercent
	if r.config.Mode == domain.SizingATR {
		dist = atr * r.config.TakeProfitATR
	}
	if dir == domain.Long {
		return domain.RoundPrice(entryPrice + dist)
	}
	return domain.RoundPrice(entryPrice - dist)
}

// Bracket returns the stop and target for an entry and checks that they sit on
// the correct sides of it with positive prices.
func (r *RiskManager) Bracket(ctx context.Context, entryPrice, atr float64, dir domain.Direction) (stopLoss, takeProfit float64, err error) {
	if !dir.Valid() {
		return 0, 0, fmt.Errorf("unknown direction %q: %w", dir, ports.ErrInvalidTrade)
	}
	if entryPrice <= 0 {
		return 0, 0, fmt.Errorf("entry price %f must be positive: %w", entryPrice, ports.ErrInvalidTrade)
	}
	if r.config.Mode == domain.SizingATR && atr <= 0 {
		return 0, 0, fmt.Errorf("ATR sizing needs a positive ATR, got %f: %w", atr, ports.ErrInvalidTrade)
	}

	stopLoss = r.GetStopLoss(ctx, entryPrice, atr, dir)
	takeProfit = r.GetTakeProfit(ctx, entryPrice, atr, dir)
	if stopLoss <= 0 || takeProfit <= 0 {
		return 0, 0, fmt.Errorf("bracket %f/%f for entry %f is not positive: %w", stopLoss, takeProfit, entryPrice, ports.ErrInvalidTrade)
	}

	probe := domain.Trade{Direction: dir, EntryPrice: domain.RoundPrice(entryPrice), StopLoss: stopLoss, TakeProfit: takeProfit}
	if !probe.BracketValid() {
		return 0, 0, fmt.Errorf("bracket %f/%f does not straddle entry %f: %w", stopLoss, takeProfit, entryPrice, ports.ErrInvalidTrade)
	}
	return stopLoss, takeProfit, nil
}

// IsNearDuplicate reports whether entry lies within ProximityBand of existing,
// measured relative to the new entry.
func IsNearDuplicate(existing, entry float64) bool {
	if entry == 0 {
		return existing == 0
	}
	return math.Abs(existing-entry)/entry < ProximityBand
}
