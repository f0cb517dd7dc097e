package optimization

import (
	"context"
	"fmt"
	"math"

	"cryptoSignalAgent/internal/domain"
	"cryptoSignalAgent/internal/ports"
	"cryptoSignalAgent/internal/strategy/analytics"
)

// ParameterUpdater applies a change to the shared strategy parameters.
// Implemented by strategy.ParameterStore.
type ParameterUpdater interface {
	Update(ctx context.Context, fn func(p *domain.StrategyParameters) bool) (domain.StrategyParameters, bool, error)
}

// TunerConfig holds the thresholds and bounds of the win-rate ratchet
type TunerConfig struct {
	Window           int     // number of most recent closed trades considered
	LowWinRate       float64 // below this the strategy tightens
	HighWinRate      float64 // above this the strategy gets more aggressive
	PullbackFactor   float64 // multiplier applied to the pullback tolerance when tightening
	MinPullbackATR   float64
	VolumeWindowStep int
	MaxVolumeWindow  int
	RiskFactor       float64 // multiplier applied to the risk percentage when loosening
	MaxRiskPct       float64
}

// DefaultTunerConfig returns the standard ratchet settings.
func DefaultTunerConfig() TunerConfig {
	return TunerConfig{
		Window:           30,
		LowWinRate:       0.45,
		HighWinRate:      0.65,
		PullbackFactor:   0.9,
		MinPullbackATR:   0.05,
		VolumeWindowStep: 2,
		MaxVolumeWindow:  60,
		RiskFactor:       1.05,
		MaxRiskPct:       10.0,
	}
}

// Adjustment describes what a tuning pass did.
type Adjustment string

const (
	AdjustNone       Adjustment = "none"
	AdjustTighten    Adjustment = "tighten"
	AdjustAggressive Adjustment = "aggressive"
)

// TuneResult holds the outcome of a tuning pass
type TuneResult struct {
	Ran        bool // false when there was not enough history
	WinRate    float64
	Adjustment Adjustment
	Changed    bool
	Parameters domain.StrategyParameters
}

// Tuner nudges strategy parameters from the trailing win rate
type Tuner struct {
	config TunerConfig
	store  ParameterUpdater
	logger ports.Logger
}

// NewTuner creates a new tuner instance
func NewTuner(config TunerConfig, store ParameterUpdater, logger ports.Logger) (*Tuner, error) {
	if store == nil || logger == nil {
		return nil, fmt.Errorf("tuner requires a parameter store and a logger")
	}
	if config.Window <= 0 {
		return nil, fmt.Errorf("tuner window must be positive, got %d", config.Window)
	}
	if config.LowWinRate > config.HighWinRate {
		return nil, fmt.Errorf("low win rate %.2f above high win rate %.2f", config.LowWinRate, config.HighWinRate)
	}
	return &Tuner{config: config, store: store, logger: logger}, nil
}

// Tune evaluates the most recent closed trades (oldest first) and adjusts the
// parameters when the win rate leaves the neutral band.
func (t *Tuner) Tune(ctx context.Context, history []*domain.ClosedTradeRecord) (TuneResult, error) {
	rate, ok := analytics.RecentWinRate(history, t.config.Window)
	if !ok {
		t.logger.Debug(ctx, "Not enough closed trades to tune", map[string]interface{}{
			"available": len(history),
			"required":  t.config.Window,
		})
		return TuneResult{Adjustment: AdjustNone}, nil
	}

	result := TuneResult{Ran: true, WinRate: rate, Adjustment: AdjustNone}
	switch {
	case rate < t.config.LowWinRate:
		result.Adjustment = AdjustTighten
	case rate > t.config.HighWinRate:
		result.Adjustment = AdjustAggressive
	default:
		t.logger.Info(ctx, "Win rate within neutral band, parameters unchanged", map[string]interface{}{"winRate": rate})
		return result, nil
	}

	params, changed, err := t.store.Update(ctx, func(p *domain.StrategyParameters) bool {
		return t.apply(p, result.Adjustment)
	})
	result.Parameters = params
	result.Changed = changed
	if err != nil {
		return result, fmt.Errorf("applying %s adjustment: %w", result.Adjustment, err)
	}

	t.logger.Info(ctx, "Strategy parameters tuned", map[string]interface{}{
		"winRate":      rate,
		"adjustment":   result.Adjustment,
		"changed":      changed,
		"pullbackAtr":  params.PullbackATR,
		"volumeWindow": params.VolumeWindow,
		"riskPct":      params.RiskPct,
	})
	return result, nil
}

// apply mutates p in place and reports whether anything changed.
func (t *Tuner) apply(p *domain.StrategyParameters, adj Adjustment) bool {
	before := *p
	switch adj {
	case AdjustTighten:
		p.PullbackATR = domain.RoundPrice(math.Max(t.config.MinPullbackATR, p.PullbackATR*t.config.PullbackFactor))
		p.VolumeWindow = minInt(t.config.MaxVolumeWindow, p.VolumeWindow+t.config.VolumeWindowStep)
	case AdjustAggressive:
		p.RiskPct = domain.RoundPrice(math.Min(t.config.MaxRiskPct, p.RiskPct*t.config.RiskFactor))
	}
	return *p != before
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
