package strategy

import (
	"context"
	"fmt"
	"math"
	"time"

	"cryptoSignalAgent/internal/domain"
	"cryptoSignalAgent/internal/ports"
	"cryptoSignalAgent/internal/risk"
	"cryptoSignalAgent/internal/strategy/indicators"
)

// DefaultLookback is how long a closed trade blocks a new signal for the same symbol and direction.
const DefaultLookback = 24 * time.Hour

// Input is everything the detector needs to evaluate one symbol.
type Input struct {
	Symbol     string
	Bars       []domain.Bar // oldest first
	OpenTrades []*domain.Trade
	History    []*domain.ClosedTradeRecord
	Params     domain.StrategyParameters
	Now        time.Time
}

// Snapshot holds the indicator values computed from the trailing bars.
type Snapshot struct {
	FastAvg    float64
	SlowAvg    float64
	ATR        float64
	VolumeAvg  float64
	LastClose  float64
	LastVolume float64
}

// Detector decides when the trend, pullback and volume conditions open a new trade.
type Detector struct {
	logger   ports.Logger
	lookback time.Duration
}

// NewDetector creates a new Detector instance.
func NewDetector(logger ports.Logger) (*Detector, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for detector")
	}
	return &Detector{logger: logger, lookback: DefaultLookback}, nil
}

// indicatorSet is the indicator family the detector reads, sized from the parameters.
type indicatorSet struct {
	fast   *indicators.MovingAverage
	slow   *indicators.MovingAverage
	atr    *indicators.ATR
	volume *indicators.MovingAverage
}

func newIndicatorSet(params domain.StrategyParameters) indicatorSet {
	return indicatorSet{
		fast: indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: params.FastWindow},
			Source:          indicators.SourceClose,
		}),
		slow: indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: params.SlowWindow},
			Source:          indicators.SourceClose,
		}),
		atr: indicators.NewATR(indicators.ATRConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: params.ATRWindow},
		}),
		volume: indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: params.VolumeWindow},
			Source:          indicators.SourceVolume,
		}),
	}
}

func (s indicatorSet) all() []indicators.Indicator {
	return []indicators.Indicator{s.fast, s.slow, s.atr, s.volume}
}

// RequiredDataPoints is the longest window among the indicators.
func (s indicatorSet) RequiredDataPoints() int {
	n := 0
	for _, ind := range s.all() {
		if r := ind.RequiredDataPoints(); r > n {
			n = r
		}
	}
	return n
}

// RequiredBars returns the minimum series length for which every indicator is defined.
func RequiredBars(params domain.StrategyParameters) int {
	return newIndicatorSet(params).RequiredDataPoints()
}

// ComputeSnapshot calculates every indicator for the bar series.
// Any undefined indicator yields an error wrapping ports.ErrInsufficientData.
func ComputeSnapshot(ctx context.Context, bars []domain.Bar, params domain.StrategyParameters) (Snapshot, error) {
	set := newIndicatorSet(params)
	if required := set.RequiredDataPoints(); len(bars) < required {
		return Snapshot{}, fmt.Errorf("have %d bars, need %d: %w", len(bars), required, ports.ErrInsufficientData)
	}

	values := make([]float64, 0, 4)
	for _, ind := range set.all() {
		v, err := ind.Calculate(ctx, bars)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%s: %w", ind.Name(), err)
		}
		values = append(values, v)
	}

	last := bars[len(bars)-1]
	return Snapshot{
		FastAvg:    values[0],
		SlowAvg:    values[1],
		ATR:        values[2],
		VolumeAvg:  values[3],
		LastClose:  last.Close,
		LastVolume: last.Volume,
	}, nil
}

// Evaluate returns the trades that should be opened for the symbol this cycle.
// Insufficient history is reported as an error wrapping ports.ErrInsufficientData
// and never yields a trade.
func (d *Detector) Evaluate(ctx context.Context, in Input) ([]*domain.Trade, error) {
	snap, err := ComputeSnapshot(ctx, in.Bars, in.Params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", in.Symbol, err)
	}
	return d.evaluateSnapshot(ctx, in, snap), nil
}

func (d *Detector) evaluateSnapshot(ctx context.Context, in Input, snap Snapshot) []*domain.Trade {
	p := in.Params
	volumeOK := snap.LastVolume >= p.MinVolumeRatio*snap.VolumeAvg
	pullbackOK := math.Abs(snap.LastClose-snap.FastAvg) <= snap.ATR*p.PullbackATR

	fields := map[string]interface{}{
		"symbol":     in.Symbol,
		"close":      snap.LastClose,
		"fastAvg":    snap.FastAvg,
		"slowAvg":    snap.SlowAvg,
		"atr":        snap.ATR,
		"volumeOk":   volumeOK,
		"pullbackOk": pullbackOK,
	}
	if !volumeOK || !pullbackOK {
		d.logger.Debug(ctx, "Entry conditions not met", fields)
		return nil
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	sizer := risk.NewRiskManager(risk.ConfigFromParameters(p))
	entry := domain.RoundPrice(snap.LastClose)

	var trades []*domain.Trade
	for _, dir := range []domain.Direction{domain.Long, domain.Short} {
		// Equal averages open nothing.
		if dir == domain.Long && !(snap.FastAvg > snap.SlowAvg) {
			continue
		}
		if dir == domain.Short && !(snap.FastAvg < snap.SlowAvg) {
			continue
		}

		if reason := d.duplicateReason(in, dir, entry, now); reason != "" {
			d.logger.Debug(ctx, "Signal suppressed", map[string]interface{}{
				"symbol": in.Symbol, "direction": dir, "entry": entry, "reason": reason,
			})
			continue
		}

		sl, tp, err := sizer.Bracket(ctx, entry, snap.ATR, dir)
		if err != nil {
			d.logger.Warn(ctx, "Cannot size bracket for signal", map[string]interface{}{
				"symbol": in.Symbol, "direction": dir, "entry": entry, "error": err.Error(),
			})
			continue
		}

		trade := domain.NewTrade(in.Symbol, dir, entry, sl, tp, p.RiskPct, now)
		d.logger.Info(ctx, "Entry conditions met", map[string]interface{}{
			"symbol":     in.Symbol,
			"direction":  dir,
			"entry":      trade.EntryPrice,
			"stopLoss":   trade.StopLoss,
			"takeProfit": trade.TakeProfit,
			"fastAvg":    snap.FastAvg,
			"slowAvg":    snap.SlowAvg,
			"atr":        snap.ATR,
		})
		trades = append(trades, trade)
	}
	return trades
}

func (d *Detector) duplicateReason(in Input, dir domain.Direction, entry float64, now time.Time) string {
	for _, t := range in.OpenTrades {
		if t.Symbol == in.Symbol && t.Direction == dir && t.IsOpen() && risk.IsNearDuplicate(t.EntryPrice, entry) {
			return "open trade at similar entry"
		}
	}
	cutoff := now.Add(-d.lookback)
	for _, rec := range in.History {
		if rec.Symbol == in.Symbol && rec.Direction == dir && rec.Timestamp.After(cutoff) {
			return "closed trade within lookback"
		}
	}
	return ""
}
