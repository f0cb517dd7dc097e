package domain

import (
	"fmt"
	"strings"
)

// StrategyParameters holds the tunable configuration read by the signal detector.
type StrategyParameters struct {
	FastWindow     int        `json:"fastWindow" yaml:"fastWindow"`         // fast SMA length, e.g. 6
	SlowWindow     int        `json:"slowWindow" yaml:"slowWindow"`         // slow SMA length, e.g. 70
	ATRWindow      int        `json:"atrWindow" yaml:"atrWindow"`           // ATR length, e.g. 14
	VolumeWindow   int        `json:"volumeWindow" yaml:"volumeWindow"`     // volume average length, e.g. 20
	PullbackATR    float64    `json:"pullbackAtr" yaml:"pullbackAtr"`       // max |close - fastAvg| in ATR units
	SizingMode     SizingMode `json:"sizingMode" yaml:"sizingMode"`         // percent or atr
	StopLossPct    float64    `json:"stopLossPct" yaml:"stopLossPct"`       // e.g. 0.03 for 3%
	TakeProfitPct  float64    `json:"takeProfitPct" yaml:"takeProfitPct"`   // e.g. 0.04 for 4%
	StopLossATR    float64    `json:"stopLossAtr" yaml:"stopLossAtr"`       // ATR multiple in atr mode
	TakeProfitATR  float64    `json:"takeProfitAtr" yaml:"takeProfitAtr"`   // ATR multiple in atr mode
	MinVolumeRatio float64    `json:"minVolumeRatio" yaml:"minVolumeRatio"` // last volume must be >= ratio * volume average
	RiskPct        float64    `json:"riskPct" yaml:"riskPct"`               // advertised risk per signal, in percent
}

// DefaultParameters returns the built-in strategy parameters.
func DefaultParameters() StrategyParameters {
	return StrategyParameters{
		FastWindow:     6,
		SlowWindow:     70,
		ATRWindow:      14,
		VolumeWindow:   20,
		PullbackATR:    0.25,
		SizingMode:     SizingPercent,
		StopLossPct:    0.03,
		TakeProfitPct:  0.04,
		StopLossATR:    1.5,
		TakeProfitATR:  2.0,
		MinVolumeRatio: 0.8,
		RiskPct:        3.0,
	}
}

// Validate checks the parameters and reports every problem found.
func (p StrategyParameters) Validate() error {
	var errs []string
	if p.FastWindow <= 0 || p.SlowWindow <= 0 || p.ATRWindow <= 0 || p.VolumeWindow <= 0 {
		errs = append(errs, "indicator windows must be positive")
	}
	if p.FastWindow >= p.SlowWindow {
		errs = append(errs, "fast window must be less than slow window")
	}
	if p.PullbackATR <= 0 {
		errs = append(errs, "pullback tolerance must be positive")
	}
	switch p.SizingMode {
	case SizingPercent:
		if p.StopLossPct <= 0 || p.StopLossPct >= 1 {
			errs = append(errs, "stop loss percentage must be between 0 and 1 (exclusive)")
		}
		if p.TakeProfitPct <= 0 {
			errs = append(errs, "take profit percentage must be positive")
		}
	case SizingATR:
		if p.StopLossATR <= 0 || p.TakeProfitATR <= 0 {
			errs = append(errs, "ATR multiples must be positive")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown sizing mode %q", p.SizingMode))
	}
	if p.MinVolumeRatio < 0 {
		errs = append(errs, "minimum volume ratio cannot be negative")
	}
	if p.RiskPct <= 0 {
		errs = append(errs, "risk percentage must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid strategy parameters: %s", strings.Join(errs, "; "))
	}
	return nil
}
