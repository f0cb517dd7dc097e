package indicators

import (
	"context"
	"fmt"
	"math"

	"cryptoSignalAgent/internal/domain"
)

// ATRConfig holds configuration for the Average True Range indicator
type ATRConfig struct {
	IndicatorConfig
}

// ATR implements the Average True Range indicator as a flat mean of true ranges
type ATR struct {
	BaseIndicator
}

// NewATR creates a new Average True Range indicator instance
func NewATR(config ATRConfig) *ATR {
	return &ATR{BaseIndicator: BaseIndicator{Config: config.IndicatorConfig}}
}

// Name returns the name of the indicator
func (a *ATR) Name() string {
	return fmt.Sprintf("ATR%d", a.Config.Period)
}

// RequiredDataPoints returns period+1 since the oldest true range needs a previous close
func (a *ATR) RequiredDataPoints() int {
	return a.Config.Period + 1
}

// Calculate computes the Average True Range value for the given bars
func (a *ATR) Calculate(ctx context.Context, bars []domain.Bar) (float64, error) {
	return AverageTrueRange(bars, a.Config.Period)
}

// TrueRange is the greatest of:
// 1. Current High - Current Low
// 2. |Current High - Previous Close|
// 3. |Current Low - Previous Close|
func TrueRange(bar domain.Bar, prevClose float64) float64 {
	tr1 := bar.High - bar.Low
	tr2 := math.Abs(bar.High - prevClose)
	tr3 := math.Abs(bar.Low - prevClose)
	return math.Max(tr1, math.Max(tr2, tr3))
}
