package indicators

import (
	"context"
	"fmt"

	"cryptoSignalAgent/internal/domain"
	"cryptoSignalAgent/internal/ports"
)

// Indicator represents a technical indicator that can be calculated from price data
type Indicator interface {
	// Calculate computes the indicator value for the given bars
	Calculate(ctx context.Context, bars []domain.Bar) (float64, error)

	// RequiredDataPoints returns the minimum number of bars needed for calculation
	RequiredDataPoints() int

	// Name returns the name of the indicator
	Name() string
}

// IndicatorConfig holds common configuration for indicators
type IndicatorConfig struct {
	Period int
}

// BaseIndicator provides common functionality for indicators
type BaseIndicator struct {
	Config IndicatorConfig
}

// RequiredDataPoints returns the minimum number of bars needed for calculation
func (b *BaseIndicator) RequiredDataPoints() int {
	return b.Config.Period
}

func insufficient(name string, need, got int) error {
	return fmt.Errorf("%s: need %d data points, got %d: %w", name, need, got, ports.ErrInsufficientData)
}

// SimpleMovingAverage returns the arithmetic mean of the last n values.
func SimpleMovingAverage(values []float64, n int) (float64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("SMA period must be positive, got %d", n)
	}
	if len(values) < n {
		return 0, insufficient("SMA", n, len(values))
	}
	total := 0.0
	for _, v := range values[len(values)-n:] {
		total += v
	}
	return total / float64(n), nil
}

// AverageVolume returns the mean volume of the last n bars.
func AverageVolume(bars []domain.Bar, n int) (float64, error) {
	if n > 0 && len(bars) < n {
		return 0, insufficient("volume average", n, len(bars))
	}
	return SimpleMovingAverage(domain.Volumes(bars), n)
}

// AverageTrueRange returns the flat mean of the true range of the last n bars.
// Each true range needs the previous close, so n+1 bars are required.
func AverageTrueRange(bars []domain.Bar, n int) (float64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("ATR period must be positive, got %d", n)
	}
	if len(bars) < n+1 {
		return 0, insufficient("ATR", n+1, len(bars))
	}
	total := 0.0
	for i := len(bars) - n; i < len(bars); i++ {
		total += TrueRange(bars[i], bars[i-1].Close)
	}
	return total / float64(n), nil
}
