package indicators

import (
	"context"
	"fmt"

	"cryptoSignalAgent/internal/domain"
)

// Source selects which bar field a moving average is computed over
type Source string

const (
	// SourceClose averages close prices
	SourceClose Source = "close"
	// SourceVolume averages volumes
	SourceVolume Source = "volume"
)

// MovingAverageConfig holds configuration for moving average indicators
type MovingAverageConfig struct {
	IndicatorConfig
	Source Source
}

// MovingAverage implements a simple moving average over closes or volumes
type MovingAverage struct {
	BaseIndicator
	config MovingAverageConfig
}

// NewMovingAverage creates a new moving average indicator instance
func NewMovingAverage(config MovingAverageConfig) *MovingAverage {
	if config.Source == "" {
		config.Source = SourceClose
	}
	return &MovingAverage{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}
}

// Name returns the name of the indicator
func (m *MovingAverage) Name() string {
	if m.config.Source == SourceVolume {
		return fmt.Sprintf("VOL_SMA%d", m.Config.Period)
	}
	return fmt.Sprintf("SMA%d", m.Config.Period)
}

// Calculate computes the moving average over the configured source
func (m *MovingAverage) Calculate(ctx context.Context, bars []domain.Bar) (float64, error) {
	switch m.config.Source {
	case SourceClose:
		return SimpleMovingAverage(domain.Closes(bars), m.Config.Period)
	case SourceVolume:
		return AverageVolume(bars, m.Config.Period)
	default:
		return 0, fmt.Errorf("unsupported moving average source: %s", m.config.Source)
	}
}
