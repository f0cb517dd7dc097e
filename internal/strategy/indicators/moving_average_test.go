package indicators

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"cryptoSignalAgent/internal/domain"
	"cryptoSignalAgent/internal/ports"
)

func testBars() []domain.Bar {
	now := time.Now()
	return []domain.Bar{
		{Time: now.Add(-4 * time.Hour), Close: 100.0, Volume: 10},
		{Time: now.Add(-3 * time.Hour), Close: 102.0, Volume: 20},
		{Time: now.Add(-2 * time.Hour), Close: 101.0, Volume: 30},
		{Time: now.Add(-1 * time.Hour), Close: 103.0, Volume: 40},
		{Time: now, Close: 104.0, Volume: 50},
	}
}

func TestMovingAverage_Calculate(t *testing.T) {
	tests := []struct {
		name          string
		config        MovingAverageConfig
		bars          []domain.Bar
		expectedValue float64
		expectError   bool
	}{
		{
			name: "SMA with sufficient data",
			config: MovingAverageConfig{
				IndicatorConfig: IndicatorConfig{Period: 3},
				Source:          SourceClose,
			},
			bars:          testBars(),
			expectedValue: 102.666667, // (101 + 103 + 104) / 3
		},
		{
			name: "SMA over the whole series",
			config: MovingAverageConfig{
				IndicatorConfig: IndicatorConfig{Period: 5},
			},
			bars:          testBars(),
			expectedValue: 102.0,
		},
		{
			name: "volume average",
			config: MovingAverageConfig{
				IndicatorConfig: IndicatorConfig{Period: 2},
				Source:          SourceVolume,
			},
			bars:          testBars(),
			expectedValue: 45.0,
		},
		{
			name: "Insufficient data",
			config: MovingAverageConfig{
				IndicatorConfig: IndicatorConfig{Period: 6},
				Source:          SourceClose,
			},
			bars:        testBars(),
			expectError: true,
		},
		{
			name: "Invalid source",
			config: MovingAverageConfig{
				IndicatorConfig: IndicatorConfig{Period: 3},
				Source:          "INVALID",
			},
			bars:        testBars(),
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ma := NewMovingAverage(tt.config)
			value, err := ma.Calculate(context.Background(), tt.bars)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}

			// Allow for small floating point differences
			if math.Abs(value-tt.expectedValue) > 0.0001 {
				t.Errorf("Expected value %f, got %f", tt.expectedValue, value)
			}
		})
	}
}

func TestMovingAverage_Name(t *testing.T) {
	tests := []struct {
		name     string
		config   MovingAverageConfig
		expected string
	}{
		{
			name:     "close SMA name",
			config:   MovingAverageConfig{IndicatorConfig: IndicatorConfig{Period: 6}},
			expected: "SMA6",
		},
		{
			name:     "volume SMA name",
			config:   MovingAverageConfig{IndicatorConfig: IndicatorConfig{Period: 20}, Source: SourceVolume},
			expected: "VOL_SMA20",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ma := NewMovingAverage(tt.config)
			if name := ma.Name(); name != tt.expected {
				t.Errorf("Expected name %s, got %s", tt.expected, name)
			}
		})
	}
}

func TestSimpleMovingAverage_Undefined(t *testing.T) {
	_, err := SimpleMovingAverage([]float64{1, 2}, 3)
	if !errors.Is(err, ports.ErrInsufficientData) {
		t.Errorf("Expected ErrInsufficientData, got %v", err)
	}

	if _, err := SimpleMovingAverage([]float64{1, 2}, 0); err == nil {
		t.Error("Expected error for non-positive period")
	}
}
