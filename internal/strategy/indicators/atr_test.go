package indicators

import (
	"context"
	"errors"
	"math"
	"testing"

	"cryptoSignalAgent/internal/domain"
	"cryptoSignalAgent/internal/ports"
)

func atrBars() []domain.Bar {
	return []domain.Bar{
		{High: 10.5, Low: 9.5, Close: 10},
		{High: 12, Low: 9, Close: 11},     // TR = 3 (high-low)
		{High: 11.5, Low: 10.5, Close: 11}, // TR = 1
		{High: 14, Low: 11, Close: 13},     // TR = 3 (high-low and high-prevClose tie)
		{High: 20, Low: 18, Close: 19},     // TR = 7 (gap, high-prevClose)
	}
}

func TestAverageTrueRange(t *testing.T) {
	tests := []struct {
		name        string
		period      int
		bars        []domain.Bar
		expected    float64
		expectError bool
	}{
		{name: "last two bars", period: 2, bars: atrBars(), expected: 5.0},
		{name: "last three bars", period: 3, bars: atrBars(), expected: 11.0 / 3.0},
		{name: "uses every bar with a predecessor", period: 4, bars: atrBars(), expected: 3.5},
		{name: "needs period plus one bars", period: 5, bars: atrBars(), expectError: true},
		{name: "non-positive period", period: 0, bars: atrBars(), expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			atr := NewATR(ATRConfig{IndicatorConfig: IndicatorConfig{Period: tt.period}})
			value, err := atr.Calculate(context.Background(), tt.bars)
			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if math.Abs(value-tt.expected) > 1e-9 {
				t.Errorf("Expected ATR %f, got %f", tt.expected, value)
			}
		})
	}
}

func TestAverageTrueRange_InsufficientIsClassified(t *testing.T) {
	_, err := AverageTrueRange(atrBars()[:3], 3)
	if !errors.Is(err, ports.ErrInsufficientData) {
		t.Errorf("Expected ErrInsufficientData, got %v", err)
	}
}

func TestATR_RequiredDataPoints(t *testing.T) {
	atr := NewATR(ATRConfig{IndicatorConfig: IndicatorConfig{Period: 14}})
	if got := atr.RequiredDataPoints(); got != 15 {
		t.Errorf("Expected 15 required points, got %d", got)
	}
	if name := atr.Name(); name != "ATR14" {
		t.Errorf("Expected name ATR14, got %s", name)
	}
}
