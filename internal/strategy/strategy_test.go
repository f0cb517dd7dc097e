package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"cryptoSignalAgent/internal/domain"
	"cryptoSignalAgent/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct {
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.errorMsgs = append(m.errorMsgs, msg)
}

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// trendBars builds n hourly bars whose close moves by step each bar, with a
// constant high-low range of 1 so every true range equals 1.
func trendBars(n int, start, step, volume float64) []domain.Bar {
	bars := make([]domain.Bar, n)
	for i := 0; i < n; i++ {
		c := start + float64(i)*step
		bars[i] = domain.Bar{
			Time:   testNow.Add(time.Duration(i-n) * time.Hour),
			Open:   c,
			High:   c + 0.5,
			Low:    c - 0.5,
			Close:  c,
			Volume: volume,
		}
	}
	return bars
}

func newTestDetector(t *testing.T) *Detector {
	d, err := NewDetector(&mockLogger{})
	require.NoError(t, err)
	return d
}

func TestNewDetector(t *testing.T) {
	_, err := NewDetector(nil)
	assert.Error(t, err)

	d, err := NewDetector(&mockLogger{})
	require.NoError(t, err)
	assert.Equal(t, DefaultLookback, d.lookback)
}

func TestComputeSnapshot(t *testing.T) {
	params := domain.DefaultParameters()
	bars := trendBars(70, 100, 0.05, 10)

	snap, err := ComputeSnapshot(context.Background(), bars, params)
	require.NoError(t, err)
	assert.InDelta(t, 103.325, snap.FastAvg, 1e-9)
	assert.InDelta(t, 101.725, snap.SlowAvg, 1e-9)
	assert.InDelta(t, 1.0, snap.ATR, 1e-9)
	assert.InDelta(t, 10.0, snap.VolumeAvg, 1e-9)
	assert.InDelta(t, 103.45, snap.LastClose, 1e-9)
}

func TestRequiredBars(t *testing.T) {
	params := domain.DefaultParameters()
	assert.Equal(t, 70, RequiredBars(params), "slow window dominates")

	params.SlowWindow = 10
	assert.Equal(t, 20, RequiredBars(params), "volume window dominates")

	params.VolumeWindow = 5
	assert.Equal(t, 15, RequiredBars(params), "ATR needs one extra bar")

	set := newIndicatorSet(params)
	names := make([]string, 0, 4)
	for _, ind := range set.all() {
		names = append(names, ind.Name())
	}
	assert.Equal(t, []string{"SMA6", "SMA10", "ATR14", "VOL_SMA5"}, names)
}

func TestComputeSnapshot_ExactlyRequiredBars(t *testing.T) {
	params := domain.DefaultParameters()
	params.SlowWindow = 10
	params.VolumeWindow = 5

	_, err := ComputeSnapshot(context.Background(), trendBars(14, 100, 0.05, 10), params)
	assert.True(t, errors.Is(err, ports.ErrInsufficientData), "err=%v", err)

	snap, err := ComputeSnapshot(context.Background(), trendBars(15, 100, 0.05, 10), params)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, snap.ATR, 1e-9)
	assert.InDelta(t, 100.475, snap.SlowAvg, 1e-9)
}

func TestEvaluate_InsufficientBars(t *testing.T) {
	d := newTestDetector(t)
	params := domain.DefaultParameters()

	for _, n := range []int{0, 1, 15, RequiredBars(params) - 1} {
		trades, err := d.Evaluate(context.Background(), Input{
			Symbol: "BTCUSDT",
			Bars:   trendBars(n, 100, 0.05, 10),
			Params: params,
			Now:    testNow,
		})
		assert.True(t, errors.Is(err, ports.ErrInsufficientData), "bars=%d err=%v", n, err)
		assert.Empty(t, trades, "bars=%d", n)
	}
}

func TestEvaluate_LongEntry(t *testing.T) {
	d := newTestDetector(t)
	trades, err := d.Evaluate(context.Background(), Input{
		Symbol: "BTCUSDT",
		Bars:   trendBars(70, 100, 0.05, 10),
		Params: domain.DefaultParameters(),
		Now:    testNow,
	})
	require.NoError(t, err)
	require.Len(t, trades, 1)

	tr := trades[0]
	assert.Equal(t, domain.Long, tr.Direction)
	assert.Equal(t, domain.StateOpen, tr.State)
	assert.InDelta(t, 103.45, tr.EntryPrice, 1e-9)
	assert.InDelta(t, 100.3465, tr.StopLoss, 1e-9)
	assert.InDelta(t, 107.588, tr.TakeProfit, 1e-9)
	assert.Equal(t, 3.0, tr.RiskPct)
	assert.Equal(t, testNow, tr.OpenedAt)
	assert.True(t, tr.BracketValid())
}

func TestEvaluate_ShortEntry(t *testing.T) {
	d := newTestDetector(t)
	trades, err := d.Evaluate(context.Background(), Input{
		Symbol: "ETHUSDT",
		Bars:   trendBars(70, 100, -0.05, 10),
		Params: domain.DefaultParameters(),
		Now:    testNow,
	})
	require.NoError(t, err)
	require.Len(t, trades, 1)

	tr := trades[0]
	assert.Equal(t, domain.Short, tr.Direction)
	assert.InDelta(t, 96.55, tr.EntryPrice, 1e-9)
	assert.Greater(t, tr.StopLoss, tr.EntryPrice)
	assert.Less(t, tr.TakeProfit, tr.EntryPrice)
	assert.True(t, tr.BracketValid())
}

func TestEvaluate_LowVolumeSuppressesEntry(t *testing.T) {
	d := newTestDetector(t)
	bars := trendBars(70, 100, 0.05, 10)
	bars[len(bars)-1].Volume = 5

	trades, err := d.Evaluate(context.Background(), Input{
		Symbol: "BTCUSDT",
		Bars:   bars,
		Params: domain.DefaultParameters(),
		Now:    testNow,
	})
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestEvaluate_AntiDuplicate(t *testing.T) {
	params := domain.DefaultParameters()
	bars := trendBars(70, 100, 0.05, 10)

	tests := []struct {
		name       string
		openTrades []*domain.Trade
		history    []*domain.ClosedTradeRecord
		wantTrades int
	}{
		{
			name:       "open long at the same entry",
			openTrades: []*domain.Trade{domain.NewTrade("BTCUSDT", domain.Long, 103.45, 100, 107, 3, testNow.Add(-time.Hour))},
			wantTrades: 0,
		},
		{
			name:       "open long within one percent",
			openTrades: []*domain.Trade{domain.NewTrade("BTCUSDT", domain.Long, 102.9, 100, 107, 3, testNow.Add(-time.Hour))},
			wantTrades: 0,
		},
		{
			name:       "open long further than one percent away",
			openTrades: []*domain.Trade{domain.NewTrade("BTCUSDT", domain.Long, 101, 98, 105, 3, testNow.Add(-time.Hour))},
			wantTrades: 1,
		},
		{
			name:       "open short at the same price does not block a long",
			openTrades: []*domain.Trade{domain.NewTrade("BTCUSDT", domain.Short, 103.45, 106, 100, 3, testNow.Add(-time.Hour))},
			wantTrades: 1,
		},
		{
			name: "long closed within the last day",
			history: []*domain.ClosedTradeRecord{
				{Symbol: "BTCUSDT", Direction: domain.Long, Result: domain.ResultStopLoss, Timestamp: testNow.Add(-23 * time.Hour)},
			},
			wantTrades: 0,
		},
		{
			name: "long closed more than a day ago",
			history: []*domain.ClosedTradeRecord{
				{Symbol: "BTCUSDT", Direction: domain.Long, Result: domain.ResultStopLoss, Timestamp: testNow.Add(-25 * time.Hour)},
			},
			wantTrades: 1,
		},
		{
			name: "recent close of another symbol",
			history: []*domain.ClosedTradeRecord{
				{Symbol: "ETHUSDT", Direction: domain.Long, Result: domain.ResultTakeProfit, Timestamp: testNow.Add(-time.Hour)},
			},
			wantTrades: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDetector(t)
			trades, err := d.Evaluate(context.Background(), Input{
				Symbol:     "BTCUSDT",
				Bars:       bars,
				OpenTrades: tt.openTrades,
				History:    tt.history,
				Params:     params,
				Now:        testNow,
			})
			require.NoError(t, err)
			assert.Len(t, trades, tt.wantTrades)
		})
	}
}

func TestEvaluate_SameInputTwiceDoesNotDuplicate(t *testing.T) {
	d := newTestDetector(t)
	in := Input{
		Symbol: "BTCUSDT",
		Bars:   trendBars(70, 100, 0.05, 10),
		Params: domain.DefaultParameters(),
		Now:    testNow,
	}

	first, err := d.Evaluate(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, first, 1)

	in.OpenTrades = first
	second, err := d.Evaluate(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestEvaluateSnapshot_Scenarios(t *testing.T) {
	snap := Snapshot{FastAvg: 105, SlowAvg: 100, ATR: 2, VolumeAvg: 10, LastClose: 104, LastVolume: 10}

	tests := []struct {
		name      string
		snap      Snapshot
		tolerance float64
		wantLong  bool
	}{
		{name: "pullback too far for tight tolerance", snap: snap, tolerance: 0.25, wantLong: false},
		{name: "pullback inside wide tolerance", snap: snap, tolerance: 2.0, wantLong: true},
		{
			name:      "equal averages open nothing",
			snap:      Snapshot{FastAvg: 100, SlowAvg: 100, ATR: 2, VolumeAvg: 10, LastClose: 100, LastVolume: 10},
			tolerance: 2.0,
			wantLong:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDetector(t)
			params := domain.DefaultParameters()
			params.PullbackATR = tt.tolerance

			trades := d.evaluateSnapshot(context.Background(), Input{Symbol: "BTCUSDT", Params: params, Now: testNow}, tt.snap)
			if !tt.wantLong {
				assert.Empty(t, trades)
				return
			}
			require.Len(t, trades, 1)
			assert.Equal(t, domain.Long, trades[0].Direction)
			assert.Equal(t, 104.0, trades[0].EntryPrice)
			assert.Equal(t, domain.RoundPrice(104*0.97), trades[0].StopLoss)
			assert.Equal(t, domain.RoundPrice(104*1.04), trades[0].TakeProfit)
		})
	}
}

func TestEvaluateSnapshot_ATRSizing(t *testing.T) {
	d := newTestDetector(t)
	params := domain.DefaultParameters()
	params.SizingMode = domain.SizingATR
	params.PullbackATR = 2.0

	snap := Snapshot{FastAvg: 95, SlowAvg: 100, ATR: 2, VolumeAvg: 10, LastClose: 96, LastVolume: 12}
	trades := d.evaluateSnapshot(context.Background(), Input{Symbol: "SOLUSDT", Params: params, Now: testNow}, snap)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.Short, trades[0].Direction)
	assert.Equal(t, 99.0, trades[0].StopLoss)
	assert.Equal(t, 92.0, trades[0].TakeProfit)
}
