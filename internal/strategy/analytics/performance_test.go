package analytics

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"cryptoSignalAgent/internal/domain"
)

func record(symbol string, dir domain.Direction, result domain.CloseResult, entry, closePrice float64, at time.Time) *domain.ClosedTradeRecord {
	return &domain.ClosedTradeRecord{
		Symbol:     symbol,
		Direction:  dir,
		Result:     result,
		EntryPrice: entry,
		ClosePrice: closePrice,
		Timestamp:  at,
	}
}

func TestAnalyzePerformance(t *testing.T) {
	now := time.Now()
	records := []*domain.ClosedTradeRecord{
		record("BTCUSDT", domain.Long, domain.ResultTakeProfit, 100, 104, now.Add(-4*time.Hour)),
		record("BTCUSDT", domain.Long, domain.ResultStopLoss, 100, 97, now.Add(-3*time.Hour)),
		record("ETHUSDT", domain.Short, domain.ResultTakeProfit, 100, 96, now.Add(-2*time.Hour)),
		record("ETHUSDT", domain.Short, domain.ResultTakeProfit, 100, 96, now.Add(-1*time.Hour)),
	}

	metrics := AnalyzePerformance(records)

	if metrics.TotalTrades != 4 {
		t.Errorf("Expected 4 total trades, got %d", metrics.TotalTrades)
	}
	if metrics.WinningTrades != 3 {
		t.Errorf("Expected 3 winning trades, got %d", metrics.WinningTrades)
	}
	if metrics.LosingTrades != 1 {
		t.Errorf("Expected 1 losing trade, got %d", metrics.LosingTrades)
	}
	if metrics.WinRate != 0.75 {
		t.Errorf("Expected 0.75 win rate, got %f", metrics.WinRate)
	}
	if math.Abs(metrics.AverageReturnPct-2.25) > 1e-9 {
		t.Errorf("Expected average return 2.25%%, got %f", metrics.AverageReturnPct)
	}
	if math.Abs(metrics.AverageWinPct-4) > 1e-9 {
		t.Errorf("Expected average win 4%%, got %f", metrics.AverageWinPct)
	}
	if math.Abs(metrics.AverageLossPct+3) > 1e-9 {
		t.Errorf("Expected average loss -3%%, got %f", metrics.AverageLossPct)
	}
	if metrics.MaxConsecutiveWins != 2 {
		t.Errorf("Expected 2 max consecutive wins, got %d", metrics.MaxConsecutiveWins)
	}
	if metrics.MaxConsecutiveLosses != 1 {
		t.Errorf("Expected 1 max consecutive loss, got %d", metrics.MaxConsecutiveLosses)
	}
	if got := metrics.BySymbol["ETHUSDT"]; got.Wins != 2 || got.Losses != 0 {
		t.Errorf("Unexpected ETHUSDT stats: %+v", got)
	}
}

func TestAnalyzePerformance_NoTrades(t *testing.T) {
	metrics := AnalyzePerformance(nil)
	if metrics.TotalTrades != 0 || metrics.WinRate != 0 {
		t.Errorf("Expected empty metrics, got %+v", metrics)
	}
}

func TestAnalyzePerformance_DoesNotReorderInput(t *testing.T) {
	now := time.Now()
	records := []*domain.ClosedTradeRecord{
		record("BTCUSDT", domain.Long, domain.ResultTakeProfit, 100, 104, now),
		record("BTCUSDT", domain.Long, domain.ResultStopLoss, 100, 97, now.Add(-time.Hour)),
	}
	AnalyzePerformance(records)
	if records[0].Result != domain.ResultTakeProfit {
		t.Error("Expected input order to be preserved")
	}
}

func TestRecentWinRate(t *testing.T) {
	build := func(wins, losses int) []*domain.ClosedTradeRecord {
		var out []*domain.ClosedTradeRecord
		for i := 0; i < losses; i++ {
			out = append(out, &domain.ClosedTradeRecord{Result: domain.ResultStopLoss})
		}
		for i := 0; i < wins; i++ {
			out = append(out, &domain.ClosedTradeRecord{Result: domain.ResultTakeProfit})
		}
		return out
	}

	tests := []struct {
		name     string
		records  []*domain.ClosedTradeRecord
		window   int
		wantRate float64
		wantOK   bool
	}{
		{name: "not enough records", records: build(10, 19), window: 30, wantOK: false},
		{name: "12 wins of 30", records: build(12, 18), window: 30, wantRate: 0.4, wantOK: true},
		{name: "only the last window counts", records: build(30, 10), window: 30, wantRate: 1.0, wantOK: true},
		{name: "zero window", records: build(1, 1), window: 0, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, ok := RecentWinRate(tt.records, tt.window)
			if ok != tt.wantOK {
				t.Fatalf("Expected ok=%v, got %v", tt.wantOK, ok)
			}
			if ok && math.Abs(rate-tt.wantRate) > 1e-9 {
				t.Errorf("Expected rate %f, got %f", tt.wantRate, rate)
			}
		})
	}
}

func TestWriteSummary(t *testing.T) {
	now := time.Now()
	metrics := AnalyzePerformance([]*domain.ClosedTradeRecord{
		record("BTCUSDT", domain.Long, domain.ResultTakeProfit, 100, 104, now.Add(-4*time.Hour)),
		record("BTCUSDT", domain.Long, domain.ResultStopLoss, 100, 97, now.Add(-3*time.Hour)),
		record("ETHUSDT", domain.Short, domain.ResultTakeProfit, 100, 96, now.Add(-2*time.Hour)),
		record("ETHUSDT", domain.Short, domain.ResultTakeProfit, 100, 96, now.Add(-1*time.Hour)),
	})

	var buf bytes.Buffer
	if err := WriteSummary(&buf, metrics); err != nil {
		t.Fatalf("WriteSummary failed: %v", err)
	}

	rows := make(map[string][]string)
	for _, line := range strings.Split(buf.String(), "\n") {
		if f := strings.Fields(line); len(f) > 0 {
			rows[f[0]] = f
		}
	}
	if got := rows["4"]; len(got) < 4 || got[3] != "75.00%" {
		t.Errorf("unexpected totals row %v", got)
	}
	if got := strings.Join(rows["BTCUSDT"], " "); got != "BTCUSDT 1 1 50.00%" {
		t.Errorf("unexpected BTCUSDT row %q", got)
	}
	if got := strings.Join(rows["ETHUSDT"], " "); got != "ETHUSDT 2 0 100.00%" {
		t.Errorf("unexpected ETHUSDT row %q", got)
	}
}

func TestWriteSummary_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSummary(&buf, AnalyzePerformance(nil)); err != nil {
		t.Fatalf("WriteSummary failed: %v", err)
	}
	if strings.Contains(buf.String(), "Symbol") {
		t.Errorf("expected no per-symbol table, got %q", buf.String())
	}
}
