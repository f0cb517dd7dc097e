package analytics

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"cryptoSignalAgent/internal/domain"
)

// PerformanceMetrics summarises a window of closed trades
type PerformanceMetrics struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64

	// Return of each trade relative to its entry, signed by direction, in percent.
	AverageReturnPct float64
	AverageWinPct    float64
	AverageLossPct   float64

	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	BySymbol             map[string]SymbolStats
}

// SymbolStats holds per-symbol win/loss counts
type SymbolStats struct {
	Wins   int
	Losses int
}

// TradeReturnPct returns the percentage move from entry to close in the trade's favour.
func TradeReturnPct(rec *domain.ClosedTradeRecord) float64 {
	if rec.EntryPrice == 0 {
		return 0
	}
	move := (rec.ClosePrice - rec.EntryPrice) / rec.EntryPrice * 100
	if rec.Direction == domain.Short {
		return -move
	}
	return move
}

// AnalyzePerformance calculates performance metrics from closed-trade records.
// The input slice is not modified.
func AnalyzePerformance(records []*domain.ClosedTradeRecord) *PerformanceMetrics {
	metrics := &PerformanceMetrics{BySymbol: make(map[string]SymbolStats)}
	if len(records) == 0 {
		return metrics
	}

	sorted := append([]*domain.ClosedTradeRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var consecutiveWins, consecutiveLosses int
	var totalReturn, totalWin, totalLoss float64

	for _, rec := range sorted {
		metrics.TotalTrades++
		ret := TradeReturnPct(rec)
		totalReturn += ret

		stats := metrics.BySymbol[rec.Symbol]
		if rec.IsWin() {
			metrics.WinningTrades++
			stats.Wins++
			totalWin += ret
			consecutiveWins++
			consecutiveLosses = 0
		} else {
			metrics.LosingTrades++
			stats.Losses++
			totalLoss += ret
			consecutiveLosses++
			consecutiveWins = 0
		}
		metrics.BySymbol[rec.Symbol] = stats

		if consecutiveWins > metrics.MaxConsecutiveWins {
			metrics.MaxConsecutiveWins = consecutiveWins
		}
		if consecutiveLosses > metrics.MaxConsecutiveLosses {
			metrics.MaxConsecutiveLosses = consecutiveLosses
		}
	}

	metrics.WinRate = float64(metrics.WinningTrades) / float64(metrics.TotalTrades)
	metrics.AverageReturnPct = totalReturn / float64(metrics.TotalTrades)
	if metrics.WinningTrades > 0 {
		metrics.AverageWinPct = totalWin / float64(metrics.WinningTrades)
	}
	if metrics.LosingTrades > 0 {
		metrics.AverageLossPct = totalLoss / float64(metrics.LosingTrades)
	}
	return metrics
}

// RecentWinRate returns the win rate over the most recent window records.
// ok is false when fewer than window records exist.
func RecentWinRate(records []*domain.ClosedTradeRecord, window int) (rate float64, ok bool) {
	if window <= 0 || len(records) < window {
		return 0, false
	}
	wins := 0
	for _, rec := range records[len(records)-window:] {
		if rec.IsWin() {
			wins++
		}
	}
	return float64(wins) / float64(window), true
}

// WriteSummary prints the metrics as an aligned table followed by a per-symbol breakdown.
func WriteSummary(w io.Writer, m *PerformanceMetrics) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Trades\tWins\tLosses\tWinRate\tAvgReturn\tAvgWin\tAvgLoss\tMaxWinStreak\tMaxLossStreak")
	fmt.Fprintf(tw, "%d\t%d\t%d\t%.2f%%\t%.2f%%\t%.2f%%\t%.2f%%\t%d\t%d\n",
		m.TotalTrades, m.WinningTrades, m.LosingTrades, m.WinRate*100,
		m.AverageReturnPct, m.AverageWinPct, m.AverageLossPct,
		m.MaxConsecutiveWins, m.MaxConsecutiveLosses)
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(m.BySymbol) == 0 {
		return nil
	}

	symbols := make([]string, 0, len(m.BySymbol))
	for s := range m.BySymbol {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Symbol\tWins\tLosses\tWinRate")
	for _, s := range symbols {
		st := m.BySymbol[s]
		rate := 0.0
		if n := st.Wins + st.Losses; n > 0 {
			rate = float64(st.Wins) / float64(n) * 100
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f%%\n", s, st.Wins, st.Losses, rate)
	}
	return tw.Flush()
}
