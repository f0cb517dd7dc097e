package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cryptoSignalAgent/internal/domain"
	"cryptoSignalAgent/internal/ports"
	"cryptoSignalAgent/internal/risk"
)

// DefaultRetention is the number of closed-trade records kept in the rolling history.
const DefaultRetention = 500

// book is the open-trade set of one symbol.
type book struct {
	mu     sync.Mutex
	trades []*domain.Trade
}

// Ledger tracks open trades per symbol and the rolling closed-trade history.
// Each symbol has its own lock; the history has a separate one.
type Ledger struct {
	repo      ports.TradeRepository // optional
	logger    ports.Logger
	retention int

	booksMu sync.Mutex
	books   map[string]*book

	historyMu sync.RWMutex
	history   []*domain.ClosedTradeRecord // oldest first
}

// New creates an empty ledger. A retention of zero or less uses DefaultRetention.
func New(repo ports.TradeRepository, logger ports.Logger, retention int) (*Ledger, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for ledger")
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Ledger{
		repo:      repo,
		logger:    logger,
		retention: retention,
		books:     make(map[string]*book),
	}, nil
}

func (l *Ledger) bookFor(symbol string) *book {
	l.booksMu.Lock()
	defer l.booksMu.Unlock()
	b, ok := l.books[symbol]
	if !ok {
		b = &book{}
		l.books[symbol] = b
	}
	return b
}

// Load restores open trades and history from the repository, replacing the
// in-memory state. On error the ledger is left unchanged.
func (l *Ledger) Load(ctx context.Context) error {
	if l.repo == nil {
		return nil
	}
	open, err := l.repo.LoadOpenTrades(ctx)
	if err != nil {
		return fmt.Errorf("loading open trades: %w", err)
	}
	history, err := l.repo.LoadClosedTrades(ctx, l.retention)
	if err != nil {
		return fmt.Errorf("loading trade history: %w", err)
	}

	grouped := make(map[string][]*domain.Trade)
	for _, t := range open {
		if !t.IsOpen() || !t.BracketValid() {
			l.logger.Warn(ctx, "Skipping persisted trade with invalid state", map[string]interface{}{
				"tradeID": t.ID, "symbol": t.Symbol, "state": t.State,
			})
			continue
		}
		grouped[t.Symbol] = append(grouped[t.Symbol], t)
	}

	l.booksMu.Lock()
	l.books = make(map[string]*book, len(grouped))
	for symbol, trades := range grouped {
		l.books[symbol] = &book{trades: trades}
	}
	l.booksMu.Unlock()

	l.historyMu.Lock()
	l.history = history
	l.historyMu.Unlock()

	l.logger.Info(ctx, "Ledger state loaded", map[string]interface{}{
		"openTrades": len(open),
		"history":    len(history),
	})
	return nil
}

// Open records a new trade. The near-duplicate and bracket invariants are
// re-checked under the symbol lock.
func (l *Ledger) Open(ctx context.Context, trade *domain.Trade) error {
	if trade == nil || trade.Symbol == "" || !trade.IsOpen() {
		return fmt.Errorf("cannot open trade %+v: %w", trade, ports.ErrInvalidTrade)
	}
	if !trade.BracketValid() {
		return fmt.Errorf("%s %s entry %f stop %f target %f: %w",
			trade.Symbol, trade.Direction, trade.EntryPrice, trade.StopLoss, trade.TakeProfit, ports.ErrInvalidTrade)
	}

	b := l.bookFor(trade.Symbol)
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.trades {
		if existing.Direction == trade.Direction && risk.IsNearDuplicate(existing.EntryPrice, trade.EntryPrice) {
			return fmt.Errorf("%s %s at %f near open trade %s at %f: %w",
				trade.Symbol, trade.Direction, trade.EntryPrice, existing.ID, existing.EntryPrice, ports.ErrDuplicateSignal)
		}
	}

	b.trades = append(b.trades, trade.Clone())
	l.persistOpen(ctx, trade.Symbol, b.trades)
	return nil
}

// Evaluate checks every open trade of the symbol against a live price and
// closes those whose stop or target was crossed. It returns one close event
// per closed trade.
func (l *Ledger) Evaluate(ctx context.Context, symbol string, price float64, at time.Time) []*domain.CloseEvent {
	if price <= 0 {
		return nil
	}
	b := l.bookFor(symbol)
	b.mu.Lock()
	defer b.mu.Unlock()

	var (
		events []*domain.CloseEvent
		closed []*domain.Trade
		kept   = b.trades[:0:0]
	)
	for _, t := range b.trades {
		result, hit := t.CheckExit(price)
		if !hit {
			kept = append(kept, t)
			continue
		}
		t.Close(result, price, at)
		closed = append(closed, t)
		events = append(events, domain.NewCloseEvent(t))
		l.logger.Info(ctx, "Trade closed", map[string]interface{}{
			"tradeID":    t.ID,
			"symbol":     t.Symbol,
			"direction":  t.Direction,
			"result":     result,
			"entry":      t.EntryPrice,
			"closePrice": price,
		})
	}
	if len(closed) == 0 {
		return nil
	}

	b.trades = kept
	l.persistOpen(ctx, symbol, b.trades)
	for _, t := range closed {
		l.appendHistory(ctx, domain.RecordFor(t))
	}
	return events
}

func (l *Ledger) appendHistory(ctx context.Context, rec *domain.ClosedTradeRecord) {
	l.historyMu.Lock()
	l.history = append(l.history, rec)
	if over := len(l.history) - l.retention; over > 0 {
		l.history = append([]*domain.ClosedTradeRecord(nil), l.history[over:]...)
	}
	l.historyMu.Unlock()

	if l.repo == nil {
		return
	}
	if err := l.repo.AppendClosedTrade(ctx, rec, l.retention); err != nil {
		l.logger.Error(ctx, err, "Failed to persist closed trade", map[string]interface{}{
			"tradeID": rec.TradeID, "symbol": rec.Symbol,
		})
	}
}

func (l *Ledger) persistOpen(ctx context.Context, symbol string, trades []*domain.Trade) {
	if l.repo == nil {
		return
	}
	if err := l.repo.ReplaceOpenTrades(ctx, symbol, trades); err != nil {
		l.logger.Error(ctx, err, "Failed to persist open trades", map[string]interface{}{
			"symbol": symbol, "count": len(trades),
		})
	}
}

// OpenTrades returns copies of the open trades of a symbol.
func (l *Ledger) OpenTrades(symbol string) []*domain.Trade {
	b := l.bookFor(symbol)
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*domain.Trade, 0, len(b.trades))
	for _, t := range b.trades {
		out = append(out, t.Clone())
	}
	return out
}

// AllOpenTrades returns copies of every open trade ordered by open time.
func (l *Ledger) AllOpenTrades() []*domain.Trade {
	l.booksMu.Lock()
	symbols := make([]string, 0, len(l.books))
	for s := range l.books {
		symbols = append(symbols, s)
	}
	l.booksMu.Unlock()

	var out []*domain.Trade
	for _, s := range symbols {
		out = append(out, l.OpenTrades(s)...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out
}

// OpenCount returns the number of open trades across all symbols.
func (l *Ledger) OpenCount() int {
	return len(l.AllOpenTrades())
}

// History returns up to limit of the most recent closed-trade records, oldest
// first. A limit of zero or less returns the whole history.
func (l *Ledger) History(limit int) []*domain.ClosedTradeRecord {
	l.historyMu.RLock()
	defer l.historyMu.RUnlock()
	start := 0
	if limit > 0 && len(l.history) > limit {
		start = len(l.history) - limit
	}
	out := make([]*domain.ClosedTradeRecord, 0, len(l.history)-start)
	for _, rec := range l.history[start:] {
		c := *rec
		out = append(out, &c)
	}
	return out
}

// HistorySince returns the records of a symbol closed after since.
func (l *Ledger) HistorySince(symbol string, since time.Time) []*domain.ClosedTradeRecord {
	l.historyMu.RLock()
	defer l.historyMu.RUnlock()
	var out []*domain.ClosedTradeRecord
	for _, rec := range l.history {
		if rec.Symbol == symbol && rec.Timestamp.After(since) {
			c := *rec
			out = append(out, &c)
		}
	}
	return out
}
