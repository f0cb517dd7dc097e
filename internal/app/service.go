package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cryptoSignalAgent/internal/adapters/httpserver"
	"cryptoSignalAgent/internal/domain"
	"cryptoSignalAgent/internal/ledger"
	"cryptoSignalAgent/internal/ports"
	"cryptoSignalAgent/internal/scheduler"
	"cryptoSignalAgent/internal/strategy"
	"cryptoSignalAgent/internal/strategy/analytics"
	"cryptoSignalAgent/internal/strategy/optimization"
)

const (
	unavailable   = "s/d"
	reportKind    = "summary"
	jitterMin     = 500 * time.Millisecond
	jitterSpread  = time.Second
	defaultWindow = 30
)

// Config holds the settings the service needs at runtime.
type Config struct {
	Symbols          []string
	Interval         string // bar interval requested from the market data source
	Timeframe        string // label carried by entry events
	BarLimit         int
	ScanInterval     time.Duration
	ReportCron       string
	ReportPoll       time.Duration
	HeadlineLimit    int
	WinRateWindow    int
	HealthAddr       string // empty disables the health endpoint
	SendTestOnDeploy bool
}

// Dependencies are the collaborators wired by main. Sentiment, Headlines,
// Tuner and Cache are optional.
type Dependencies struct {
	Logger    ports.Logger
	Market    ports.MarketDataProvider
	Publisher ports.EventPublisher
	Sentiment ports.SentimentProvider
	Headlines ports.HeadlineProvider
	Params    *strategy.ParameterStore
	Detector  *strategy.Detector
	Ledger    *ledger.Ledger
	Tuner     *optimization.Tuner
	Cache     CacheState
}

// CacheState is the part of the market data cache the service touches.
type CacheState interface {
	Load(ctx context.Context) error
	Keys() []string
}

// SignalService owns the process-wide state and runs the scan and report tasks.
type SignalService struct {
	cfg       Config
	logger    ports.Logger
	market    ports.MarketDataProvider
	publisher ports.EventPublisher
	sentiment ports.SentimentProvider
	headlines ports.HeadlineProvider
	params    *strategy.ParameterStore
	detector  *strategy.Detector
	ledger    *ledger.Ledger
	tuner     *optimization.Tuner
	cache     CacheState
	reports   *scheduler.Scheduler
	health    *httpserver.Server

	now    func() time.Time
	jitter func() time.Duration

	// scanMu guards the round-robin position.
	scanMu    sync.Mutex
	scanIndex int
}

// NewSignalService creates a new application service instance.
func NewSignalService(cfg Config, deps Dependencies) (*SignalService, error) {
	// Validate dependencies
	if deps.Logger == nil || deps.Market == nil || deps.Publisher == nil ||
		deps.Params == nil || deps.Detector == nil || deps.Ledger == nil {
		return nil, fmt.Errorf("missing required dependencies for SignalService")
	}
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("at least one symbol is required")
	}
	if cfg.ScanInterval <= 0 {
		return nil, fmt.Errorf("scan interval must be positive")
	}
	if cfg.Interval == "" {
		cfg.Interval = "1h"
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = "H1"
	}
	if cfg.WinRateWindow <= 0 {
		cfg.WinRateWindow = defaultWindow
	}

	s := &SignalService{
		cfg:       cfg,
		logger:    deps.Logger,
		market:    deps.Market,
		publisher: deps.Publisher,
		sentiment: deps.Sentiment,
		headlines: deps.Headlines,
		params:    deps.Params,
		detector:  deps.Detector,
		ledger:    deps.Ledger,
		tuner:     deps.Tuner,
		cache:     deps.Cache,
		now:       func() time.Time { return time.Now().UTC() },
		jitter: func() time.Duration {
			return jitterMin + time.Duration(rand.Int63n(int64(jitterSpread)))
		},
	}

	reports, err := scheduler.New(cfg.ReportCron, cfg.ReportPoll, s.Report, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("report schedule: %w", err)
	}
	s.reports = reports
	if cfg.HealthAddr != "" {
		s.health = httpserver.New(cfg.HealthAddr, s, deps.Logger)
	}
	return s, nil
}

// Start loads persisted state and runs the tasks until ctx is canceled or a
// shutdown signal arrives.
func (s *SignalService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Signal Service...", map[string]interface{}{
		"symbols":      s.cfg.Symbols,
		"scanInterval": s.cfg.ScanInterval.String(),
		"reportCron":   s.cfg.ReportCron,
	})

	// Create a context that can be canceled by signals
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	s.LoadState(ctx)

	if s.cfg.SendTestOnDeploy {
		s.publish(ctx, deployTestEvent(s.now()))
	}

	var wg sync.WaitGroup
	if s.health != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.health.Run(ctx); err != nil {
				s.logger.Error(ctx, err, "Health endpoint stopped")
			}
		}()
	}
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.runScanLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.reports.Run(ctx)
	}()

	<-ctx.Done()
	s.logger.Info(ctx, "Main context cancelled, waiting for tasks to finish...")
	wg.Wait()
	s.logger.Info(ctx, "Signal Service stopped.")
	return nil
}

// LoadState restores parameters, open trades, history and cached market data.
// Failures are logged and the affected component keeps its current state.
func (s *SignalService) LoadState(ctx context.Context) {
	if err := s.params.Load(ctx); err != nil {
		s.logger.Warn(ctx, "Could not load persisted strategy parameters, using current values", map[string]interface{}{"error": err.Error()})
	}
	if err := s.ledger.Load(ctx); err != nil {
		s.logger.Error(ctx, err, "Failed to load trade ledger, starting empty")
	}
	if s.cache != nil {
		if err := s.cache.Load(ctx); err != nil {
			s.logger.Warn(ctx, "Could not load market data cache", map[string]interface{}{"error": err.Error()})
		}
	}
	s.logger.Info(ctx, "State loaded", map[string]interface{}{
		"openTrades": s.ledger.OpenCount(),
		"history":    len(s.ledger.History(0)),
	})
}

func (s *SignalService) runScanLoop(ctx context.Context) {
	s.logger.Info(ctx, "Scan loop started", map[string]interface{}{"interval": s.cfg.ScanInterval.String()})
	for {
		if err := s.ScanOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error(ctx, err, "Scan failed")
		}
		wait := s.cfg.ScanInterval + s.jitter()
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// ScanOnce scans the next symbol in round-robin order.
func (s *SignalService) ScanOnce(ctx context.Context) error {
	s.scanMu.Lock()
	symbol := s.cfg.Symbols[s.scanIndex%len(s.cfg.Symbols)]
	s.scanIndex++
	s.scanMu.Unlock()
	return s.ScanSymbol(ctx, symbol)
}

// ScanSymbol checks open trades of symbol against the live price, then
// evaluates the latest bars for new entries. Exits always run before entries.
func (s *SignalService) ScanSymbol(ctx context.Context, symbol string) error {
	now := s.now()
	s.logger.Debug(ctx, "Scanning symbol", map[string]interface{}{"symbol": symbol})

	price, err := s.market.GetTickerPrice(ctx, symbol)
	if err != nil {
		s.logger.Warn(ctx, "Live price unavailable, skipping exit check", map[string]interface{}{
			"symbol": symbol, "error": err.Error(),
		})
	} else {
		for _, ev := range s.ledger.Evaluate(ctx, symbol, price, now) {
			s.publish(ctx, ev)
		}
	}

	params := s.params.Get()
	limit := s.cfg.BarLimit
	if required := strategy.RequiredBars(params); limit < required {
		limit = required
	}
	bars, err := s.market.GetBars(ctx, symbol, s.cfg.Interval, limit)
	if err != nil {
		return fmt.Errorf("fetching bars for %s: %w", symbol, err)
	}

	trades, err := s.detector.Evaluate(ctx, strategy.Input{
		Symbol:     symbol,
		Bars:       bars,
		OpenTrades: s.ledger.OpenTrades(symbol),
		History:    s.ledger.HistorySince(symbol, now.Add(-strategy.DefaultLookback)),
		Params:     params,
		Now:        now,
	})
	if err != nil {
		if errors.Is(err, ports.ErrInsufficientData) {
			s.logger.Debug(ctx, "Not enough data to evaluate symbol", map[string]interface{}{
				"symbol": symbol, "bars": len(bars),
			})
			return nil
		}
		return fmt.Errorf("evaluating %s: %w", symbol, err)
	}

	for _, trade := range trades {
		if err := s.ledger.Open(ctx, trade); err != nil {
			s.logger.Warn(ctx, "Signal rejected by ledger", map[string]interface{}{
				"symbol": symbol, "direction": trade.Direction, "error": err.Error(),
			})
			continue
		}
		s.publish(ctx, domain.NewEntryEvent(trade, s.cfg.Timeframe, entryNote(trade.Direction, params)))
	}
	return nil
}

// Report publishes the periodic market summary and then runs the tuner.
func (s *SignalService) Report(ctx context.Context) error {
	s.publish(ctx, s.BuildReport(ctx))
	if s.tuner == nil {
		return nil
	}
	if _, err := s.tuner.Tune(ctx, s.ledger.History(0)); err != nil {
		return fmt.Errorf("tuning strategy parameters: %w", err)
	}
	return nil
}

// BuildReport assembles the market summary. Missing sources degrade to
// placeholders instead of failing the report.
func (s *SignalService) BuildReport(ctx context.Context) *domain.ReportEvent {
	prices := make([]string, 0, len(s.cfg.Symbols))
	for _, symbol := range s.cfg.Symbols {
		prices = append(prices, s.priceLine(ctx, symbol))
	}

	report := &domain.ReportEvent{
		Event:      domain.EventReport,
		ReportKind: reportKind,
		Timestamp:  s.now(),
		Prices:     prices,
		Sentiment:  s.sentimentText(ctx),
		Headlines:  s.collectHeadlines(ctx),
		OpenTrades: s.ledger.OpenCount(),
		Note:       "Periodic market summary (Binance futures + RSS, cache 5m).",
	}
	if rate, ok := analytics.RecentWinRate(s.ledger.History(0), s.cfg.WinRateWindow); ok {
		report.WinRate = &rate
	}
	return report
}

func (s *SignalService) priceLine(ctx context.Context, symbol string) string {
	pair := domain.SymbolToPair(symbol)
	t, err := s.market.Get24hTicker(ctx, symbol)
	if err != nil {
		s.logger.Warn(ctx, "24h ticker unavailable for report", map[string]interface{}{
			"symbol": symbol, "error": err.Error(),
		})
		return fmt.Sprintf("%s %s", pair, unavailable)
	}
	return FormatPriceLine(pair, t)
}

// FormatPriceLine renders one report line, e.g.
// "BTC/USD 64000.00 (24h +1.25%) Range 62000.00–65000.00".
func FormatPriceLine(pair string, t *domain.Ticker24h) string {
	return fmt.Sprintf("%s %.2f (24h %+.2f%%) Range %.2f–%.2f", pair, t.LastPrice, t.ChangePct, t.Low, t.High)
}

func (s *SignalService) sentimentText(ctx context.Context) string {
	if s.sentiment == nil {
		return "Fear&Greed: " + unavailable
	}
	v, err := s.sentiment.GetSentiment(ctx)
	if err != nil {
		s.logger.Warn(ctx, "Sentiment index unavailable", map[string]interface{}{"error": err.Error()})
		return "Fear&Greed: " + unavailable
	}
	return fmt.Sprintf("Fear&Greed: %d (%s)", v.Value, v.Classification)
}

func (s *SignalService) collectHeadlines(ctx context.Context) []string {
	if s.headlines == nil {
		return []string{}
	}
	titles, err := s.headlines.Headlines(ctx, s.cfg.HeadlineLimit)
	if err != nil {
		s.logger.Warn(ctx, "Headlines unavailable", map[string]interface{}{"error": err.Error()})
		return []string{}
	}
	if titles == nil {
		return []string{}
	}
	return titles
}

// publish delivers an event; failures are logged and never propagate.
func (s *SignalService) publish(ctx context.Context, ev domain.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Error(ctx, err, "Failed to publish event", map[string]interface{}{"event": ev.Kind()})
		return
	}
	s.logger.Info(ctx, "Event published", map[string]interface{}{"event": ev.Kind()})
}

// CacheKeys lists the cached market data keys for the health endpoint.
func (s *SignalService) CacheKeys() []string {
	if s.cache == nil {
		return nil
	}
	return s.cache.Keys()
}

// OpenCount returns the number of open trades across all symbols.
func (s *SignalService) OpenCount() int {
	return s.ledger.OpenCount()
}

func entryNote(dir domain.Direction, p domain.StrategyParameters) string {
	op := ">"
	if dir == domain.Short {
		op = "<"
	}
	return fmt.Sprintf("SMA%d%sSMA%d trend + pullback with volume.", p.FastWindow, op, p.SlowWindow)
}

// deployTestEvent is a fixed sample signal sent once at startup so the
// downstream pipeline can be checked end to end.
func deployTestEvent(now time.Time) *domain.EntryEvent {
	return &domain.EntryEvent{
		Event:      domain.EventNewSignal,
		Direction:  domain.Long.Label(),
		Symbol:     "BTCUSDT",
		Pair:       domain.SymbolToPair("BTCUSDT"),
		EntryPrice: 123100,
		StopLoss:   119407,
		TakeProfit: 128024,
		RiskPct:    3.0,
		Timeframe:  "H1",
		Timestamp:  now,
		Note:       "Deployment test.",
	}
}
