package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"cryptoSignalAgent/config"
	"cryptoSignalAgent/internal/adapters/binanceclient"
	"cryptoSignalAgent/internal/adapters/feargreed"
	"cryptoSignalAgent/internal/adapters/logger"
	"cryptoSignalAgent/internal/adapters/rss"
	"cryptoSignalAgent/internal/adapters/sqlite"
	"cryptoSignalAgent/internal/adapters/webhook"
	"cryptoSignalAgent/internal/app"
	"cryptoSignalAgent/internal/ledger"
	"cryptoSignalAgent/internal/marketcache"
	"cryptoSignalAgent/internal/strategy"
	"cryptoSignalAgent/internal/strategy/optimization"
)

func main() {
	if err := run(context.Background()); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
}

// run wires the agent and blocks until ctx is done or startup fails.
func run(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Initialize Logger
	appLogger, err := logger.New(cfg.LogFormat, cfg.LogLevel, logger.FileConfig{
		Path:       cfg.LogFile,
		MaxSizeMB:  50,
		MaxBackups: 5,
		MaxAgeDays: 14,
		Compress:   true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if z, ok := appLogger.(*logger.ZapLogger); ok {
		defer func() { _ = z.Sync() }()
	}
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "format": cfg.LogFormat})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "Failed to initialize database repository")
		return fmt.Errorf("failed to initialize database repository: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()
	appLogger.Info(ctx, "Database repository initialized", map[string]interface{}{"path": cfg.DBPath})

	// 4. Initialize Market Data (Binance Adapter behind the persistent cache)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:            cfg.Binance.APIKey,
		SecretKey:         cfg.Binance.SecretKey,
		UseTestnet:        cfg.Binance.Testnet,
		BaseURL:           cfg.Binance.BaseURL,
		Logger:            appLogger,
		RequestsPerSecond: cfg.Binance.RequestsPerSecond,
		Burst:             cfg.Binance.Burst,
		Timeout:           cfg.Binance.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Binance client: %w", err)
	}
	pingCtx, cancelPing := context.WithTimeout(ctx, 10*time.Second)
	if err := binanceClient.Ping(pingCtx); err != nil {
		appLogger.Warn(ctx, "Binance is not reachable yet, continuing with cached data", map[string]interface{}{"error": err.Error()})
	}
	cancelPing()

	cache, err := marketcache.New(repo, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize market data cache: %w", err)
	}
	market, err := marketcache.NewCachedProvider(binanceClient, cache, cfg.CacheMaxAge, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize cached market data provider: %w", err)
	}

	// 5. Initialize Strategy, Ledger and Tuner
	params, err := strategy.NewParameterStore(cfg.Strategy, repo, appLogger)
	if err != nil {
		return fmt.Errorf("invalid strategy parameters: %w", err)
	}
	detector, err := strategy.NewDetector(appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize signal detector: %w", err)
	}
	tradeLedger, err := ledger.New(repo, appLogger, cfg.HistoryRetention)
	if err != nil {
		return fmt.Errorf("failed to initialize trade ledger: %w", err)
	}
	var tuner *optimization.Tuner
	if cfg.TunerEnabled {
		tunerCfg := optimization.DefaultTunerConfig()
		tunerCfg.Window = cfg.TunerWindow
		tunerCfg.LowWinRate = cfg.TunerLowWinRate
		tunerCfg.HighWinRate = cfg.TunerHighWinRate
		tuner, err = optimization.NewTuner(tunerCfg, params, appLogger)
		if err != nil {
			return fmt.Errorf("failed to initialize tuner: %w", err)
		}
	}
	appLogger.Info(ctx, "Strategy initialized", map[string]interface{}{"tuner": cfg.TunerEnabled})

	// 6. Initialize Outbound Adapters
	publisher, err := webhook.NewPublisher(webhook.Config{
		URL:        cfg.Webhook.URL,
		MaxRetries: cfg.Webhook.MaxRetries,
		Timeout:    cfg.Webhook.Timeout,
		Logger:     appLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize webhook publisher: %w", err)
	}
	sentiment, err := feargreed.NewClient(cfg.FearGreedURL, 10*time.Second, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize Fear & Greed client: %w", err)
	}
	headlines, err := rss.NewReader(cfg.Feeds, 10*time.Second, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize headline reader: %w", err)
	}

	// 7. Initialize Application Service
	service, err := app.NewSignalService(app.Config{
		Symbols:          cfg.Symbols,
		Interval:         cfg.Interval,
		Timeframe:        cfg.Timeframe,
		BarLimit:         cfg.BarLimit,
		ScanInterval:     cfg.ScanInterval,
		ReportCron:       cfg.ReportCron,
		ReportPoll:       cfg.ReportPoll,
		HeadlineLimit:    cfg.HeadlineLimit,
		WinRateWindow:    cfg.TunerWindow,
		HealthAddr:       cfg.HealthAddr,
		SendTestOnDeploy: cfg.SendTestOnDeploy,
	}, app.Dependencies{
		Logger:    appLogger,
		Market:    market,
		Publisher: publisher,
		Sentiment: sentiment,
		Headlines: headlines,
		Params:    params,
		Detector:  detector,
		Ledger:    tradeLedger,
		Tuner:     tuner,
		Cache:     cache,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize signal service: %w", err)
	}

	// 8. Start the Service
	if err := service.Start(ctx); err != nil {
		appLogger.Error(ctx, err, "Signal service exited with error")
		return fmt.Errorf("signal service exited with error: %w", err)
	}

	appLogger.Info(ctx, "Application finished gracefully.")
	return nil
}
