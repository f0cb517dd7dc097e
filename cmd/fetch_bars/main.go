package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"cryptoSignalAgent/config"
	"cryptoSignalAgent/internal/adapters/binanceclient"
	"cryptoSignalAgent/internal/adapters/logger"
	"cryptoSignalAgent/internal/strategy"
	"cryptoSignalAgent/internal/utils"
)

var (
	symbol   string
	interval string
	days     int
	outPath  string
)

var rootCmd = &cobra.Command{
	Use:   "fetch_bars",
	Short: "Export historical bars to CSV and print the current indicator snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func main() {
	rootCmd.Flags().StringVar(&symbol, "symbol", "BTCUSDT", "exchange symbol")
	rootCmd.Flags().StringVar(&interval, "interval", "1h", "bar interval")
	rootCmd.Flags().IntVar(&days, "days", 30, "how many days of history to fetch")
	rootCmd.Flags().StringVar(&outPath, "out", "", "output file (default data/<symbol>_<interval>_<from>_to_<to>.csv)")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if days <= 0 {
		return fmt.Errorf("--days must be positive")
	}

	// 2. Initialize Logger
	appLogger, err := logger.New(cfg.LogFormat, cfg.LogLevel, logger.FileConfig{})
	if err != nil {
		return err
	}

	// 3. Initialize Market Data Client (Binance Adapter)
	client, err := binanceclient.New(binanceclient.Config{
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

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)
	appLogger.Info(ctx, "Fetching bars", map[string]interface{}{
		"symbol": symbol, "interval": interval, "from": start, "to": end,
	})
	bars, err := client.GetBarsRange(ctx, symbol, interval, start, end)
	if err != nil {
		return fmt.Errorf("error fetching bars: %w", err)
	}
	appLogger.Info(ctx, "Fetched bars", map[string]interface{}{"count": len(bars)})

	filename := outPath
	if filename == "" {
		filename = fmt.Sprintf("data/%s_%s_%s_to_%s.csv", symbol, interval, start.Format("20060102"), end.Format("20060102"))
	}
	if err := utils.WriteBarsToCSV(filename, symbol, interval, bars); err != nil {
		return fmt.Errorf("error writing CSV: %w", err)
	}
	appLogger.Info(ctx, "Saved to", map[string]interface{}{"filename": filename})

	snap, err := strategy.ComputeSnapshot(ctx, bars, cfg.Strategy)
	if err != nil {
		appLogger.Warn(ctx, "Not enough bars for an indicator snapshot", map[string]interface{}{"error": err.Error()})
		return nil
	}
	fmt.Printf("%s %s close=%.6f fast=%.6f slow=%.6f atr=%.6f volume=%.4f/%.4f\n",
		symbol, interval, snap.LastClose, snap.FastAvg, snap.SlowAvg, snap.ATR, snap.LastVolume, snap.VolumeAvg)
	return nil
}
