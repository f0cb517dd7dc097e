package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cryptoSignalAgent/config"
	"cryptoSignalAgent/internal/adapters/logger"
	"cryptoSignalAgent/internal/adapters/sqlite"
	"cryptoSignalAgent/internal/strategy/analytics"
)

var (
	dbPath string
	limit  int
	symbol string
)

var rootCmd = &cobra.Command{
	Use:   "analyze_history",
	Short: "Summarise the closed-trade history stored by the signal agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func main() {
	rootCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database (default DB_PATH from configuration)")
	rootCmd.Flags().IntVar(&limit, "limit", 0, "only the most recent N closed trades (0 = all)")
	rootCmd.Flags().StringVar(&symbol, "symbol", "", "restrict to one symbol")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if dbPath == "" {
		dbPath = cfg.DBPath
	}
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("database %s: %w", dbPath, err)
	}

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: dbPath, Logger: logger.NewStdLogger(logger.LevelWarn)})
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}
	defer repo.Close()

	records, err := repo.LoadClosedTrades(ctx, limit)
	if err != nil {
		return fmt.Errorf("load closed trades: %w", err)
	}
	if symbol != "" {
		filtered := records[:0]
		for _, rec := range records {
			if rec.Symbol == symbol {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}
	if len(records) == 0 {
		fmt.Println("No closed trades recorded yet.")
		return nil
	}

	fmt.Printf("## Closed trades (%d)\n\n", len(records))
	if err := analytics.WriteSummary(os.Stdout, analytics.AnalyzePerformance(records)); err != nil {
		return err
	}

	if rate, ok := analytics.RecentWinRate(records, cfg.TunerWindow); ok {
		fmt.Printf("\nWin rate over the last %d trades: %.2f%% (tuner band %.0f%%–%.0f%%)\n",
			cfg.TunerWindow, rate*100, cfg.TunerLowWinRate*100, cfg.TunerHighWinRate*100)
	}
	return nil
}
