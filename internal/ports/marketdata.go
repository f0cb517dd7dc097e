package ports

import (
	"context"

	"cryptoSignalAgent/internal/domain"
)

// MarketDataProvider defines read-only access to market data.
// This abstraction decouples the signal engine from a specific exchange or data vendor.
type MarketDataProvider interface {
	// GetBars retrieves the most recent bars for a symbol, oldest first.
	GetBars(ctx context.Context, symbol, interval string, limit int) ([]domain.Bar, error)

	// GetTickerPrice retrieves the last traded price for a symbol.
	GetTickerPrice(ctx context.Context, symbol string) (float64, error)

	// Get24hTicker retrieves the rolling 24h statistics for a symbol.
	Get24hTicker(ctx context.Context, symbol string) (*domain.Ticker24h, error)

	// Ping checks the connectivity to the data source.
	Ping(ctx context.Context) error
}

// SentimentProvider reports a market-wide sentiment index.
type SentimentProvider interface {
	GetSentiment(ctx context.Context) (*domain.Sentiment, error)
}

// HeadlineProvider returns recent news headlines, newest first.
type HeadlineProvider interface {
	Headlines(ctx context.Context, limit int) ([]string, error)
}
