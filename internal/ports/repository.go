package ports

import (
	"context"

	"cryptoSignalAgent/internal/domain"
)

// ParametersRepository stores the strategy parameters document.
type ParametersRepository interface {
	// LoadParameters returns the persisted parameters.
	// Returns nil, nil if nothing has been persisted yet.
	LoadParameters(ctx context.Context) (*domain.StrategyParameters, error)
	// SaveParameters replaces the persisted parameters.
	SaveParameters(ctx context.Context, params domain.StrategyParameters) error
}

// TradeRepository stores open trades and the rolling closed-trade history.
type TradeRepository interface {
	// ReplaceOpenTrades replaces the whole open-trade set of a symbol.
	ReplaceOpenTrades(ctx context.Context, symbol string, trades []*domain.Trade) error
	// LoadOpenTrades retrieves every open trade, ordered by open time.
	LoadOpenTrades(ctx context.Context) ([]*domain.Trade, error)
	// AppendClosedTrade saves a history record and evicts the oldest records beyond retention.
	AppendClosedTrade(ctx context.Context, rec *domain.ClosedTradeRecord, retention int) error
	// LoadClosedTrades retrieves the most recent records up to limit, oldest first.
	LoadClosedTrades(ctx context.Context, limit int) ([]*domain.ClosedTradeRecord, error)
}

// CacheRepository stores market data cache entries.
type CacheRepository interface {
	// SaveCacheEntry inserts or supersedes the entry with the same key.
	SaveCacheEntry(ctx context.Context, entry domain.CacheEntry) error
	// LoadCacheEntries retrieves every stored entry.
	LoadCacheEntries(ctx context.Context) ([]domain.CacheEntry, error)
}

// EventPublisher delivers outbound events to the downstream notification pipeline.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}
