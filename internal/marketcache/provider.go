package marketcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cryptoSignalAgent/internal/domain"
	"cryptoSignalAgent/internal/ports"
)

// DefaultMaxAge is how long fetched bars and tickers are served without refetching.
const DefaultMaxAge = 5 * time.Minute

// CachedProvider serves bars and 24h tickers from the cache while fresh and
// falls back to the last known payload when a live fetch fails or comes back
// empty. Live prices always go to the underlying provider.
type CachedProvider struct {
	next   ports.MarketDataProvider
	cache  *Cache
	maxAge time.Duration
	logger ports.Logger
}

var _ ports.MarketDataProvider = (*CachedProvider)(nil)

// NewCachedProvider wraps next with cache.
func NewCachedProvider(next ports.MarketDataProvider, cache *Cache, maxAge time.Duration, logger ports.Logger) (*CachedProvider, error) {
	if next == nil || cache == nil || logger == nil {
		return nil, fmt.Errorf("cached provider requires a provider, a cache and a logger")
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &CachedProvider{next: next, cache: cache, maxAge: maxAge, logger: logger}, nil
}

// BarsKey is the cache key of a bar series request.
func BarsKey(symbol, interval string, limit int) string {
	return fmt.Sprintf("bars:%s:%s:%d", symbol, interval, limit)
}

// TickerKey is the cache key of a 24h ticker.
func TickerKey(symbol string) string {
	return "ticker24h:" + symbol
}

// GetBars implements ports.MarketDataProvider.
func (p *CachedProvider) GetBars(ctx context.Context, symbol, interval string, limit int) ([]domain.Bar, error) {
	key := BarsKey(symbol, interval, limit)
	if raw, ok := p.cache.Get(key, p.maxAge); ok {
		var bars []domain.Bar
		if err := json.Unmarshal(raw, &bars); err == nil && len(bars) > 0 {
			return bars, nil
		}
	}

	bars, err := p.next.GetBars(ctx, symbol, interval, limit)
	if err == nil && len(bars) == 0 {
		err = fmt.Errorf("no bars returned for %s: %w", symbol, ports.ErrInsufficientData)
	}
	if err == nil {
		if perr := p.cache.Put(ctx, key, bars); perr != nil {
			p.logger.Warn(ctx, "Failed to cache bars", map[string]interface{}{"key": key, "error": perr.Error()})
		}
		return bars, nil
	}

	var stale []domain.Bar
	if storedAt, ok := p.stale(key, &stale); ok && len(stale) > 0 {
		p.logger.Warn(ctx, "Bar fetch failed, using stale cache", map[string]interface{}{
			"symbol": symbol, "storedAt": storedAt, "error": err.Error(),
		})
		return stale, nil
	}
	return nil, err
}

// Get24hTicker implements ports.MarketDataProvider.
func (p *CachedProvider) Get24hTicker(ctx context.Context, symbol string) (*domain.Ticker24h, error) {
	key := TickerKey(symbol)
	if raw, ok := p.cache.Get(key, p.maxAge); ok {
		var t domain.Ticker24h
		if err := json.Unmarshal(raw, &t); err == nil {
			return &t, nil
		}
	}

	t, err := p.next.Get24hTicker(ctx, symbol)
	if err == nil && t == nil {
		err = fmt.Errorf("empty 24h ticker for %s: %w", symbol, ports.ErrNotFound)
	}
	if err == nil {
		if perr := p.cache.Put(ctx, key, t); perr != nil {
			p.logger.Warn(ctx, "Failed to cache ticker", map[string]interface{}{"key": key, "error": perr.Error()})
		}
		return t, nil
	}

	var stale domain.Ticker24h
	if storedAt, ok := p.stale(key, &stale); ok {
		p.logger.Warn(ctx, "Ticker fetch failed, using stale cache", map[string]interface{}{
			"symbol": symbol, "storedAt": storedAt, "error": err.Error(),
		})
		return &stale, nil
	}
	return nil, err
}

// GetTickerPrice implements ports.MarketDataProvider. Live prices are never cached.
func (p *CachedProvider) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	price, err := p.next.GetTickerPrice(ctx, symbol)
	if err != nil {
		if errors.Is(err, ports.ErrPriceUnavailable) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %w", ports.ErrPriceUnavailable, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("non-positive price %f for %s: %w", price, symbol, ports.ErrPriceUnavailable)
	}
	return price, nil
}

// Ping implements ports.MarketDataProvider.
func (p *CachedProvider) Ping(ctx context.Context) error {
	return p.next.Ping(ctx)
}

func (p *CachedProvider) stale(key string, out interface{}) (time.Time, bool) {
	raw, storedAt, ok := p.cache.GetStale(key)
	if !ok {
		return time.Time{}, false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return time.Time{}, false
	}
	return storedAt, true
}
