package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cryptoSignalAgent/internal/domain"
	"cryptoSignalAgent/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"golang.org/x/time/rate"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	// maxKlinesLimit is the largest page the klines endpoint returns.
	maxKlinesLimit = 1500
)

// Client implements ports.MarketDataProvider using the go-binance futures REST API.
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger
	limiter       *rate.Limiter
	timeout       time.Duration
}

var _ ports.MarketDataProvider = (*Client)(nil)

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey            string // optional, market data endpoints are public
	SecretKey         string
	UseTestnet        bool
	BaseURL           string // overrides the production/testnet URL when set
	Logger            ports.Logger
	RequestsPerSecond float64       // client-side rate limit (e.g., 5)
	Burst             int           // burst allowance for the rate limiter
	Timeout           time.Duration // per-request timeout (e.g., 10 * time.Second)
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	switch {
	case cfg.BaseURL != "":
		client.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	case cfg.UseTestnet:
		client.BaseURL = baseURLTestnet
	default:
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance client configured", map[string]interface{}{"baseURL": client.BaseURL})

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		futuresClient: client,
		logger:        cfg.Logger,
		limiter:       rate.NewLimiter(rate.Limit(rps), burst),
		timeout:       timeout,
	}, nil
}

// call waits for the rate limiter and returns a context bounded by the request timeout.
func (c *Client) call(ctx context.Context, op string) (context.Context, context.CancelFunc, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, c.handleError(ctx, err, op)
	}
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	return callCtx, cancel, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1001, -1007: // Disconnected / timeout waiting for backend
			mappedErr = ports.ErrExchangeUnavailable
		case -1021: // Timestamp for this request is outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022, -2014, -2015: // Signature or API key problems
			mappedErr = ports.ErrAuthenticationFailed
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1112, -1114, -1115, -1116, -1117, -1120, -1121, -1125, -1127, -1128, -1130: // Parameter/Request format errors
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrUnknown
		}
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
	}

	// Handle non-API errors (network, context cancellation, etc.)
	var finalErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	case strings.Contains(err.Error(), "use of closed network connection"),
		strings.Contains(err.Error(), "connection refused"),
		strings.Contains(err.Error(), "connection reset by peer"),
		strings.Contains(err.Error(), "no such host"):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	default:
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// GetBars retrieves the most recent bars for the given symbol, oldest first.
func (c *Client) GetBars(ctx context.Context, symbol, interval string, limit int) ([]domain.Bar, error) {
	op := "GetBars"
	if limit <= 0 || limit > maxKlinesLimit {
		return nil, fmt.Errorf("%s: limit %d outside 1..%d: %w", op, limit, maxKlinesLimit, ports.ErrInvalidRequest)
	}
	callCtx, cancel, err := c.call(ctx, op)
	if err != nil {
		return nil, err
	}
	defer cancel()

	klines, err := c.futuresClient.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(callCtx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	bars := make([]domain.Bar, 0, len(klines))
	for _, k := range klines {
		bar, err := translateBinanceKline(k)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to translate kline: %w", err), op)
		}
		bars = append(bars, bar)
	}
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "interval": interval, "bars": len(bars)})
	return bars, nil
}

// GetBarsRange fetches all bars for a symbol/interval between start and end time.
func (c *Client) GetBarsRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.Bar, error) {
	op := "GetBarsRange"
	var all []domain.Bar
	from := start

	for {
		callCtx, cancel, err := c.call(ctx, op)
		if err != nil {
			return nil, err
		}
		klines, err := c.futuresClient.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(from.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(maxKlinesLimit).
			Do(callCtx)
		cancel()
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if len(klines) == 0 {
			break
		}
		for _, k := range klines {
			bar, err := translateBinanceKline(k)
			if err != nil {
				return nil, c.handleError(ctx, fmt.Errorf("failed to translate kline range: %w", err), op)
			}
			all = append(all, bar)
		}
		last := klines[len(klines)-1]
		from = time.UnixMilli(last.CloseTime + 1)
		if from.After(end) || len(klines) < maxKlinesLimit {
			break
		}
	}

	return all, nil
}

// GetTickerPrice retrieves the last traded price for a given symbol.
func (c *Client) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	t, err := c.get24h(ctx, symbol, "GetTickerPrice")
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ports.ErrPriceUnavailable, err)
	}
	return t.LastPrice, nil
}

// Get24hTicker retrieves rolling 24h statistics for a given symbol.
func (c *Client) Get24hTicker(ctx context.Context, symbol string) (*domain.Ticker24h, error) {
	return c.get24h(ctx, symbol, "Get24hTicker")
}

func (c *Client) get24h(ctx context.Context, symbol, op string) (*domain.Ticker24h, error) {
	callCtx, cancel, err := c.call(ctx, op)
	if err != nil {
		return nil, err
	}
	defer cancel()

	stats, err := c.futuresClient.NewListPriceChangeStatsService().Symbol(symbol).Do(callCtx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	if len(stats) == 0 {
		return nil, c.handleError(ctx, fmt.Errorf("no ticker data returned for symbol %s: %w", symbol, ports.ErrNotFound), op)
	}

	t, err := translatePriceChangeStats(stats[0])
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	return t, nil
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	callCtx, cancel, err := c.call(ctx, op)
	if err != nil {
		return err
	}
	defer cancel()

	if err := c.futuresClient.NewPingService().Do(callCtx); err != nil {
		return c.handleError(ctx, fmt.Errorf("ping failed: %w", err), op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// --- Translation Helpers ---

func translateBinanceKline(bk *futures.Kline) (domain.Bar, error) {
	if bk == nil {
		return domain.Bar{}, errors.New("received nil historical kline")
	}
	open, err := strconv.ParseFloat(bk.Open, 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parsing open price '%s': %w", bk.Open, err)
	}
	high, err := strconv.ParseFloat(bk.High, 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parsing high price '%s': %w", bk.High, err)
	}
	low, err := strconv.ParseFloat(bk.Low, 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parsing low price '%s': %w", bk.Low, err)
	}
	cls, err := strconv.ParseFloat(bk.Close, 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parsing close price '%s': %w", bk.Close, err)
	}
	vol, err := strconv.ParseFloat(bk.Volume, 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parsing volume '%s': %w", bk.Volume, err)
	}

	return domain.Bar{
		Time:   time.UnixMilli(bk.OpenTime).UTC(),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  cls,
		Volume: vol,
	}, nil
}

func translatePriceChangeStats(s *futures.PriceChangeStats) (*domain.Ticker24h, error) {
	if s == nil {
		return nil, errors.New("received nil ticker")
	}
	last, err := strconv.ParseFloat(s.LastPrice, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing last price '%s': %w", s.LastPrice, err)
	}
	high, err := strconv.ParseFloat(s.HighPrice, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing high price '%s': %w", s.HighPrice, err)
	}
	low, err := strconv.ParseFloat(s.LowPrice, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing low price '%s': %w", s.LowPrice, err)
	}
	pct, err := strconv.ParseFloat(s.PriceChangePercent, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing change percent '%s': %w", s.PriceChangePercent, err)
	}
	return &domain.Ticker24h{
		Symbol:    s.Symbol,
		LastPrice: last,
		Low:       low,
		High:      high,
		ChangePct: pct,
	}, nil
}
