package sqlite

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cryptoSignalAgent/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) (*Repository, string, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "signal-agent-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	repo, err := NewRepository(Config{
		DBPath: dbPath,
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	}

	return repo, dbPath, cleanup
}

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC)

func TestNewRepository_RequiresLogger(t *testing.T) {
	_, err := NewRepository(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	assert.Error(t, err)
}

func TestRepository_Parameters(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	loaded, err := repo.LoadParameters(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded, "nothing persisted yet")

	params := domain.DefaultParameters()
	params.PullbackATR = 0.225
	params.VolumeWindow = 22
	require.NoError(t, repo.SaveParameters(ctx, params))

	params.RiskPct = 3.15
	require.NoError(t, repo.SaveParameters(ctx, params))

	loaded, err = repo.LoadParameters(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, params, *loaded)
}

func TestRepository_OpenTradesRoundTrip(t *testing.T) {
	repo, dbPath, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	btcLong := domain.NewTrade("BTCUSDT", domain.Long, 60000, 58200, 62400, 3, baseTime)
	btcShort := domain.NewTrade("BTCUSDT", domain.Short, 61000, 62830, 58560, 3, baseTime.Add(time.Minute))
	eth := domain.NewTrade("ETHUSDT", domain.Long, 3000.123456, 2910.119752, 3120.128394, 3.15, baseTime.Add(2*time.Minute))

	require.NoError(t, repo.ReplaceOpenTrades(ctx, "BTCUSDT", []*domain.Trade{btcLong, btcShort}))
	require.NoError(t, repo.ReplaceOpenTrades(ctx, "ETHUSDT", []*domain.Trade{eth}))

	// Whole-set replace: the short is gone afterwards.
	require.NoError(t, repo.ReplaceOpenTrades(ctx, "BTCUSDT", []*domain.Trade{btcLong}))

	// Reopen the file to prove durability.
	require.NoError(t, repo.Close())
	reopened, err := NewRepository(Config{DBPath: dbPath, Logger: &mockLogger{}})
	require.NoError(t, err)
	defer reopened.Close()

	trades, err := reopened.LoadOpenTrades(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, *btcLong, *trades[0])
	assert.Equal(t, *eth, *trades[1])
}

func TestRepository_ReplaceOpenTradesRejectsForeignSymbol(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.ReplaceOpenTrades(ctx, "BTCUSDT", []*domain.Trade{
		domain.NewTrade("BTCUSDT", domain.Long, 100, 97, 104, 3, baseTime),
	}))
	err := repo.ReplaceOpenTrades(ctx, "BTCUSDT", []*domain.Trade{
		domain.NewTrade("ETHUSDT", domain.Long, 100, 97, 104, 3, baseTime),
	})
	assert.Error(t, err)

	// The failed transaction leaves the previous set intact.
	trades, err := repo.LoadOpenTrades(ctx)
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

func TestRepository_TradeHistoryRetention(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		result := domain.ResultTakeProfit
		if i%2 == 1 {
			result = domain.ResultStopLoss
		}
		rec := &domain.ClosedTradeRecord{
			TradeID:    "trade-" + string(rune('a'+i)),
			Symbol:     "SOLUSDT",
			Direction:  domain.Long,
			Result:     result,
			EntryPrice: 100,
			ClosePrice: 104,
			Timestamp:  baseTime.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, repo.AppendClosedTrade(ctx, rec, 5))
		assert.NotZero(t, rec.ID)
	}

	all, err := repo.LoadClosedTrades(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "trade-c", all[0].TradeID)
	assert.Equal(t, "trade-g", all[4].TradeID)
	assert.Equal(t, baseTime.Add(6*time.Hour), all[4].Timestamp)
	assert.Equal(t, domain.ResultTakeProfit, all[4].Result)

	recent, err := repo.LoadClosedTrades(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "trade-f", recent[0].TradeID)
	assert.Equal(t, "trade-g", recent[1].TradeID)
}

func TestRepository_CacheEntries(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.SaveCacheEntry(ctx, domain.CacheEntry{
		Key: "ticker24h:BTCUSDT", StoredAt: baseTime, Payload: json.RawMessage(`{"lastPrice":1}`),
	}))
	require.NoError(t, repo.SaveCacheEntry(ctx, domain.CacheEntry{
		Key: "ticker24h:BTCUSDT", StoredAt: baseTime.Add(time.Minute), Payload: json.RawMessage(`{"lastPrice":2}`),
	}))
	require.NoError(t, repo.SaveCacheEntry(ctx, domain.CacheEntry{
		Key: "bars:BTCUSDT:1h:168", StoredAt: baseTime, Payload: json.RawMessage(`[]`),
	}))

	entries, err := repo.LoadCacheEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "bars:BTCUSDT:1h:168", entries[0].Key)
	assert.Equal(t, "ticker24h:BTCUSDT", entries[1].Key)
	assert.Equal(t, baseTime.Add(time.Minute), entries[1].StoredAt)
	assert.JSONEq(t, `{"lastPrice":2}`, string(entries[1].Payload))
}
