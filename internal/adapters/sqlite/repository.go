package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cryptoSignalAgent/internal/domain"
	"cryptoSignalAgent/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the parameter, trade and cache repositories using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

var (
	_ ports.ParametersRepository = (*Repository)(nil)
	_ ports.TradeRepository      = (*Repository)(nil)
	_ ports.CacheRepository      = (*Repository)(nil)
)

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// Timestamps are stored as fixed-width UTC text so they sort lexically and round-trip exactly.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/signal_agent.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// A single connection serialises writers; both scan and report tasks share it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS strategy_parameters (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		document TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS open_trades (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		direction TEXT NOT NULL,
		entry_price REAL NOT NULL,
		stop_loss REAL NOT NULL,
		take_profit REAL NOT NULL,
		risk_pct REAL NOT NULL,
		opened_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trade_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		trade_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		direction TEXT NOT NULL,
		result TEXT NOT NULL,
		entry_price REAL NOT NULL,
		close_price REAL NOT NULL,
		closed_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cache_entries (
		key TEXT PRIMARY KEY,
		stored_at TEXT NOT NULL,
		payload TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_open_trades_symbol ON open_trades (symbol);
	CREATE INDEX IF NOT EXISTS idx_trade_history_symbol_closed_at ON trade_history (symbol, closed_at);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- ParametersRepository Implementation ---

// LoadParameters returns the persisted strategy parameters, or nil if none were saved.
func (r *Repository) LoadParameters(ctx context.Context) (*domain.StrategyParameters, error) {
	var doc string
	err := r.db.QueryRowContext(ctx, `SELECT document FROM strategy_parameters WHERE id = 1`).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query strategy parameters: %w: %w", ports.ErrQueryFailed, err)
	}

	var params domain.StrategyParameters
	if err := json.Unmarshal([]byte(doc), &params); err != nil {
		return nil, fmt.Errorf("failed to decode strategy parameters: %w", err)
	}
	return &params, nil
}

// SaveParameters replaces the persisted strategy parameters document.
func (r *Repository) SaveParameters(ctx context.Context, params domain.StrategyParameters) error {
	doc, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode strategy parameters: %w", err)
	}
	const query = `
	INSERT INTO strategy_parameters (id, document, updated_at) VALUES (1, ?, ?)
	ON CONFLICT(id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`
	if _, err := r.db.ExecContext(ctx, query, string(doc), formatTime(time.Now())); err != nil {
		return fmt.Errorf("failed to save strategy parameters: %w: %w", ports.ErrUpdateFailed, err)
	}
	r.logger.Debug(ctx, "Strategy parameters saved")
	return nil
}

// --- TradeRepository Implementation ---

// ReplaceOpenTrades replaces the open-trade set of a symbol in one transaction.
func (r *Repository) ReplaceOpenTrades(ctx context.Context, symbol string, trades []*domain.Trade) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for %s: %w: %w", symbol, ports.ErrUpdateFailed, err)
	}
	defer tx.Rollback() // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM open_trades WHERE symbol = ?`, symbol); err != nil {
		return fmt.Errorf("failed to clear open trades for %s: %w: %w", symbol, ports.ErrUpdateFailed, err)
	}

	const insert = `
	INSERT INTO open_trades (id, symbol, direction, entry_price, stop_loss, take_profit, risk_pct, opened_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	for _, t := range trades {
		if t.Symbol != symbol {
			return fmt.Errorf("trade %s belongs to %s, not %s: %w", t.ID, t.Symbol, symbol, ports.ErrInvalidRequest)
		}
		if _, err := tx.ExecContext(ctx, insert,
			t.ID, t.Symbol, string(t.Direction), t.EntryPrice, t.StopLoss, t.TakeProfit, t.RiskPct, formatTime(t.OpenedAt)); err != nil {
			return fmt.Errorf("failed to insert open trade %s: %w: %w", t.ID, ports.ErrUpdateFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit open trades for %s: %w: %w", symbol, ports.ErrUpdateFailed, err)
	}
	r.logger.Debug(ctx, "Open trades replaced", map[string]interface{}{"symbol": symbol, "count": len(trades)})
	return nil
}

// LoadOpenTrades retrieves every open trade ordered by open time.
func (r *Repository) LoadOpenTrades(ctx context.Context) ([]*domain.Trade, error) {
	const query = `
	SELECT id, symbol, direction, entry_price, stop_loss, take_profit, risk_pct, opened_at
	FROM open_trades
	ORDER BY opened_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query open trades: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		t, err := scanOpenTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan open trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating open trade rows: %w", err)
	}
	return trades, nil
}

// AppendClosedTrade saves a history record and evicts the oldest records beyond retention.
func (r *Repository) AppendClosedTrade(ctx context.Context, rec *domain.ClosedTradeRecord, retention int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w: %w", ports.ErrUpdateFailed, err)
	}
	defer tx.Rollback()

	const insert = `
	INSERT INTO trade_history (trade_id, symbol, direction, result, entry_price, close_price, closed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, insert,
		rec.TradeID, rec.Symbol, string(rec.Direction), string(rec.Result), rec.EntryPrice, rec.ClosePrice, formatTime(rec.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to insert trade history for %s: %w: %w", rec.Symbol, ports.ErrUpdateFailed, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID for trade history %s: %w", rec.Symbol, err)
	}

	if retention > 0 {
		const evict = `
		DELETE FROM trade_history
		WHERE id NOT IN (SELECT id FROM trade_history ORDER BY id DESC LIMIT ?)`
		if _, err := tx.ExecContext(ctx, evict, retention); err != nil {
			return fmt.Errorf("failed to evict old trade history: %w: %w", ports.ErrUpdateFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trade history: %w: %w", ports.ErrUpdateFailed, err)
	}
	rec.ID = id
	r.logger.Debug(ctx, "Trade history appended", map[string]interface{}{"recordID": id, "symbol": rec.Symbol, "result": rec.Result})
	return nil
}

// LoadClosedTrades retrieves the most recent records up to limit, oldest first.
// A limit of zero or less loads everything.
func (r *Repository) LoadClosedTrades(ctx context.Context, limit int) ([]*domain.ClosedTradeRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	const query = `
	SELECT id, trade_id, symbol, direction, result, entry_price, close_price, closed_at
	FROM trade_history
	ORDER BY id DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade history: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	records := make([]*domain.ClosedTradeRecord, 0)
	for rows.Next() {
		rec, err := scanClosedTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade history: %w", err)
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade history rows: %w", err)
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// --- CacheRepository Implementation ---

// SaveCacheEntry inserts or supersedes the entry with the same key.
func (r *Repository) SaveCacheEntry(ctx context.Context, entry domain.CacheEntry) error {
	const query = `
	INSERT INTO cache_entries (key, stored_at, payload) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET stored_at = excluded.stored_at, payload = excluded.payload`
	if _, err := r.db.ExecContext(ctx, query, entry.Key, formatTime(entry.StoredAt), string(entry.Payload)); err != nil {
		return fmt.Errorf("failed to save cache entry %s: %w: %w", entry.Key, ports.ErrUpdateFailed, err)
	}
	return nil
}

// LoadCacheEntries retrieves every stored cache entry.
func (r *Repository) LoadCacheEntries(ctx context.Context) ([]domain.CacheEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, stored_at, payload FROM cache_entries ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache entries: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	entries := make([]domain.CacheEntry, 0)
	for rows.Next() {
		var e domain.CacheEntry
		var storedAt, payload string
		if err := rows.Scan(&e.Key, &storedAt, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		if e.StoredAt, err = parseTime(storedAt); err != nil {
			return nil, fmt.Errorf("cache entry %s: %w", e.Key, err)
		}
		e.Payload = json.RawMessage(payload)
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cache entry rows: %w", err)
	}
	return entries, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanOpenTrade scans a row into an open domain.Trade.
func scanOpenTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{State: domain.StateOpen}
	var direction, openedAt string
	err := s.Scan(&t.ID, &t.Symbol, &direction, &t.EntryPrice, &t.StopLoss, &t.TakeProfit, &t.RiskPct, &openedAt)
	if err != nil {
		return nil, err
	}
	t.Direction = domain.Direction(direction)
	if t.OpenedAt, err = parseTime(openedAt); err != nil {
		return nil, fmt.Errorf("trade %s: %w", t.ID, err)
	}
	return t, nil
}

// scanClosedTrade scans a row into a domain.ClosedTradeRecord.
func scanClosedTrade(s scanner) (*domain.ClosedTradeRecord, error) {
	rec := &domain.ClosedTradeRecord{}
	var direction, result, closedAt string
	err := s.Scan(&rec.ID, &rec.TradeID, &rec.Symbol, &direction, &result, &rec.EntryPrice, &rec.ClosePrice, &closedAt)
	if err != nil {
		return nil, err
	}
	rec.Direction = domain.Direction(direction)
	rec.Result = domain.CloseResult(result)
	if rec.Timestamp, err = parseTime(closedAt); err != nil {
		return nil, fmt.Errorf("history record %d: %w", rec.ID, err)
	}
	return rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
