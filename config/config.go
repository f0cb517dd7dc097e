package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"cryptoSignalAgent/internal/adapters/logger" // Import the logger package for LogLevel
	"cryptoSignalAgent/internal/adapters/rss"
	"cryptoSignalAgent/internal/domain"
	"cryptoSignalAgent/internal/strategy"
)

// Config holds all application configuration.
type Config struct {
	// Market
	Symbols   []string `yaml:"symbols"`
	Interval  string   `yaml:"interval"`  // bar interval, e.g. "1h"
	Timeframe string   `yaml:"timeframe"` // label carried by entry events, e.g. "H1"
	BarLimit  int      `yaml:"barLimit"`  // bars requested per scan

	// Scheduling
	ScanInterval time.Duration `yaml:"scanInterval"` // pause between two symbol scans
	ReportCron   string        `yaml:"reportCron"`   // standard 5-field cron expression
	ReportPoll   time.Duration `yaml:"reportPoll"`
	CacheMaxAge  time.Duration `yaml:"cacheMaxAge"`

	// Strategy and tuning
	Strategy         domain.StrategyParameters `yaml:"strategy"`
	TunerEnabled     bool                      `yaml:"tunerEnabled"`
	TunerWindow      int                       `yaml:"tunerWindow"`
	TunerLowWinRate  float64                   `yaml:"tunerLowWinRate"`
	TunerHighWinRate float64                   `yaml:"tunerHighWinRate"`
	HistoryRetention int                       `yaml:"historyRetention"`

	Binance BinanceConfig `yaml:"binance"`
	Webhook WebhookConfig `yaml:"webhook"`

	// Report sources
	Feeds         []rss.Feed `yaml:"feeds"`
	HeadlineLimit int        `yaml:"headlineLimit"`
	FearGreedURL  string     `yaml:"fearGreedUrl"`

	// Database
	DBPath string `yaml:"dbPath"`

	// Logging
	LogLevel     logger.LogLevel `yaml:"-"` // Use the LogLevel type from the logger adapter
	LogLevelName string          `yaml:"logLevel"`
	LogFormat    string          `yaml:"logFormat"`
	LogFile      string          `yaml:"logFile"`

	// Runtime
	HealthAddr       string `yaml:"healthAddr"`
	SendTestOnDeploy bool   `yaml:"sendTestOnDeploy"`
}

// BinanceConfig holds the market data source settings.
type BinanceConfig struct {
	APIKey            string        `yaml:"-"`
	SecretKey         string        `yaml:"-"`
	Testnet           bool          `yaml:"testnet"`
	BaseURL           string        `yaml:"baseUrl"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Burst             int           `yaml:"burst"`
	Timeout           time.Duration `yaml:"timeout"`
}

// WebhookConfig holds the event delivery settings.
type WebhookConfig struct {
	URL        string        `yaml:"url"`
	MaxRetries int           `yaml:"maxRetries"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Symbols:          []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT"},
		Interval:         "1h",
		Timeframe:        "H1",
		BarLimit:         100,
		ScanInterval:     60 * time.Second,
		ReportCron:       "0 */4 * * *",
		ReportPoll:       15 * time.Second,
		CacheMaxAge:      5 * time.Minute,
		Strategy:         domain.DefaultParameters(),
		TunerEnabled:     true,
		TunerWindow:      30,
		TunerLowWinRate:  0.45,
		TunerHighWinRate: 0.65,
		HistoryRetention: 500,
		Binance: BinanceConfig{
			RequestsPerSecond: 5,
			Burst:             5,
			Timeout:           10 * time.Second,
		},
		Webhook: WebhookConfig{
			MaxRetries: 3,
			Timeout:    10 * time.Second,
		},
		Feeds:            rss.DefaultFeeds(),
		HeadlineLimit:    5,
		DBPath:           "./data/signal_agent.db",
		LogLevel:         logger.LevelInfo,
		LogLevelName:     "INFO",
		LogFormat:        "text",
		HealthAddr:       ":10000",
		SendTestOnDeploy: true,
	}
}

// LoadConfig loads configuration from an optional YAML file and environment variables (.env file).
// Environment variables win over the file.
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := Default()
	if err := loadFile(getEnv("CONFIG_FILE", "config.yaml"), cfg); err != nil {
		return nil, err
	}

	errs := applyEnv(cfg)
	errs = append(errs, cfg.validate()...)

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// loadFile overlays a YAML file onto cfg. A missing file is not an error.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) []string {
	var errs []string
	var err error

	// Market
	cfg.Symbols = getEnvAsList("SYMBOLS", cfg.Symbols)
	cfg.Interval = getEnv("BAR_INTERVAL", cfg.Interval)
	cfg.Timeframe = getEnv("TIMEFRAME", cfg.Timeframe)
	if cfg.BarLimit, err = getEnvAsIntRequired("BAR_LIMIT", cfg.BarLimit); err != nil {
		errs = append(errs, fmt.Sprintf("invalid BAR_LIMIT: %v", err))
	}

	// Scheduling
	if v := os.Getenv("LOOP_SECONDS"); v != "" {
		secs, convErr := strconv.Atoi(v)
		if convErr != nil {
			errs = append(errs, fmt.Sprintf("invalid LOOP_SECONDS: %v", convErr))
		} else {
			cfg.ScanInterval = time.Duration(secs) * time.Second
		}
	}
	if cfg.ScanInterval, err = getEnvAsDuration("SCAN_INTERVAL", cfg.ScanInterval); err != nil {
		errs = append(errs, fmt.Sprintf("invalid SCAN_INTERVAL: %v", err))
	}
	cfg.ReportCron = getEnv("REPORT_CRON", cfg.ReportCron)
	if cfg.ReportPoll, err = getEnvAsDuration("REPORT_POLL", cfg.ReportPoll); err != nil {
		errs = append(errs, fmt.Sprintf("invalid REPORT_POLL: %v", err))
	}
	if cfg.CacheMaxAge, err = getEnvAsDuration("CACHE_MAX_AGE", cfg.CacheMaxAge); err != nil {
		errs = append(errs, fmt.Sprintf("invalid CACHE_MAX_AGE: %v", err))
	}

	// Strategy Parameters (using file or built-in values if not set)
	p := &cfg.Strategy
	p.FastWindow = getEnvAsInt("SMA_FAST", p.FastWindow)
	p.SlowWindow = getEnvAsInt("SMA_SLOW", p.SlowWindow)
	p.ATRWindow = getEnvAsInt("ATR_LEN", p.ATRWindow)
	p.VolumeWindow = getEnvAsInt("VOL_LEN", p.VolumeWindow)
	p.SizingMode = domain.SizingMode(strings.ToLower(getEnv("SIZING_MODE", string(p.SizingMode))))
	floats := []struct {
		key string
		dst *float64
	}{
		{"PULLBACK_ATR", &p.PullbackATR},
		{"RISK_PCT", &p.RiskPct},
		{"TP_PCT", &p.TakeProfitPct},
		{"SL_PCT", &p.StopLossPct},
		{"TP_ATR", &p.TakeProfitATR},
		{"SL_ATR", &p.StopLossATR},
		{"MIN_VOLUME_RATIO", &p.MinVolumeRatio},
		{"TUNER_LOW_WIN_RATE", &cfg.TunerLowWinRate},
		{"TUNER_HIGH_WIN_RATE", &cfg.TunerHighWinRate},
		{"BINANCE_REQUESTS_PER_SECOND", &cfg.Binance.RequestsPerSecond},
	}
	for _, f := range floats {
		if *f.dst, err = getEnvAsFloatRequired(f.key, *f.dst); err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", f.key, err))
		}
	}

	cfg.TunerEnabled = getEnvAsBool("TUNER_ENABLED", cfg.TunerEnabled)
	cfg.TunerWindow = getEnvAsInt("TUNER_WINDOW", cfg.TunerWindow)
	cfg.HistoryRetention = getEnvAsInt("HISTORY_RETENTION", cfg.HistoryRetention)

	// Binance API (keys are optional, market data endpoints are public)
	cfg.Binance.APIKey = getEnv("BINANCE_API_KEY", cfg.Binance.APIKey)
	cfg.Binance.SecretKey = getEnv("BINANCE_API_SECRET", cfg.Binance.SecretKey)
	cfg.Binance.Testnet = getEnvAsBool("IS_TESTNET", cfg.Binance.Testnet)
	cfg.Binance.BaseURL = getEnv("BINANCE_BASE_URL", cfg.Binance.BaseURL)
	cfg.Binance.Burst = getEnvAsInt("BINANCE_BURST", cfg.Binance.Burst)
	if cfg.Binance.Timeout, err = getEnvAsDuration("BINANCE_TIMEOUT", cfg.Binance.Timeout); err != nil {
		errs = append(errs, fmt.Sprintf("invalid BINANCE_TIMEOUT: %v", err))
	}

	// Webhook
	cfg.Webhook.URL = getEnv("WEBHOOK_URL", cfg.Webhook.URL)
	if cfg.Webhook.MaxRetries, err = getEnvAsIntRequired("WEBHOOK_MAX_RETRIES", cfg.Webhook.MaxRetries); err != nil {
		errs = append(errs, fmt.Sprintf("invalid WEBHOOK_MAX_RETRIES: %v", err))
	}
	if cfg.Webhook.Timeout, err = getEnvAsDuration("WEBHOOK_TIMEOUT", cfg.Webhook.Timeout); err != nil {
		errs = append(errs, fmt.Sprintf("invalid WEBHOOK_TIMEOUT: %v", err))
	}

	// Report sources
	cfg.HeadlineLimit = getEnvAsInt("HEADLINE_LIMIT", cfg.HeadlineLimit)
	cfg.FearGreedURL = getEnv("FEAR_GREED_URL", cfg.FearGreedURL)

	// Database
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)

	// Logging
	cfg.LogLevelName = strings.ToUpper(getEnv("LOG_LEVEL", cfg.LogLevelName))
	cfg.LogLevel = logger.ParseLevel(cfg.LogLevelName)
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", cfg.LogFormat))
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)

	// Runtime; PORT is honoured for hosting platforms that inject it
	if port := os.Getenv("PORT"); port != "" {
		cfg.HealthAddr = ":" + port
	}
	cfg.HealthAddr = getEnv("HEALTH_ADDR", cfg.HealthAddr)
	cfg.SendTestOnDeploy = getEnvAsBool("SEND_TEST_ON_DEPLOY", cfg.SendTestOnDeploy)

	return errs
}

func (cfg *Config) validate() []string {
	var errs []string

	if len(cfg.Symbols) == 0 {
		errs = append(errs, "SYMBOLS must list at least one symbol")
	}
	for _, s := range cfg.Symbols {
		if s != strings.ToUpper(s) || strings.ContainsAny(s, " /") {
			errs = append(errs, fmt.Sprintf("invalid symbol %q (expected e.g. BTCUSDT)", s))
		}
	}
	if cfg.Interval == "" {
		errs = append(errs, "BAR_INTERVAL must be set")
	}
	if err := cfg.Strategy.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("strategy: %v", err))
	}
	if required := strategy.RequiredBars(cfg.Strategy); cfg.BarLimit < required {
		errs = append(errs, fmt.Sprintf("BAR_LIMIT (%d) must cover the %d bars the strategy needs", cfg.BarLimit, required))
	}
	if cfg.ScanInterval <= 0 {
		errs = append(errs, "SCAN_INTERVAL must be positive")
	}
	if cfg.ReportCron == "" {
		errs = append(errs, "REPORT_CRON must be set")
	}
	if cfg.ReportPoll <= 0 {
		errs = append(errs, "REPORT_POLL must be positive")
	}
	if cfg.CacheMaxAge <= 0 {
		errs = append(errs, "CACHE_MAX_AGE must be positive")
	}
	if cfg.TunerWindow <= 0 {
		errs = append(errs, "TUNER_WINDOW must be positive")
	}
	if cfg.TunerLowWinRate < 0 || cfg.TunerHighWinRate > 1 || cfg.TunerLowWinRate >= cfg.TunerHighWinRate {
		errs = append(errs, "tuner win-rate thresholds must satisfy 0 <= low < high <= 1")
	}
	if cfg.HistoryRetention <= 0 {
		errs = append(errs, "HISTORY_RETENTION must be positive")
	} else if cfg.HistoryRetention < cfg.TunerWindow {
		errs = append(errs, fmt.Sprintf("HISTORY_RETENTION (%d) must hold at least TUNER_WINDOW (%d) records", cfg.HistoryRetention, cfg.TunerWindow))
	}
	if cfg.Webhook.MaxRetries < 0 {
		errs = append(errs, "WEBHOOK_MAX_RETRIES cannot be negative")
	}
	if cfg.HeadlineLimit < 0 {
		errs = append(errs, "HEADLINE_LIMIT cannot be negative")
	}
	for _, f := range cfg.Feeds {
		if f.URL == "" {
			errs = append(errs, fmt.Sprintf("feed %q has no url", f.Name))
		}
	}
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, "LOG_FORMAT must be text or json")
	}
	if cfg.HealthAddr == "" {
		errs = append(errs, "HEALTH_ADDR must be set")
	}
	return errs
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid duration value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}
