package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"stockSignalBot/internal/adapters/logger" // Import the logger package for LogLevel
	"stockSignalBot/internal/session"
)

// Config holds all application configuration.
type Config struct {
	// Market data vendor API
	APIKey        string
	APISecret     string
	FeedMode      string // "rest" polls the bars endpoint, "stream" consumes the websocket feed
	FeedBaseURL   string // Empty means the vendor default
	FeedStreamURL string
	FeedTier      string // e.g. "iex" or "sip"
	BarTimeframe  string // e.g. "1Min"
	FeedTimeout   time.Duration

	// Watch-list
	WatchlistPath string
	MaxSymbols    int

	// Session calendar
	Calendar session.Calendar

	// Indicator Parameters
	EMAFastPeriod    int
	EMASlowPeriod    int
	MACDSignalPeriod int
	RSIPeriod        int
	SMAShortPeriod   int
	SMALongPeriod    int
	VolumePeriod     int
	MomentumPeriod   int
	MinBars          int // Extra warm-up floor on top of the indicator minimum

	// Rule Parameters
	RSIOverbought    float64
	RSIOversold      float64
	VolumeSurgeRatio float64
	MinVotes         int
	ReaffirmInterval time.Duration

	// Orchestration
	TickInterval         time.Duration
	MaxConcurrentFetches int
	RetryAttempts        int
	RetryBackoffMin      time.Duration
	RetryBackoffMax      time.Duration
	FailureThreshold     int
	WarmupLookback       time.Duration
	PersistAnalysis      bool

	// Database
	DBPath string

	// Logging
	LogLevel  logger.LogLevel // Use the LogLevel type from the logger adapter
	LogFormat string          // "text" (StdLogger) or "json" (ZapLogger)
}

// LoadConfig loads configuration from environment variables (.env file) and,
// when SESSION_CALENDAR_PATH is set, a YAML session calendar file. Vendor API
// credentials are required.
func LoadConfig() (*Config, error) {
	return load(true)
}

// LoadOfflineConfig is LoadConfig without the vendor credential requirement,
// for tools that never contact the data vendor (e.g. CSV replay).
func LoadOfflineConfig() (*Config, error) {
	return load(false)
}

func load(requireVendorKeys bool) (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Vendor API
	cfg.APIKey = getEnv("ALPACA_API_KEY", "")
	cfg.APISecret = getEnv("ALPACA_API_SECRET", "")
	cfg.FeedMode = strings.ToLower(getEnv("FEED_MODE", "rest"))
	if cfg.FeedMode != "rest" && cfg.FeedMode != "stream" {
		errs = append(errs, "FEED_MODE must be \"rest\" or \"stream\"")
	}
	cfg.FeedBaseURL = getEnv("FEED_BASE_URL", "")
	cfg.FeedStreamURL = getEnv("FEED_STREAM_URL", "")
	cfg.FeedTier = getEnv("FEED_TIER", "iex")
	cfg.BarTimeframe = getEnv("BAR_TIMEFRAME", "1Min")

	if requireVendorKeys {
		if cfg.APIKey == "" {
			errs = append(errs, "ALPACA_API_KEY must be set")
		}
		if cfg.APISecret == "" {
			errs = append(errs, "ALPACA_API_SECRET must be set")
		}
	}

	feedTimeoutSeconds := getEnvAsInt("FEED_TIMEOUT_SECONDS", 10)
	if feedTimeoutSeconds <= 0 {
		errs = append(errs, "FEED_TIMEOUT_SECONDS must be positive")
	}
	cfg.FeedTimeout = time.Duration(feedTimeoutSeconds) * time.Second

	// Watch-list
	cfg.WatchlistPath = getEnv("WATCHLIST_PATH", "./data/latest_analysis.json")
	if cfg.WatchlistPath == "" {
		errs = append(errs, "WATCHLIST_PATH must be set")
	}
	cfg.MaxSymbols, err = getEnvAsIntRequired("MAX_SYMBOLS", 20)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_SYMBOLS: %v", err))
	} else if cfg.MaxSymbols <= 0 {
		errs = append(errs, "MAX_SYMBOLS must be positive")
	}

	// Session calendar: defaults, optionally overridden from a YAML file.
	cfg.Calendar = session.DefaultCalendar()
	if calPath := getEnv("SESSION_CALENDAR_PATH", ""); calPath != "" {
		if loadErr := loadCalendarFile(calPath, &cfg.Calendar); loadErr != nil {
			errs = append(errs, fmt.Sprintf("loading session calendar: %v", loadErr))
		}
	}

	// Indicator Parameters (defaults match the conventional MACD/RSI setup)
	cfg.EMAFastPeriod = getEnvAsInt("EMA_FAST_PERIOD", 12)
	cfg.EMASlowPeriod = getEnvAsInt("EMA_SLOW_PERIOD", 26)
	cfg.MACDSignalPeriod = getEnvAsInt("MACD_SIGNAL_PERIOD", 9)
	cfg.RSIPeriod = getEnvAsInt("RSI_PERIOD", 14)
	cfg.SMAShortPeriod = getEnvAsInt("SMA_SHORT_PERIOD", 20)
	cfg.SMALongPeriod = getEnvAsInt("SMA_LONG_PERIOD", 50)
	cfg.VolumePeriod = getEnvAsInt("VOLUME_PERIOD", 20)
	cfg.MomentumPeriod = getEnvAsInt("MOMENTUM_PERIOD", 10)
	cfg.MinBars = getEnvAsInt("MIN_BARS", 0)

	if cfg.EMAFastPeriod <= 0 || cfg.EMASlowPeriod <= 0 || cfg.MACDSignalPeriod <= 0 ||
		cfg.RSIPeriod <= 0 || cfg.SMAShortPeriod <= 0 || cfg.SMALongPeriod <= 0 ||
		cfg.VolumePeriod <= 0 || cfg.MomentumPeriod <= 0 {
		errs = append(errs, "indicator periods (EMA, MACD, RSI, SMA, volume, momentum) must be positive")
	}
	if cfg.EMAFastPeriod >= cfg.EMASlowPeriod {
		errs = append(errs, "EMA_FAST_PERIOD must be less than EMA_SLOW_PERIOD")
	}
	if cfg.SMAShortPeriod >= cfg.SMALongPeriod {
		errs = append(errs, "SMA_SHORT_PERIOD must be less than SMA_LONG_PERIOD")
	}

	// Rule Parameters
	cfg.RSIOverbought = getEnvAsFloat("RSI_OVERBOUGHT", 70.0)
	cfg.RSIOversold = getEnvAsFloat("RSI_OVERSOLD", 30.0)
	cfg.VolumeSurgeRatio = getEnvAsFloat("VOLUME_SURGE_RATIO", 1.5)
	cfg.MinVotes = getEnvAsInt("MIN_VOTES", 2)

	if cfg.RSIOverbought <= cfg.RSIOversold || cfg.RSIOverbought > 100 || cfg.RSIOversold < 0 {
		errs = append(errs, "invalid RSI thresholds (Overbought must be > Oversold, between 0-100)")
	}
	if cfg.VolumeSurgeRatio <= 0 {
		errs = append(errs, "VOLUME_SURGE_RATIO must be positive")
	}
	if cfg.MinVotes <= 0 {
		errs = append(errs, "MIN_VOTES must be positive")
	}

	reaffirmMinutes := getEnvAsInt("REAFFIRM_INTERVAL_MINUTES", 30)
	if reaffirmMinutes <= 0 {
		errs = append(errs, "REAFFIRM_INTERVAL_MINUTES must be positive")
	}
	cfg.ReaffirmInterval = time.Duration(reaffirmMinutes) * time.Minute

	// Orchestration (5 minute default tick matches the analysis cadence)
	tickSeconds := getEnvAsInt("TICK_INTERVAL_SECONDS", 300)
	if tickSeconds <= 0 {
		errs = append(errs, "TICK_INTERVAL_SECONDS must be positive")
	}
	cfg.TickInterval = time.Duration(tickSeconds) * time.Second

	cfg.MaxConcurrentFetches = getEnvAsInt("MAX_CONCURRENT_FETCHES", 4)
	if cfg.MaxConcurrentFetches <= 0 {
		errs = append(errs, "MAX_CONCURRENT_FETCHES must be positive")
	}

	cfg.RetryAttempts = getEnvAsInt("RETRY_ATTEMPTS", 3)
	if cfg.RetryAttempts <= 0 {
		errs = append(errs, "RETRY_ATTEMPTS must be positive")
	}

	backoffMinMs := getEnvAsInt("RETRY_BACKOFF_MIN_MS", 500)
	backoffMaxMs := getEnvAsInt("RETRY_BACKOFF_MAX_MS", 30000)
	if backoffMinMs <= 0 || backoffMaxMs < backoffMinMs {
		errs = append(errs, "retry backoff bounds invalid (RETRY_BACKOFF_MIN_MS must be positive and <= RETRY_BACKOFF_MAX_MS)")
	}
	cfg.RetryBackoffMin = time.Duration(backoffMinMs) * time.Millisecond
	cfg.RetryBackoffMax = time.Duration(backoffMaxMs) * time.Millisecond

	cfg.FailureThreshold = getEnvAsInt("FAILURE_THRESHOLD", 3)
	if cfg.FailureThreshold <= 0 {
		errs = append(errs, "FAILURE_THRESHOLD must be positive")
	}

	lookbackMinutes := getEnvAsInt("WARMUP_LOOKBACK_MINUTES", 120)
	if lookbackMinutes <= 0 {
		errs = append(errs, "WARMUP_LOOKBACK_MINUTES must be positive")
	}
	cfg.WarmupLookback = time.Duration(lookbackMinutes) * time.Minute

	cfg.PersistAnalysis = getEnvAsBool("PERSIST_ANALYSIS", true)

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/signals.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "text"))
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, "LOG_FORMAT must be \"text\" or \"json\"")
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// loadCalendarFile overlays calendar fields from a YAML file onto cal.
func loadCalendarFile(path string, cal *session.Calendar) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cal); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
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
		// Log warning? For non-required fields, default is often acceptable.
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
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
