package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"github.com/google/uuid"

	"stockSignalBot/config"
	"stockSignalBot/internal/adapters/alpaca"
	"stockSignalBot/internal/adapters/logger"
	"stockSignalBot/internal/adapters/sqlite"
	"stockSignalBot/internal/app"
	"stockSignalBot/internal/indicator"
	"stockSignalBot/internal/ports"
	"stockSignalBot/internal/rules"
	"stockSignalBot/internal/session"
	"stockSignalBot/internal/watchlist"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	var appLogger ports.Logger
	if cfg.LogFormat == "json" {
		zapLogger, err := logger.NewZapLogger(cfg.LogLevel)
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize zap logger: %v", err)
		}
		defer zapLogger.Sync()
		appLogger = zapLogger
	} else {
		appLogger = logger.NewStdLogger(cfg.LogLevel)
	}
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{
		"level":  cfg.LogLevel.String(),
		"format": cfg.LogFormat,
	})

	// 3. Initialize Signal Store (Database Adapter)
	store, err := sqlite.NewStore(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize signal store")
		log.Fatalf("FATAL: Failed to initialize signal store: %v", err) // Also log to stderr
	}
	defer func() {
		if err := store.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing signal store")
		}
	}()
	appLogger.Info(context.Background(), "Signal store initialized")

	// 4. Load the Watch-list
	loader, err := watchlist.NewLoader(cfg.MaxSymbols, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize watchlist loader")
		log.Fatalf("FATAL: Failed to initialize watchlist loader: %v", err)
	}
	entries, err := loader.Load(context.Background(), cfg.WatchlistPath)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to load watchlist")
		log.Fatalf("FATAL: Failed to load watchlist: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 5. Initialize Market Data Feed (Alpaca Adapter): polled REST bars by
	// default, or the live websocket stream when FEED_MODE=stream. Both sit
	// behind the same GetBars port.
	var feed ports.MarketDataFeed
	switch cfg.FeedMode {
	case "stream":
		symbols := make([]string, 0, len(entries))
		for _, entry := range entries {
			symbols = append(symbols, entry.Symbol)
		}
		stream, err := alpaca.NewStream(alpaca.StreamConfig{
			URL:       cfg.FeedStreamURL,
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			Symbols:   symbols,
			Logger:    appLogger,
		})
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to initialize bar stream")
			log.Fatalf("FATAL: Failed to initialize bar stream: %v", err)
		}
		go func() {
			if err := stream.Run(ctx); err != nil {
				appLogger.Error(ctx, err, "Bar stream stopped")
				cancel()
			}
		}()
		feed = stream
	default:
		client, err := alpaca.New(alpaca.Config{
			BaseURL:   cfg.FeedBaseURL,
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			Timeframe: cfg.BarTimeframe,
			Feed:      cfg.FeedTier,
			Timeout:   cfg.FeedTimeout,
			Logger:    appLogger,
		})
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to initialize market data feed")
			log.Fatalf("FATAL: Failed to initialize market data feed: %v", err)
		}
		feed = client
	}
	appLogger.Info(ctx, "Market data feed initialized", map[string]interface{}{"mode": cfg.FeedMode})

	// 6. Initialize Session Clock
	clock, err := session.NewClock(cfg.Calendar)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to build session clock")
		log.Fatalf("FATAL: Failed to build session clock: %v", err)
	}
	appLogger.Info(ctx, "Session clock initialized", map[string]interface{}{
		"timezone": cfg.Calendar.Timezone,
		"open":     cfg.Calendar.MarketOpen,
		"close":    cfg.Calendar.MarketClose,
	})

	// 7. Initialize Indicator and Rule Engines
	indicators, err := indicator.New(indicator.Config{
		EMAFastPeriod:    cfg.EMAFastPeriod,
		EMASlowPeriod:    cfg.EMASlowPeriod,
		MACDSignalPeriod: cfg.MACDSignalPeriod,
		RSIPeriod:        cfg.RSIPeriod,
		SMAShortPeriod:   cfg.SMAShortPeriod,
		SMALongPeriod:    cfg.SMALongPeriod,
		VolumePeriod:     cfg.VolumePeriod,
		MomentumPeriod:   cfg.MomentumPeriod,
		MinBars:          cfg.MinBars,
	}, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize indicator engine")
		log.Fatalf("FATAL: Failed to initialize indicator engine: %v", err)
	}

	ruleEngine, err := rules.New(rules.Config{
		Rules: []rules.Rule{
			{Kind: rules.KindRSIOverbought, Threshold: cfg.RSIOverbought},
			{Kind: rules.KindRSIOversold, Threshold: cfg.RSIOversold},
			{Kind: rules.KindMACDCross},
			{Kind: rules.KindTrendMA},
			{Kind: rules.KindVolumeSurge, Threshold: cfg.VolumeSurgeRatio},
		},
		MinVotes:         cfg.MinVotes,
		ReaffirmInterval: cfg.ReaffirmInterval,
	}, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize rule engine")
		log.Fatalf("FATAL: Failed to initialize rule engine: %v", err)
	}
	appLogger.Info(ctx, "Signal engines initialized")

	// 8. Initialize and Run the Signal Service
	runID := uuid.NewString()
	service, err := app.NewSignalService(app.Config{
		TickInterval:         cfg.TickInterval,
		MaxConcurrentFetches: cfg.MaxConcurrentFetches,
		RetryAttempts:        cfg.RetryAttempts,
		RetryBackoffMin:      cfg.RetryBackoffMin,
		RetryBackoffMax:      cfg.RetryBackoffMax,
		FailureThreshold:     cfg.FailureThreshold,
		WarmupLookback:       cfg.WarmupLookback,
		PersistAnalysis:      cfg.PersistAnalysis,
	}, appLogger, feed, store, indicators, ruleEngine, clock, runID, entries)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize signal service")
		log.Fatalf("FATAL: Failed to initialize signal service: %v", err)
	}
	appLogger.Info(ctx, "Signal service initialized", map[string]interface{}{"runID": runID})

	if err := service.Run(ctx); err != nil {
		appLogger.Error(ctx, err, "Signal service exited with error")
		log.Fatalf("FATAL: Signal service exited with error: %v", err)
	}

	appLogger.Info(ctx, "Application finished gracefully.")
}
