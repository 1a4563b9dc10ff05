package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"stockSignalBot/config"
	"stockSignalBot/internal/adapters/csvfeed"
	"stockSignalBot/internal/adapters/logger"
	"stockSignalBot/internal/adapters/sqlite"
	"stockSignalBot/internal/analytics"
	"stockSignalBot/internal/app"
	"stockSignalBot/internal/domain"
	"stockSignalBot/internal/indicator"
	"stockSignalBot/internal/rules"
	"stockSignalBot/internal/session"
)

// replay_bars drives the full signal pipeline over recorded bar CSVs. Ticks
// advance along the recorded timeline instead of the wall clock, so a replayed
// day produces exactly the signals a live session over the same bars would.
func main() {
	barsDir := flag.String("bars-dir", "data/bars", "directory of recorded <SYMBOL>.csv bar files")
	dbPath := flag.String("db", "data/replay_signals.db", "SQLite path for replayed signals")
	tick := flag.Duration("tick", time.Minute, "replay tick interval along the recorded timeline")
	flag.Parse()

	// Replay never contacts the vendor, so API credentials are not required.
	cfg, err := config.LoadOfflineConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	files, err := findBarFiles(*barsDir)
	if err != nil {
		log.Fatalf("FATAL: Failed to scan %s: %v", *barsDir, err)
	}
	if len(files) == 0 {
		log.Fatalf("FATAL: No bar CSV files found in %s", *barsDir)
	}

	feed, err := csvfeed.New(csvfeed.Config{Files: files, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to load replay feed: %v", err)
	}

	store, err := sqlite.NewStore(sqlite.Config{DBPath: *dbPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to open signal store: %v", err)
	}
	defer store.Close()

	clock, err := session.NewClock(cfg.Calendar)
	if err != nil {
		log.Fatalf("FATAL: Failed to build session clock: %v", err)
	}

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
		log.Fatalf("FATAL: Failed to initialize rule engine: %v", err)
	}

	watchlist := make([]domain.WatchlistEntry, 0, len(files))
	for _, symbol := range feed.Symbols() {
		watchlist = append(watchlist, domain.WatchlistEntry{Symbol: symbol})
	}

	runID := "replay-" + uuid.NewString()
	svc, err := app.NewSignalService(app.Config{
		TickInterval:         *tick,
		MaxConcurrentFetches: cfg.MaxConcurrentFetches,
		RetryAttempts:        1, // recorded data, nothing transient to retry
		FailureThreshold:     cfg.FailureThreshold,
		WarmupLookback:       cfg.WarmupLookback,
		PersistAnalysis:      cfg.PersistAnalysis,
	}, appLogger, feed, store, indicators, ruleEngine, clock, runID, watchlist)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize signal service: %v", err)
	}

	first, last, ok := feed.TimeRange()
	if !ok {
		log.Fatalf("FATAL: Replay feed holds no bars")
	}
	appLogger.Info(ctx, "Starting replay", map[string]interface{}{
		"runID":   runID,
		"symbols": len(watchlist),
		"from":    first.Format(time.RFC3339),
		"to":      last.Format(time.RFC3339),
		"tick":    tick.String(),
	})

	// Walk the recorded timeline. ProcessTick skips ticks that fall outside
	// the session's processing phases, same as live operation.
	ticks := 0
	for now := first; !now.After(last.Add(*tick)); now = now.Add(*tick) {
		svc.ProcessTick(ctx, now)
		ticks++
	}
	svc.EndSession(ctx, last)

	signals, err := store.FindAll(ctx)
	if err != nil {
		log.Fatalf("FATAL: Failed to read back signals: %v", err)
	}
	appLogger.Info(ctx, "Replay finished", map[string]interface{}{
		"ticks":   ticks,
		"signals": len(signals),
	})

	if err := analytics.WriteReport(os.Stdout, analytics.Summarize(signals)); err != nil {
		log.Fatalf("FATAL: Failed to render report: %v", err)
	}
	for symbol, reason := range svc.SuspendedSymbols() {
		fmt.Printf("suspended: %s (%s)\n", symbol, reason)
	}
}

// findBarFiles maps SYMBOL -> path for every <SYMBOL>.csv in dir.
func findBarFiles(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".csv") {
			continue
		}
		symbol := strings.ToUpper(strings.TrimSuffix(name, ".csv"))
		files[symbol] = filepath.Join(dir, name)
	}
	return files, nil
}
