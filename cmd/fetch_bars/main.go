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

	"stockSignalBot/config"
	"stockSignalBot/internal/adapters/alpaca"
	"stockSignalBot/internal/adapters/logger"
	"stockSignalBot/internal/utils"
)

// fetch_bars downloads historical bars for a set of symbols and writes one
// <SYMBOL>.csv per symbol, in the layout cmd/replay_bars consumes.
func main() {
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols, e.g. AAPL,TSLA")
	days := flag.Int("days", 5, "how many days back to fetch")
	outDir := flag.String("out-dir", "data/bars", "directory to write <SYMBOL>.csv files into")
	flag.Parse()

	if *symbolsFlag == "" {
		log.Fatalf("FATAL: -symbols is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	feed, err := alpaca.New(alpaca.Config{
		BaseURL:   cfg.FeedBaseURL,
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		Timeframe: cfg.BarTimeframe,
		Feed:      cfg.FeedTier,
		Timeout:   cfg.FeedTimeout,
		Logger:    appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize market data feed: %v", err)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("FATAL: Failed to create %s: %v", *outDir, err)
	}

	since := time.Now().AddDate(0, 0, -*days)
	for _, raw := range strings.Split(*symbolsFlag, ",") {
		symbol := strings.ToUpper(strings.TrimSpace(raw))
		if symbol == "" {
			continue
		}

		fmt.Printf("Fetching %s bars for %s since %s...\n", cfg.BarTimeframe, symbol, since.Format("2006-01-02"))
		bars, err := feed.GetBars(ctx, symbol, since)
		if err != nil {
			appLogger.Error(ctx, err, "Error fetching bars", map[string]interface{}{"symbol": symbol})
			log.Fatalf("Error fetching bars for %s: %v", symbol, err)
		}
		appLogger.Info(ctx, "Fetched bars", map[string]interface{}{"symbol": symbol, "count": len(bars)})

		filename := filepath.Join(*outDir, symbol+".csv")
		if err := utils.WriteBarsToCSV(bars, filename); err != nil {
			log.Fatalf("Error writing %s: %v", filename, err)
		}
		appLogger.Info(ctx, "Saved bars", map[string]interface{}{"filename": filename})
	}
}
