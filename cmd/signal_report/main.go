package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"stockSignalBot/internal/adapters/logger"
	"stockSignalBot/internal/adapters/sqlite"
	"stockSignalBot/internal/analytics"
	"stockSignalBot/internal/domain"
	"stockSignalBot/internal/utils"
)

// signal_report summarises the signals a store holds: counts per
// classification, per-symbol activity and the rules that fired most. With
// -symbol it narrows to one symbol; -csv exports the raw rows for spreadsheets.
func main() {
	dbPath := flag.String("db", "data/signals.db", "SQLite signal store to report on")
	symbol := flag.String("symbol", "", "restrict the report to one symbol")
	limit := flag.Int("limit", 0, "with -symbol, cap at the N most recent signals (0 = all)")
	csvPath := flag.String("csv", "", "also export the selected signals to this CSV file")
	flag.Parse()

	appLogger := logger.NewStdLogger(logger.LevelWarn)
	ctx := context.Background()

	if _, err := os.Stat(*dbPath); err != nil {
		log.Fatalf("FATAL: Signal store %s not found: %v", *dbPath, err)
	}
	store, err := sqlite.NewStore(sqlite.Config{DBPath: *dbPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to open signal store: %v", err)
	}
	defer store.Close()

	var signals []*domain.Signal
	if *symbol != "" {
		n := *limit
		if n <= 0 {
			n = 10000
		}
		signals, err = store.FindBySymbol(ctx, *symbol, n)
	} else {
		signals, err = store.FindAll(ctx)
	}
	if err != nil {
		log.Fatalf("FATAL: Failed to read signals: %v", err)
	}

	if err := analytics.WriteReport(os.Stdout, analytics.Summarize(signals)); err != nil {
		log.Fatalf("FATAL: Failed to render report: %v", err)
	}

	if *csvPath != "" {
		if err := utils.WriteSignalsToCSV(signals, *csvPath); err != nil {
			log.Fatalf("FATAL: Failed to export CSV: %v", err)
		}
		fmt.Printf("\nExported %d signals to %s\n", len(signals), *csvPath)
	}
}
