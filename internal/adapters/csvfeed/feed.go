package csvfeed

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stockSignalBot/internal/domain"
	"stockSignalBot/internal/ports"
	"stockSignalBot/internal/utils"
)

// Feed replays recorded bar CSV files through the ports.MarketDataFeed
// interface. Each GetBars call serves the next batch of bars after the
// caller's cursor, so the orchestrator drives a replay exactly like a live
// feed. Used by cmd/replay_bars and tests.
type Feed struct {
	bars      map[string][]*domain.Bar // ascending by timestamp per symbol
	batchSize int
	logger    ports.Logger
}

// Config holds configuration for the replay feed.
type Config struct {
	// Files maps a symbol to its recorded bar CSV. Rows for other symbols
	// inside a file are ignored.
	Files map[string]string
	// BatchSize caps bars returned per GetBars call; zero means all at once.
	BatchSize int
	Logger    ports.Logger
}

// New loads every configured file up front so replay never touches the disk
// mid-session.
func New(cfg Config) (*Feed, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for CSV feed")
	}
	if len(cfg.Files) == 0 {
		return nil, fmt.Errorf("%w: replay feed requires at least one file", ports.ErrConfigurationError)
	}
	if cfg.BatchSize < 0 {
		return nil, fmt.Errorf("%w: BatchSize must not be negative", ports.ErrConfigurationError)
	}

	feed := &Feed{
		bars:      make(map[string][]*domain.Bar, len(cfg.Files)),
		batchSize: cfg.BatchSize,
		logger:    cfg.Logger,
	}

	for symbol, path := range cfg.Files {
		rows, err := utils.ReadBarsFromCSV(path)
		if err != nil {
			return nil, fmt.Errorf("loading bars for %s from %s: %w", symbol, path, err)
		}

		var kept []*domain.Bar
		dropped := 0
		for _, bar := range rows {
			if bar.Symbol != symbol {
				continue
			}
			if err := bar.Validate(); err != nil {
				dropped++
				continue
			}
			kept = append(kept, bar)
		}
		sort.Slice(kept, func(i, j int) bool {
			return kept[i].Timestamp.Before(kept[j].Timestamp)
		})
		feed.bars[symbol] = dedupe(kept)

		cfg.Logger.Info(context.Background(), "Replay bars loaded", map[string]interface{}{
			"symbol":  symbol,
			"path":    path,
			"bars":    len(feed.bars[symbol]),
			"dropped": dropped,
		})
	}

	return feed, nil
}

// dedupe removes repeated timestamps, keeping the first occurrence.
func dedupe(bars []*domain.Bar) []*domain.Bar {
	out := bars[:0]
	var last time.Time
	for _, bar := range bars {
		if !last.IsZero() && !bar.Timestamp.After(last) {
			continue
		}
		out = append(out, bar)
		last = bar.Timestamp
	}
	return out
}

// GetBars returns up to BatchSize recorded bars for symbol strictly after
// since, ascending. A symbol with no recorded file is unknown to the feed.
func (f *Feed) GetBars(ctx context.Context, symbol string, since time.Time) ([]*domain.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("GetBars canceled: %w: %w", ports.ErrContextCanceled, err)
	}

	recorded, ok := f.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("GetBars failed: %w: no recorded bars for %s", ports.ErrInvalidSymbol, symbol)
	}

	// First bar after the cursor.
	start := sort.Search(len(recorded), func(i int) bool {
		return recorded[i].Timestamp.After(since)
	})
	remaining := recorded[start:]
	if len(remaining) == 0 {
		return nil, nil
	}
	if f.batchSize > 0 && len(remaining) > f.batchSize {
		remaining = remaining[:f.batchSize]
	}

	out := make([]*domain.Bar, len(remaining))
	copy(out, remaining)
	return out, nil
}

// Symbols lists the symbols the feed can replay.
func (f *Feed) Symbols() []string {
	symbols := make([]string, 0, len(f.bars))
	for symbol := range f.bars {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// TimeRange returns the first and last recorded bar timestamps across every
// symbol. ok is false when the feed holds no bars at all.
func (f *Feed) TimeRange() (first, last time.Time, ok bool) {
	for _, recorded := range f.bars {
		if len(recorded) == 0 {
			continue
		}
		if !ok || recorded[0].Timestamp.Before(first) {
			first = recorded[0].Timestamp
		}
		if !ok || recorded[len(recorded)-1].Timestamp.After(last) {
			last = recorded[len(recorded)-1].Timestamp
		}
		ok = true
	}
	return first, last, ok
}

// Exhausted reports whether every recorded bar for symbol is at or before the
// cursor.
func (f *Feed) Exhausted(symbol string, since time.Time) bool {
	recorded := f.bars[symbol]
	return len(recorded) == 0 || !recorded[len(recorded)-1].Timestamp.After(since)
}
