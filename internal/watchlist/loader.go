package watchlist

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"stockSignalBot/internal/domain"
	"stockSignalBot/internal/ports"
)

// Loader reads the watch-list produced by the pre-market selection step.
// Two formats are supported: the JSON summary file written by the screener
// (an array of symbol/score/signals rows) and a plain CSV fallback with a
// symbol,score header. Entries are sorted by score descending and truncated
// to MaxSymbols.
type Loader struct {
	// MaxSymbols caps the list; zero means no cap.
	MaxSymbols int
	logger     ports.Logger
}

func NewLoader(maxSymbols int, logger ports.Logger) (*Loader, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for watchlist loader")
	}
	if maxSymbols < 0 {
		return nil, fmt.Errorf("%w: MaxSymbols must not be negative", ports.ErrConfigurationError)
	}
	return &Loader{MaxSymbols: maxSymbols, logger: logger}, nil
}

// Load reads the watch-list file at path, picking the parser by extension.
func (l *Loader) Load(ctx context.Context, path string) ([]domain.WatchlistEntry, error) {
	const op = "watchlist.Loader.Load"

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w: %s", op, ports.ErrNotFound, path)
		}
		return nil, fmt.Errorf("%s: opening %s: %w", op, path, err)
	}
	defer f.Close()

	var entries []domain.WatchlistEntry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		entries, err = parseJSON(f)
	case ".csv":
		entries, err = parseCSV(f)
	default:
		return nil, fmt.Errorf("%s: %w: unsupported watchlist format %q", op, ports.ErrInvalidRequest, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: parsing %s: %w", op, path, err)
	}

	entries = l.rank(entries)
	l.logger.Info(ctx, "Watchlist loaded", map[string]interface{}{
		"path":    path,
		"symbols": len(entries),
	})
	return entries, nil
}

// rank deduplicates by symbol (highest score wins), sorts by score descending
// with symbol as the tiebreaker, and applies the cap.
func (l *Loader) rank(entries []domain.WatchlistEntry) []domain.WatchlistEntry {
	best := make(map[string]domain.WatchlistEntry, len(entries))
	for _, e := range entries {
		sym := strings.ToUpper(strings.TrimSpace(e.Symbol))
		if sym == "" {
			continue
		}
		e.Symbol = sym
		if prev, ok := best[sym]; !ok || e.Score > prev.Score {
			best[sym] = e
		}
	}

	ranked := make([]domain.WatchlistEntry, 0, len(best))
	for _, e := range best {
		ranked = append(ranked, e)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Symbol < ranked[j].Symbol
	})

	if l.MaxSymbols > 0 && len(ranked) > l.MaxSymbols {
		ranked = ranked[:l.MaxSymbols]
	}
	return ranked
}

func parseJSON(r io.Reader) ([]domain.WatchlistEntry, error) {
	var entries []domain.WatchlistEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decoding json: %w", err)
	}
	return entries, nil
}

func parseCSV(r io.Reader) ([]domain.WatchlistEntry, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	symbolIdx, scoreIdx := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "symbol":
			symbolIdx = i
		case "score":
			scoreIdx = i
		}
	}
	if symbolIdx < 0 {
		return nil, fmt.Errorf("csv header missing symbol column")
	}

	var entries []domain.WatchlistEntry
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv line %d: %w", line, err)
		}
		entry := domain.WatchlistEntry{Symbol: record[symbolIdx]}
		if scoreIdx >= 0 && scoreIdx < len(record) {
			score, err := strconv.ParseFloat(strings.TrimSpace(record[scoreIdx]), 64)
			if err != nil {
				return nil, fmt.Errorf("csv line %d: parsing score: %w", line, err)
			}
			entry.Score = score
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
