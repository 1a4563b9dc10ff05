package ports

import (
	"context"

	"stockSignalBot/internal/domain"
)

// SignalStore is the durable, append-only sink for emitted signals and
// periodic analysis snapshots.
type SignalStore interface {
	// Append persists a signal. It is idempotent under at-least-once
	// delivery: re-appending a signal with the same
	// (symbol, timestamp, classification) key is a no-op, not an error.
	Append(ctx context.Context, sig *domain.Signal) error
	// LastSignal retrieves the most recent signal emitted for a symbol,
	// used to rebuild dedupe state after a restart.
	// Returns nil, nil when the symbol has no emission history.
	LastSignal(ctx context.Context, symbol string) (*domain.Signal, error)
	// FindBySymbol retrieves the most recent signals for a symbol, newest
	// first, up to limit.
	FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Signal, error)
	// FindAll retrieves every stored signal ordered by timestamp.
	FindAll(ctx context.Context) ([]*domain.Signal, error)
	// CountToday counts signals stored today for a symbol.
	CountToday(ctx context.Context, symbol string) (int, error)
	// AppendAnalysis persists a periodic indicator snapshot for later
	// inspection. Not deduplicated; snapshots are cheap diagnostics.
	AppendAnalysis(ctx context.Context, runID string, snap *domain.IndicatorSnapshot) error
}
