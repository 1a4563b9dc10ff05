package ports

import (
	"context"
	"time"

	"stockSignalBot/internal/domain"
)

// MarketDataFeed is the narrow interface the engine requires from the market
// data vendor. Implementations must return bars in strictly increasing
// timestamp order, all strictly after since, and must never return a bar that
// fails domain validation; malformed bars are dropped and counted at the
// boundary. Errors are wrapped with the sentinel errors in this package so the
// caller can distinguish transient from fatal failures.
type MarketDataFeed interface {
	// GetBars retrieves intraday bars for symbol newer than since.
	// An empty slice with a nil error means no new data yet.
	GetBars(ctx context.Context, symbol string, since time.Time) ([]*domain.Bar, error)
}
