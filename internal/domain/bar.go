package domain

import (
	"fmt"
	"time"
)

// Bar represents a single OHLCV observation for a symbol.
type Bar struct {
	Symbol    string    // Trading symbol (e.g., "TQQQ")
	Timestamp time.Time // Start time of the aggregation interval
	Open      float64   // Opening price
	High      float64   // Highest price
	Low       float64   // Lowest price
	Close     float64   // Closing price
	Volume    float64   // Trading volume
}

// Validate checks that the bar is internally consistent. Feed adapters call
// this at the boundary so that malformed bars never reach the engine.
func (b *Bar) Validate() error {
	if b.Symbol == "" {
		return fmt.Errorf("bar has empty symbol")
	}
	if b.Timestamp.IsZero() {
		return fmt.Errorf("bar for %s has zero timestamp", b.Symbol)
	}
	if b.Open < 0 || b.High < 0 || b.Low < 0 || b.Close < 0 {
		return fmt.Errorf("bar for %s at %s has negative price", b.Symbol, b.Timestamp.Format(time.RFC3339))
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar for %s at %s has negative volume", b.Symbol, b.Timestamp.Format(time.RFC3339))
	}
	maxOC := b.Open
	if b.Close > maxOC {
		maxOC = b.Close
	}
	minOC := b.Open
	if b.Close < minOC {
		minOC = b.Close
	}
	if b.High < maxOC {
		return fmt.Errorf("bar for %s at %s has high %.4f below max(open, close) %.4f",
			b.Symbol, b.Timestamp.Format(time.RFC3339), b.High, maxOC)
	}
	if b.Low > minOC {
		return fmt.Errorf("bar for %s at %s has low %.4f above min(open, close) %.4f",
			b.Symbol, b.Timestamp.Format(time.RFC3339), b.Low, minOC)
	}
	return nil
}
