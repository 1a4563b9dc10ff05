package domain

import "time"

// Signal is one emitted classification for a symbol. Immutable once created.
// A new Signal exists only when the classification changed from the previous
// one, or the re-affirmation interval elapsed with the same classification.
type Signal struct {
	ID             int64          // Assigned by the store
	RunID          string         // Identifies the engine run that produced it
	Symbol         string         // Trading symbol
	Timestamp      time.Time      // Timestamp of the bar that triggered it
	Classification Classification // BUY, SELL or HOLD
	Strength       float64        // Fired votes over total rules, 0..1
	Reasons        []string       // Human-readable descriptions of fired rules
	Basis          IndicatorSnapshot
}

// SameClassification reports whether other carries the same classification for
// the same symbol. Used for deduplication; nil counts as different.
func (s *Signal) SameClassification(other *Signal) bool {
	if s == nil || other == nil {
		return false
	}
	return s.Symbol == other.Symbol && s.Classification == other.Classification
}
