package domain

import "time"

// WatchlistEntry is one candidate produced by the pre-market selection query.
// The engine treats entries as read-only input and never re-ranks them.
type WatchlistEntry struct {
	Symbol     string    `json:"symbol"`
	Score      float64   `json:"score"`
	Reasons    []string  `json:"signals,omitempty"` // screener notes, e.g. "High previous day volume"
	AdmittedAt time.Time `json:"admitted_at,omitempty"`
}
