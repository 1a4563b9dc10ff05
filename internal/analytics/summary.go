package analytics

import (
	"sort"
	"time"

	"stockSignalBot/internal/domain"
)

// SessionSummary holds aggregate statistics for a set of emitted signals,
// typically one engine run or one trading day.
type SessionSummary struct {
	TotalSignals    int
	Counts          map[domain.Classification]int
	AverageStrength float64
	FirstSignal     time.Time
	LastSignal      time.Time
	ReasonCounts    map[string]int
	Symbols         map[string]*SymbolSummary
}

// SymbolSummary holds per-symbol statistics.
type SymbolSummary struct {
	Symbol      string
	Total       int
	Counts      map[domain.Classification]int
	Flips       int // direct BUY<->SELL reversals, ignoring interleaved HOLDs
	MaxStrength float64
	Last        *domain.Signal
}

// ReasonCount pairs a rule description with how often it contributed to a signal.
type ReasonCount struct {
	Reason string
	Count  int
}

// Summarize computes session statistics from emitted signals. The input is not
// modified; signals are processed in timestamp order.
func Summarize(signals []*domain.Signal) *SessionSummary {
	summary := &SessionSummary{
		Counts:       make(map[domain.Classification]int),
		ReasonCounts: make(map[string]int),
		Symbols:      make(map[string]*SymbolSummary),
	}

	if len(signals) == 0 {
		return summary
	}

	ordered := make([]*domain.Signal, len(signals))
	copy(ordered, signals)
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		}
		return ordered[i].Symbol < ordered[j].Symbol
	})

	summary.FirstSignal = ordered[0].Timestamp
	summary.LastSignal = ordered[len(ordered)-1].Timestamp

	// lastDirection tracks the most recent non-HOLD classification per symbol
	// so a BUY followed (possibly via HOLDs) by a SELL counts as one flip.
	lastDirection := make(map[string]domain.Classification)
	var totalStrength float64

	for _, sig := range ordered {
		summary.TotalSignals++
		summary.Counts[sig.Classification]++
		totalStrength += sig.Strength

		for _, reason := range sig.Reasons {
			summary.ReasonCounts[reason]++
		}

		sym := summary.Symbols[sig.Symbol]
		if sym == nil {
			sym = &SymbolSummary{
				Symbol: sig.Symbol,
				Counts: make(map[domain.Classification]int),
			}
			summary.Symbols[sig.Symbol] = sym
		}
		sym.Total++
		sym.Counts[sig.Classification]++
		if sig.Strength > sym.MaxStrength {
			sym.MaxStrength = sig.Strength
		}
		sym.Last = sig

		if sig.Classification != domain.SignalHold {
			if prev, ok := lastDirection[sig.Symbol]; ok && prev != sig.Classification {
				sym.Flips++
			}
			lastDirection[sig.Symbol] = sig.Classification
		}
	}

	summary.AverageStrength = totalStrength / float64(summary.TotalSignals)
	return summary
}

// SortedSymbols returns per-symbol summaries ordered by signal count
// descending, ties broken alphabetically.
func (s *SessionSummary) SortedSymbols() []*SymbolSummary {
	out := make([]*SymbolSummary, 0, len(s.Symbols))
	for _, sym := range s.Symbols {
		out = append(out, sym)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// TopReasons returns the n most frequent rule reasons, ordered by count
// descending, ties broken alphabetically. n <= 0 returns all of them.
func (s *SessionSummary) TopReasons(n int) []ReasonCount {
	out := make([]ReasonCount, 0, len(s.ReasonCounts))
	for reason, count := range s.ReasonCounts {
		out = append(out, ReasonCount{Reason: reason, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
