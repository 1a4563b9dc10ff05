package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockSignalBot/internal/domain"
)

func sig(symbol string, ts time.Time, class domain.Classification, strength float64, reasons ...string) *domain.Signal {
	return &domain.Signal{
		RunID:          "run-1",
		Symbol:         symbol,
		Timestamp:      ts,
		Classification: class,
		Strength:       strength,
		Reasons:        reasons,
	}
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil)
	require.NotNil(t, summary)
	assert.Zero(t, summary.TotalSignals)
	assert.Empty(t, summary.Symbols)
	assert.Zero(t, summary.AverageStrength)
}

func TestSummarizeAggregates(t *testing.T) {
	base := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	signals := []*domain.Signal{
		sig("AAPL", base, domain.SignalBuy, 0.6, "MACD bullish crossover"),
		sig("AAPL", base.Add(30*time.Minute), domain.SignalHold, 0.0),
		sig("AAPL", base.Add(time.Hour), domain.SignalSell, 0.4, "RSI overbought"),
		sig("TSLA", base.Add(10*time.Minute), domain.SignalBuy, 0.8, "MACD bullish crossover", "Volume surge"),
	}

	summary := Summarize(signals)

	assert.Equal(t, 4, summary.TotalSignals)
	assert.Equal(t, 2, summary.Counts[domain.SignalBuy])
	assert.Equal(t, 1, summary.Counts[domain.SignalSell])
	assert.Equal(t, 1, summary.Counts[domain.SignalHold])
	assert.InDelta(t, 0.45, summary.AverageStrength, 1e-9)
	assert.Equal(t, base, summary.FirstSignal)
	assert.Equal(t, base.Add(time.Hour), summary.LastSignal)
	assert.Equal(t, 2, summary.ReasonCounts["MACD bullish crossover"])

	require.Len(t, summary.Symbols, 2)
	aapl := summary.Symbols["AAPL"]
	require.NotNil(t, aapl)
	assert.Equal(t, 3, aapl.Total)
	assert.Equal(t, 1, aapl.Flips) // BUY -> (HOLD) -> SELL is one reversal
	assert.InDelta(t, 0.6, aapl.MaxStrength, 1e-9)
	assert.Equal(t, domain.SignalSell, aapl.Last.Classification)

	tsla := summary.Symbols["TSLA"]
	require.NotNil(t, tsla)
	assert.Zero(t, tsla.Flips)
}

func TestSummarizeOrdersOutOfOrderInput(t *testing.T) {
	base := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	signals := []*domain.Signal{
		sig("AAPL", base.Add(time.Hour), domain.SignalBuy, 0.5),
		sig("AAPL", base, domain.SignalSell, 0.5),
	}

	summary := Summarize(signals)

	// Input slice must stay untouched.
	assert.Equal(t, base.Add(time.Hour), signals[0].Timestamp)

	assert.Equal(t, base, summary.FirstSignal)
	aapl := summary.Symbols["AAPL"]
	require.NotNil(t, aapl)
	assert.Equal(t, 1, aapl.Flips) // SELL then BUY in timestamp order
	assert.Equal(t, domain.SignalBuy, aapl.Last.Classification)
}

func TestSortedSymbols(t *testing.T) {
	base := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	summary := Summarize([]*domain.Signal{
		sig("MSFT", base, domain.SignalHold, 0),
		sig("AAPL", base, domain.SignalHold, 0),
		sig("AAPL", base.Add(time.Minute), domain.SignalBuy, 0.4),
	})

	sorted := summary.SortedSymbols()
	require.Len(t, sorted, 2)
	assert.Equal(t, "AAPL", sorted[0].Symbol)
	assert.Equal(t, "MSFT", sorted[1].Symbol)
}

func TestTopReasons(t *testing.T) {
	base := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	summary := Summarize([]*domain.Signal{
		sig("AAPL", base, domain.SignalBuy, 0.4, "A", "B"),
		sig("AAPL", base.Add(time.Minute), domain.SignalBuy, 0.4, "B"),
		sig("AAPL", base.Add(2*time.Minute), domain.SignalSell, 0.4, "C"),
	})

	top := summary.TopReasons(2)
	require.Len(t, top, 2)
	assert.Equal(t, ReasonCount{Reason: "B", Count: 2}, top[0])
	assert.Equal(t, ReasonCount{Reason: "A", Count: 1}, top[1])

	all := summary.TopReasons(0)
	assert.Len(t, all, 3)
}
