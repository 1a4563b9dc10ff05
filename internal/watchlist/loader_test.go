package watchlist

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"stockSignalBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadJSON(t *testing.T) {
	l, err := NewLoader(0, &mockLogger{})
	require.NoError(t, err)

	path := writeFile(t, "latest_analysis.json", `[
		{"symbol": "aapl", "score": 3.5, "signals": ["High previous day volume"]},
		{"symbol": "TQQQ", "score": 7.0},
		{"symbol": "MSFT", "score": 5.25}
	]`)

	entries, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Sorted by score descending, symbols normalized to upper case.
	assert.Equal(t, "TQQQ", entries[0].Symbol)
	assert.Equal(t, "MSFT", entries[1].Symbol)
	assert.Equal(t, "AAPL", entries[2].Symbol)
	assert.Equal(t, []string{"High previous day volume"}, entries[2].Reasons)
}

func TestLoadCSV(t *testing.T) {
	l, err := NewLoader(0, &mockLogger{})
	require.NoError(t, err)

	path := writeFile(t, "watchlist.csv", "symbol,score\nTQQQ,7.0\nAAPL,3.5\n")

	entries, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "TQQQ", entries[0].Symbol)
	assert.InDelta(t, 7.0, entries[0].Score, 1e-9)
}

func TestLoadTruncatesToMaxSymbols(t *testing.T) {
	l, err := NewLoader(2, &mockLogger{})
	require.NoError(t, err)

	path := writeFile(t, "watchlist.json", `[
		{"symbol": "A", "score": 1},
		{"symbol": "B", "score": 3},
		{"symbol": "C", "score": 2}
	]`)

	entries, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "B", entries[0].Symbol)
	assert.Equal(t, "C", entries[1].Symbol)
}

func TestLoadDeduplicatesSymbols(t *testing.T) {
	l, err := NewLoader(0, &mockLogger{})
	require.NoError(t, err)

	path := writeFile(t, "watchlist.json", `[
		{"symbol": "TQQQ", "score": 2},
		{"symbol": "tqqq", "score": 5},
		{"symbol": " ", "score": 9}
	]`)

	entries, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "TQQQ", entries[0].Symbol)
	assert.InDelta(t, 5.0, entries[0].Score, 1e-9)
}

func TestLoadErrors(t *testing.T) {
	l, err := NewLoader(0, &mockLogger{})
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("missing file", func(t *testing.T) {
		_, err := l.Load(ctx, filepath.Join(t.TempDir(), "nope.json"))
		assert.True(t, errors.Is(err, ports.ErrNotFound))
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := writeFile(t, "watchlist.yaml", "symbol: TQQQ")
		_, err := l.Load(ctx, path)
		assert.True(t, errors.Is(err, ports.ErrInvalidRequest))
	})

	t.Run("malformed json", func(t *testing.T) {
		path := writeFile(t, "watchlist.json", "{not json")
		_, err := l.Load(ctx, path)
		assert.Error(t, err)
	})

	t.Run("csv missing symbol column", func(t *testing.T) {
		path := writeFile(t, "watchlist.csv", "ticker,score\nTQQQ,1\n")
		_, err := l.Load(ctx, path)
		assert.Error(t, err)
	})
}

func TestNewLoaderValidation(t *testing.T) {
	_, err := NewLoader(-1, &mockLogger{})
	assert.True(t, errors.Is(err, ports.ErrConfigurationError))

	_, err = NewLoader(5, nil)
	assert.Error(t, err)
}
