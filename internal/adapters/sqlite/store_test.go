package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"stockSignalBot/internal/domain"

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

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) (*Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "signal-store-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	store, err := NewStore(Config{
		DBPath: dbPath,
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}

	return store, cleanup
}

func testSignal(symbol string, ts time.Time, c domain.Classification) *domain.Signal {
	return &domain.Signal{
		RunID:          "run-1",
		Symbol:         symbol,
		Timestamp:      ts,
		Classification: c,
		Strength:       0.4,
		Reasons:        []string{"MACD bullish crossover", "Bullish MA alignment"},
		Basis: domain.IndicatorSnapshot{
			Symbol:      symbol,
			Timestamp:   ts,
			Close:       101.5,
			SMAShort:    100.2,
			SMALong:     99.1,
			RSI:         55.0,
			MACD:        0.4,
			MACDSignal:  0.1,
			MACDHist:    0.3,
			VolumeRatio: 1.7,
			Momentum:    1.2,
			WarmedUp:    true,
		},
	}
}

func TestStore_AppendAndLastSignal(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	ts := time.Date(2025, 3, 4, 15, 30, 0, 0, time.UTC)
	sig := testSignal("TQQQ", ts, domain.SignalBuy)
	require.NoError(t, store.Append(ctx, sig))
	assert.NotZero(t, sig.ID)

	got, err := store.LastSignal(ctx, "TQQQ")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sig.ID, got.ID)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, domain.SignalBuy, got.Classification)
	assert.True(t, got.Timestamp.Equal(ts))
	assert.Equal(t, sig.Reasons, got.Reasons)
	assert.InDelta(t, 0.4, got.Strength, 1e-9)
	assert.InDelta(t, 101.5, got.Basis.Close, 1e-9)
	assert.InDelta(t, 55.0, got.Basis.RSI, 1e-9)
}

func TestStore_AppendIsIdempotent(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	ts := time.Date(2025, 3, 4, 15, 30, 0, 0, time.UTC)
	first := testSignal("TQQQ", ts, domain.SignalBuy)
	require.NoError(t, store.Append(ctx, first))

	// Same dedupe key; repeated delivery must not create a second row.
	retry := testSignal("TQQQ", ts, domain.SignalBuy)
	require.NoError(t, store.Append(ctx, retry))

	all, err := store.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// Different classification at the same timestamp is a distinct record.
	flipped := testSignal("TQQQ", ts, domain.SignalSell)
	require.NoError(t, store.Append(ctx, flipped))

	all, err = store.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_LastSignalNoHistory(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	got, err := store.LastSignal(context.Background(), "TQQQ")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_LastSignalPicksNewest(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2025, 3, 4, 11, 0, 0, 0, time.UTC)
	require.NoError(t, store.Append(ctx, testSignal("TQQQ", base, domain.SignalHold)))
	require.NoError(t, store.Append(ctx, testSignal("TQQQ", base.Add(30*time.Minute), domain.SignalBuy)))
	require.NoError(t, store.Append(ctx, testSignal("TQQQ", base.Add(10*time.Minute), domain.SignalSell)))

	got, err := store.LastSignal(ctx, "TQQQ")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.SignalBuy, got.Classification)
}

func TestStore_FindBySymbol(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2025, 3, 4, 11, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		sig := testSignal("TQQQ", base.Add(time.Duration(i)*time.Hour), domain.SignalHold)
		require.NoError(t, store.Append(ctx, sig))
	}
	require.NoError(t, store.Append(ctx, testSignal("AAPL", base, domain.SignalBuy)))

	got, err := store.FindBySymbol(ctx, "TQQQ", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Newest first.
	assert.True(t, got[0].Timestamp.After(got[1].Timestamp))
	assert.True(t, got[1].Timestamp.After(got[2].Timestamp))
	for _, sig := range got {
		assert.Equal(t, "TQQQ", sig.Symbol)
	}
}

func TestStore_FindAllOrdersByTimestamp(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2025, 3, 4, 11, 0, 0, 0, time.UTC)
	require.NoError(t, store.Append(ctx, testSignal("TQQQ", base.Add(time.Hour), domain.SignalBuy)))
	require.NoError(t, store.Append(ctx, testSignal("AAPL", base, domain.SignalSell)))

	all, err := store.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "AAPL", all[0].Symbol)
	assert.Equal(t, "TQQQ", all[1].Symbol)
}

func TestStore_CountToday(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.Append(ctx, testSignal("TQQQ", now, domain.SignalBuy)))
	require.NoError(t, store.Append(ctx, testSignal("TQQQ", now.Add(-time.Minute), domain.SignalSell)))
	require.NoError(t, store.Append(ctx, testSignal("TQQQ", now.AddDate(0, 0, -2), domain.SignalHold)))

	count, err := store.CountToday(ctx, "TQQQ")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestStore_AppendAnalysis(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	snap := testSignal("TQQQ", time.Date(2025, 3, 4, 11, 0, 0, 0, time.UTC), domain.SignalHold).Basis
	snap.BarCount = 55
	require.NoError(t, store.AppendAnalysis(ctx, "run-1", &snap))
	// Snapshots are not deduplicated.
	require.NoError(t, store.AppendAnalysis(ctx, "run-1", &snap))

	var count int
	err := store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analysis_snapshots`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
