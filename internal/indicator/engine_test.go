package indicator

import (
	"context"
	"errors"
	"testing"
	"time"

	"stockSignalBot/internal/domain"
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

func testConfig() Config {
	return Config{
		EMAFastPeriod:    2,
		EMASlowPeriod:    3,
		MACDSignalPeriod: 2,
		RSIPeriod:        3,
		SMAShortPeriod:   3,
		SMALongPeriod:    5,
		VolumePeriod:     3,
		MomentumPeriod:   2,
	}
}

func barAt(symbol string, ts time.Time, close, volume float64) *domain.Bar {
	return &domain.Bar{
		Symbol:    symbol,
		Timestamp: ts,
		Open:      close,
		High:      close,
		Low:       close,
		Close:     close,
		Volume:    volume,
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "zero period", mutate: func(c *Config) { c.RSIPeriod = 0 }, wantErr: true},
		{name: "fast EMA not below slow", mutate: func(c *Config) { c.EMAFastPeriod = 3 }, wantErr: true},
		{name: "short SMA not below long", mutate: func(c *Config) { c.SMAShortPeriod = 5 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			e, err := New(cfg, &mockLogger{})
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ports.ErrConfigurationError))
			} else {
				require.NoError(t, err)
				assert.NotNil(t, e)
			}
		})
	}

	t.Run("nil logger", func(t *testing.T) {
		_, err := New(testConfig(), nil)
		assert.Error(t, err)
	})
}

func TestUpdateWarmsUp(t *testing.T) {
	e, err := New(testConfig(), &mockLogger{})
	require.NoError(t, err)

	base := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)
	closes := []float64{100, 101, 102, 101, 103, 104, 103}

	var snap domain.IndicatorSnapshot
	for i, c := range closes {
		snap, err = e.Update("TQQQ", barAt("TQQQ", base.Add(time.Duration(i)*time.Minute), c, 1000))
		require.NoError(t, err)
		assert.Equal(t, i+1, snap.BarCount)
	}

	// Slowest requirement for testConfig: slow EMA (3) + signal (2) = 5 bars,
	// long SMA 5 bars. Bar 7 is comfortably warmed up.
	assert.True(t, snap.WarmedUp)
	assert.NotZero(t, snap.RSI)
	assert.NotZero(t, snap.SMAShort)
	assert.NotZero(t, snap.SMALong)
	assert.InDelta(t, 1.0, snap.VolumeRatio, 1e-9) // constant volume
	assert.InDelta(t, closes[6]-closes[4], snap.Momentum, 1e-9)

	t.Run("early snapshots are not warmed up", func(t *testing.T) {
		e2, err := New(testConfig(), &mockLogger{})
		require.NoError(t, err)
		s, err := e2.Update("X", barAt("X", base, 100, 1000))
		require.NoError(t, err)
		assert.False(t, s.WarmedUp)
	})
}

func TestUpdateRejectsStaleBars(t *testing.T) {
	e, err := New(testConfig(), &mockLogger{})
	require.NoError(t, err)

	base := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)
	_, err = e.Update("TQQQ", barAt("TQQQ", base, 100, 1000))
	require.NoError(t, err)

	t.Run("duplicate timestamp", func(t *testing.T) {
		_, err := e.Update("TQQQ", barAt("TQQQ", base, 101, 1000))
		assert.ErrorIs(t, err, ErrStaleBar)
	})

	t.Run("earlier timestamp", func(t *testing.T) {
		_, err := e.Update("TQQQ", barAt("TQQQ", base.Add(-time.Minute), 101, 1000))
		assert.ErrorIs(t, err, ErrStaleBar)
	})

	assert.Equal(t, 1, e.BarCount("TQQQ"))
}

// Rejected bars must be no-ops: interleaving stale bars into a sequence leaves
// the state identical to processing only the valid increasing subsequence.
func TestStaleBarsDoNotAffectState(t *testing.T) {
	base := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)
	closes := []float64{100, 101, 99, 102, 104, 103, 105, 106, 104, 107}

	clean, err := New(testConfig(), &mockLogger{})
	require.NoError(t, err)
	var want domain.IndicatorSnapshot
	for i, c := range closes {
		want, err = clean.Update("TQQQ", barAt("TQQQ", base.Add(time.Duration(i)*time.Minute), c, 1000+float64(i)))
		require.NoError(t, err)
	}

	noisy, err := New(testConfig(), &mockLogger{})
	require.NoError(t, err)
	var got domain.IndicatorSnapshot
	for i, c := range closes {
		ts := base.Add(time.Duration(i) * time.Minute)
		got, err = noisy.Update("TQQQ", barAt("TQQQ", ts, c, 1000+float64(i)))
		require.NoError(t, err)

		// Replay the same bar and an older one; both must be rejected.
		_, dupErr := noisy.Update("TQQQ", barAt("TQQQ", ts, c+5, 9999))
		assert.ErrorIs(t, dupErr, ErrStaleBar)
		_, oldErr := noisy.Update("TQQQ", barAt("TQQQ", ts.Add(-30*time.Second), c-5, 1))
		assert.ErrorIs(t, oldErr, ErrStaleBar)
	}

	assert.Equal(t, want, got)
}

func TestPerSymbolIsolation(t *testing.T) {
	e, err := New(testConfig(), &mockLogger{})
	require.NoError(t, err)

	base := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)
	_, err = e.Update("AAA", barAt("AAA", base, 100, 1000))
	require.NoError(t, err)

	// A bar for another symbol at an older timestamp is fine.
	snap, err := e.Update("BBB", barAt("BBB", base.Add(-time.Hour), 50, 500))
	require.NoError(t, err)
	assert.Equal(t, 1, snap.BarCount)
	assert.Equal(t, 1, e.BarCount("AAA"))
}

func TestReset(t *testing.T) {
	e, err := New(testConfig(), &mockLogger{})
	require.NoError(t, err)

	base := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)
	_, err = e.Update("AAA", barAt("AAA", base, 100, 1000))
	require.NoError(t, err)
	_, err = e.Update("BBB", barAt("BBB", base, 100, 1000))
	require.NoError(t, err)

	e.Reset("AAA")
	assert.Equal(t, 0, e.BarCount("AAA"))
	assert.Equal(t, 1, e.BarCount("BBB"))

	// After a reset the symbol starts over; an old timestamp is accepted again.
	_, err = e.Update("AAA", barAt("AAA", base.Add(-time.Hour), 90, 900))
	assert.NoError(t, err)

	e.ResetAll()
	assert.Equal(t, 0, e.BarCount("BBB"))
}
