package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearVendorKeys blanks the vendor credentials for the test, overriding
// anything inherited from the host environment.
func clearVendorKeys(t *testing.T) {
	t.Helper()
	t.Setenv("ALPACA_API_KEY", "")
	t.Setenv("ALPACA_API_SECRET", "")
}

func TestLoadConfigRequiresVendorKeys(t *testing.T) {
	clearVendorKeys(t)

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ALPACA_API_KEY")
	assert.Contains(t, err.Error(), "ALPACA_API_SECRET")
}

func TestLoadOfflineConfigSkipsVendorKeys(t *testing.T) {
	clearVendorKeys(t)
	t.Setenv("BAR_TIMEFRAME", "")
	t.Setenv("TICK_INTERVAL_SECONDS", "")

	cfg, err := LoadOfflineConfig()
	require.NoError(t, err)
	assert.Empty(t, cfg.APIKey)
	assert.Equal(t, "1Min", cfg.BarTimeframe)
	assert.Equal(t, 5*time.Minute, cfg.TickInterval)
}

func TestLoadConfigWithKeys(t *testing.T) {
	t.Setenv("ALPACA_API_KEY", "key")
	t.Setenv("ALPACA_API_SECRET", "secret")
	t.Setenv("FEED_MODE", "stream")
	t.Setenv("MIN_VOTES", "3")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "key", cfg.APIKey)
	assert.Equal(t, "stream", cfg.FeedMode)
	assert.Equal(t, 3, cfg.MinVotes)
}

func TestLoadConfigRejectsBadFeedMode(t *testing.T) {
	t.Setenv("ALPACA_API_KEY", "key")
	t.Setenv("ALPACA_API_SECRET", "secret")
	t.Setenv("FEED_MODE", "carrier-pigeon")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FEED_MODE")
}
