package indicator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"stockSignalBot/internal/domain"
	"stockSignalBot/internal/ports"
)

// ErrStaleBar is returned when a bar's timestamp is not strictly greater than
// the last bar processed for that symbol. Stale bars never mutate state.
var ErrStaleBar = errors.New("bar timestamp not after last processed bar")

// Config holds the indicator periods. Defaults match the intraday analysis
// profile: MACD 12/26/9, RSI 14, SMA 20/50, volume and momentum lookbacks 20/10.
type Config struct {
	EMAFastPeriod    int
	EMASlowPeriod    int
	MACDSignalPeriod int
	RSIPeriod        int
	SMAShortPeriod   int
	SMALongPeriod    int
	VolumePeriod     int
	MomentumPeriod   int
	MinBars          int // warm-up floor; 0 means derive from the slowest indicator
}

// DefaultConfig returns the standard intraday indicator profile.
func DefaultConfig() Config {
	return Config{
		EMAFastPeriod:    12,
		EMASlowPeriod:    26,
		MACDSignalPeriod: 9,
		RSIPeriod:        14,
		SMAShortPeriod:   20,
		SMALongPeriod:    50,
		VolumePeriod:     20,
		MomentumPeriod:   10,
	}
}

// minBarsRequired is the bar count at which every indicator has real values.
func (c Config) minBarsRequired() int {
	if c.MinBars > 0 {
		return c.MinBars
	}
	min := c.SMALongPeriod
	if v := c.EMASlowPeriod + c.MACDSignalPeriod; v > min {
		min = v
	}
	if v := c.RSIPeriod + 1; v > min {
		min = v
	}
	if v := c.MomentumPeriod + 1; v > min {
		min = v
	}
	return min
}

// Engine owns one indicator state record per watched symbol and updates it
// incrementally from live bars. Map access is guarded; the per-symbol state
// itself relies on the orchestrator's guarantee that a symbol is only ever
// touched by one worker at a time.
type Engine struct {
	cfg    Config
	logger ports.Logger

	mu     sync.Mutex
	states map[string]*state
}

type state struct {
	lastTS   time.Time
	barCount int

	smaShort *RollingMean
	smaLong  *RollingMean
	volMean  *RollingMean
	rsi      *WilderRSI
	macd     *MACD
	momLag   *Lag

	prevRSI        float64
	prevMACD       float64
	prevMACDSignal float64
}

// New validates the configuration and creates an engine with no symbol state.
func New(cfg Config, logger ports.Logger) (*Engine, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for indicator engine")
	}
	if cfg.EMAFastPeriod <= 0 || cfg.EMASlowPeriod <= 0 || cfg.MACDSignalPeriod <= 0 ||
		cfg.RSIPeriod <= 0 || cfg.SMAShortPeriod <= 0 || cfg.SMALongPeriod <= 0 ||
		cfg.VolumePeriod <= 0 || cfg.MomentumPeriod <= 0 {
		return nil, fmt.Errorf("%w: indicator periods must be positive", ports.ErrConfigurationError)
	}
	if cfg.EMAFastPeriod >= cfg.EMASlowPeriod {
		return nil, fmt.Errorf("%w: fast EMA period must be less than slow EMA period", ports.ErrConfigurationError)
	}
	if cfg.SMAShortPeriod >= cfg.SMALongPeriod {
		return nil, fmt.Errorf("%w: short SMA period must be less than long SMA period", ports.ErrConfigurationError)
	}
	return &Engine{
		cfg:    cfg,
		logger: logger,
		states: make(map[string]*state),
	}, nil
}

func (e *Engine) newState() *state {
	return &state{
		smaShort: NewRollingMean(e.cfg.SMAShortPeriod),
		smaLong:  NewRollingMean(e.cfg.SMALongPeriod),
		volMean:  NewRollingMean(e.cfg.VolumePeriod),
		rsi:      NewRSI(e.cfg.RSIPeriod),
		macd:     NewMACD(e.cfg.EMAFastPeriod, e.cfg.EMASlowPeriod, e.cfg.MACDSignalPeriod),
		momLag:   NewLag(e.cfg.MomentumPeriod),
	}
}

// Update applies one bar to the symbol's state and returns the resulting
// snapshot. A bar whose timestamp is not strictly greater than the last
// processed one is rejected with ErrStaleBar without mutating anything.
func (e *Engine) Update(symbol string, bar *domain.Bar) (domain.IndicatorSnapshot, error) {
	e.mu.Lock()
	st, ok := e.states[symbol]
	if !ok {
		st = e.newState()
		e.states[symbol] = st
	}
	e.mu.Unlock()

	if !st.lastTS.IsZero() && !bar.Timestamp.After(st.lastTS) {
		return domain.IndicatorSnapshot{}, fmt.Errorf("%w: %s at %s (last %s)",
			ErrStaleBar, symbol, bar.Timestamp.Format(time.RFC3339), st.lastTS.Format(time.RFC3339))
	}

	st.prevRSI = st.rsi.Value()
	st.prevMACD = st.macd.Line()
	st.prevMACDSignal = st.macd.Signal()

	st.smaShort.Update(bar.Close)
	st.smaLong.Update(bar.Close)
	st.volMean.Update(bar.Volume)
	st.rsi.Update(bar.Close)
	st.macd.Update(bar.Close)
	oldClose, lagFull := st.momLag.Update(bar.Close)

	st.lastTS = bar.Timestamp
	st.barCount++

	snap := domain.IndicatorSnapshot{
		Symbol:         symbol,
		Timestamp:      bar.Timestamp,
		Close:          bar.Close,
		Volume:         bar.Volume,
		SMAShort:       st.smaShort.Value(),
		SMALong:        st.smaLong.Value(),
		RSI:            st.rsi.Value(),
		PrevRSI:        st.prevRSI,
		MACD:           st.macd.Line(),
		MACDSignal:     st.macd.Signal(),
		MACDHist:       st.macd.Hist(),
		PrevMACD:       st.prevMACD,
		PrevMACDSignal: st.prevMACDSignal,
		BarCount:       st.barCount,
	}
	if lagFull {
		snap.Momentum = bar.Close - oldClose
	}
	if st.volMean.Ready() && st.volMean.Value() > 0 {
		snap.VolumeRatio = bar.Volume / st.volMean.Value()
	}
	snap.WarmedUp = st.barCount >= e.cfg.minBarsRequired() &&
		st.rsi.Ready() && st.macd.Ready() && st.smaLong.Ready()

	return snap, nil
}

// BarCount returns how many bars have been applied for a symbol.
func (e *Engine) BarCount(symbol string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.states[symbol]; ok {
		return st.barCount
	}
	return 0
}

// Reset discards the state of one symbol.
func (e *Engine) Reset(symbol string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.states, symbol)
}

// ResetAll discards every symbol's state. Called at session close; indicator
// state never survives across trading days.
func (e *Engine) ResetAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.states = make(map[string]*state)
}
