package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"stockSignalBot/internal/domain"
	"stockSignalBot/internal/indicator"
	"stockSignalBot/internal/ports"
	"stockSignalBot/internal/rules"

	"github.com/jpillora/backoff"
)

// SessionClock is the orchestrator's view of the trading calendar.
type SessionClock interface {
	PhaseAt(now time.Time) domain.SessionPhase
	IsEmissionAllowed(now time.Time) bool
	SessionCloseAt(now time.Time) time.Time
}

// Config holds the orchestrator's runtime settings.
type Config struct {
	// TickInterval is how often every watched symbol is polled.
	TickInterval time.Duration
	// MaxConcurrentFetches bounds parallel feed requests across symbols.
	MaxConcurrentFetches int
	// RetryAttempts is how many times a transient feed failure is retried
	// within one tick before the tick counts as failed for that symbol.
	RetryAttempts int
	// RetryBackoffMin/Max shape the capped exponential backoff between
	// retries inside a tick.
	RetryBackoffMin time.Duration
	RetryBackoffMax time.Duration
	// FailureThreshold is how many consecutive failed ticks a symbol
	// tolerates before it is suspended for the rest of the session.
	FailureThreshold int
	// WarmupLookback is how far back the first fetch reaches so indicators
	// can warm up before the emission window opens.
	WarmupLookback time.Duration
	// PersistAnalysis enables periodic indicator snapshot rows.
	PersistAnalysis bool
}

// symbolState is the orchestrator's per-symbol bookkeeping. Exactly one
// worker touches a symbolState during a tick, so fields need no lock of
// their own; the service mutex guards cross-tick access for reporting.
type symbolState struct {
	entry         domain.WatchlistEntry
	state         domain.SymbolState
	since         time.Time
	lastSignal    *domain.Signal
	failures      int
	suspendReason string
}

// SignalService orchestrates the per-symbol pipeline: fetch bars, update
// indicators, evaluate rules, persist signals.
type SignalService struct {
	cfg        Config
	logger     ports.Logger
	feed       ports.MarketDataFeed
	store      ports.SignalStore
	indicators *indicator.Engine
	rules      *rules.Engine
	clock      SessionClock
	runID      string

	mu      sync.Mutex
	symbols map[string]*symbolState
}

// NewSignalService creates the orchestrator for one session run.
func NewSignalService(
	cfg Config,
	logger ports.Logger,
	feed ports.MarketDataFeed,
	store ports.SignalStore,
	indicators *indicator.Engine,
	ruleEngine *rules.Engine,
	clock SessionClock,
	runID string,
	watchlist []domain.WatchlistEntry,
) (*SignalService, error) {

	if logger == nil || feed == nil || store == nil || indicators == nil || ruleEngine == nil || clock == nil {
		return nil, fmt.Errorf("missing required dependencies for SignalService")
	}
	if runID == "" {
		return nil, fmt.Errorf("%w: runID is required", ports.ErrConfigurationError)
	}
	if len(watchlist) == 0 {
		return nil, fmt.Errorf("%w: watchlist is empty", ports.ErrConfigurationError)
	}
	if cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("%w: TickInterval must be positive", ports.ErrConfigurationError)
	}
	if cfg.MaxConcurrentFetches <= 0 {
		return nil, fmt.Errorf("%w: MaxConcurrentFetches must be positive", ports.ErrConfigurationError)
	}
	if cfg.RetryAttempts <= 0 {
		return nil, fmt.Errorf("%w: RetryAttempts must be positive", ports.ErrConfigurationError)
	}
	if cfg.FailureThreshold <= 0 {
		return nil, fmt.Errorf("%w: FailureThreshold must be positive", ports.ErrConfigurationError)
	}
	if cfg.RetryBackoffMin <= 0 {
		cfg.RetryBackoffMin = 500 * time.Millisecond
	}
	if cfg.RetryBackoffMax < cfg.RetryBackoffMin {
		cfg.RetryBackoffMax = 30 * time.Second
	}
	if cfg.WarmupLookback <= 0 {
		cfg.WarmupLookback = 2 * time.Hour
	}

	symbols := make(map[string]*symbolState, len(watchlist))
	for _, entry := range watchlist {
		if _, dup := symbols[entry.Symbol]; dup {
			continue
		}
		symbols[entry.Symbol] = &symbolState{
			entry: entry,
			state: domain.SymbolPending,
		}
	}

	return &SignalService{
		cfg:        cfg,
		logger:     logger,
		feed:       feed,
		store:      store,
		indicators: indicators,
		rules:      ruleEngine,
		clock:      clock,
		runID:      runID,
		symbols:    symbols,
	}, nil
}

// Run executes the session loop until the market closes or the context is
// cancelled. SIGINT/SIGTERM trigger a graceful shutdown.
func (s *SignalService) Run(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Signal Service...", map[string]interface{}{
		"runID":   s.runID,
		"symbols": len(s.symbols),
		"tick":    s.cfg.TickInterval.String(),
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	now := time.Now()
	if err := s.resume(ctx, now); err != nil {
		return fmt.Errorf("failed to resume session state: %w", err)
	}

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	// Process one tick immediately rather than waiting a full interval.
	s.ProcessTick(ctx, now)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Context cancelled, shutting down")
			s.endSession(context.Background(), time.Now())
			return nil
		case tick := <-ticker.C:
			phase := s.clock.PhaseAt(tick)
			if phase == domain.PhasePostMarket || phase == domain.PhaseClosed {
				s.logger.Info(ctx, "Market session over", map[string]interface{}{"phase": string(phase)})
				s.endSession(ctx, tick)
				return nil
			}
			s.ProcessTick(ctx, tick)
		}
	}
}

// resume rebuilds deduplication state from the store so a mid-session restart
// does not re-emit the classification each symbol already carries.
func (s *SignalService) resume(ctx context.Context, now time.Time) error {
	const op = "resume"

	since := now.Add(-s.cfg.WarmupLookback)
	resumed := 0
	for symbol, st := range s.symbols {
		st.since = since

		last, err := s.store.LastSignal(ctx, symbol)
		if err != nil {
			return fmt.Errorf("%s: loading last signal for %s: %w", op, symbol, err)
		}
		if last != nil {
			st.lastSignal = last
			resumed++
		}
	}
	s.logger.Info(ctx, op+": session state prepared", map[string]interface{}{
		"since":          since.Format(time.RFC3339),
		"resumedSymbols": resumed,
	})
	return nil
}

// ProcessTick runs one polling pass over every live symbol. Feed requests run
// on a bounded worker pool; failures stay confined to their own symbol.
func (s *SignalService) ProcessTick(ctx context.Context, now time.Time) {
	phase := s.clock.PhaseAt(now)
	if phase != domain.PhaseGatedOpen && phase != domain.PhaseActive {
		s.logger.Debug(ctx, "Tick outside processing phases", map[string]interface{}{"phase": string(phase)})
		return
	}

	sem := make(chan struct{}, s.cfg.MaxConcurrentFetches)
	var wg sync.WaitGroup

	s.mu.Lock()
	live := make([]*symbolState, 0, len(s.symbols))
	for _, st := range s.symbols {
		if st.state == domain.SymbolSuspended || st.state == domain.SymbolClosed {
			continue
		}
		live = append(live, st)
	}
	s.mu.Unlock()

	for _, st := range live {
		wg.Add(1)
		go func(st *symbolState) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			s.processSymbol(ctx, st, now)
		}(st)
	}
	wg.Wait()
}

// processSymbol fetches new bars for one symbol and pushes them through the
// indicator and rule engines.
func (s *SignalService) processSymbol(ctx context.Context, st *symbolState, now time.Time) {
	const op = "processSymbol"
	symbol := st.entry.Symbol

	bars, err := s.fetchWithRetry(ctx, symbol, st.since)
	if err != nil {
		if errors.Is(err, ports.ErrContextCanceled) || ctx.Err() != nil {
			return
		}
		if ports.IsFatal(err) {
			s.suspend(ctx, st, fmt.Sprintf("fatal feed error: %v", err))
			return
		}
		st.failures++
		s.logger.Warn(ctx, op+": tick failed for symbol", map[string]interface{}{
			"symbol":   symbol,
			"failures": st.failures,
			"error":    err.Error(),
		})
		if st.failures >= s.cfg.FailureThreshold {
			s.suspend(ctx, st, fmt.Sprintf("%d consecutive failed ticks: %v", st.failures, err))
		}
		return
	}
	st.failures = 0

	if st.state == domain.SymbolPending {
		s.setState(st, domain.SymbolWarmingUp)
		s.logger.Info(ctx, op+": symbol warming up", map[string]interface{}{"symbol": symbol})
	}
	if len(bars) == 0 {
		return
	}

	var lastSnap *domain.IndicatorSnapshot
	for _, bar := range bars {
		snap, err := s.indicators.Update(symbol, bar)
		if err != nil {
			if errors.Is(err, indicator.ErrStaleBar) {
				s.logger.Debug(ctx, op+": skipping stale bar", map[string]interface{}{
					"symbol":    symbol,
					"timestamp": bar.Timestamp,
				})
				continue
			}
			s.logger.Error(ctx, err, op+": indicator update failed", map[string]interface{}{"symbol": symbol})
			continue
		}
		st.since = bar.Timestamp

		// Active means warmed up AND inside the emission window; during the
		// gated open a warm symbol keeps the WARMING_UP label.
		if snap.WarmedUp && st.state == domain.SymbolWarmingUp && s.clock.IsEmissionAllowed(snap.Timestamp) {
			s.setState(st, domain.SymbolActive)
			s.logger.Info(ctx, op+": symbol active", map[string]interface{}{
				"symbol":   symbol,
				"barCount": snap.BarCount,
			})
		}

		s.evaluate(ctx, st, snap)
		lastSnap = &snap
	}

	if s.cfg.PersistAnalysis && lastSnap != nil {
		if err := s.store.AppendAnalysis(ctx, s.runID, lastSnap); err != nil {
			// Diagnostics only, never worth failing the symbol over.
			s.logger.Warn(ctx, op+": failed to persist analysis snapshot", map[string]interface{}{
				"symbol": symbol,
				"error":  err.Error(),
			})
		}
	}
}

// evaluate runs the rule engine on one snapshot and persists the resulting
// signal, if any. Emission is gated on the bar's own timestamp so replays
// behave exactly like live sessions.
func (s *SignalService) evaluate(ctx context.Context, st *symbolState, snap domain.IndicatorSnapshot) {
	const op = "evaluate"

	if !s.clock.IsEmissionAllowed(snap.Timestamp) {
		return
	}

	sig := s.rules.Evaluate(snap, st.lastSignal)
	if sig == nil {
		return
	}
	sig.RunID = s.runID

	if err := s.store.Append(ctx, sig); err != nil {
		s.logger.Error(ctx, err, op+": failed to persist signal", map[string]interface{}{
			"symbol":         sig.Symbol,
			"classification": string(sig.Classification),
		})
		// Keep the previous dedupe state so the signal is re-attempted on a
		// later bar rather than silently lost.
		return
	}
	st.lastSignal = sig

	s.logger.Info(ctx, op+": signal emitted", map[string]interface{}{
		"symbol":         sig.Symbol,
		"classification": string(sig.Classification),
		"strength":       sig.Strength,
		"reasons":        sig.Reasons,
		"timestamp":      sig.Timestamp.Format(time.RFC3339),
	})
}

// fetchWithRetry fetches bars after since, retrying transient failures with
// capped exponential backoff. Fatal errors are returned on first sight.
func (s *SignalService) fetchWithRetry(ctx context.Context, symbol string, since time.Time) ([]*domain.Bar, error) {
	b := &backoff.Backoff{
		Min:    s.cfg.RetryBackoffMin,
		Max:    s.cfg.RetryBackoffMax,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.RetryAttempts; attempt++ {
		bars, err := s.feed.GetBars(ctx, symbol, since)
		if err == nil {
			return bars, nil
		}
		lastErr = err
		if !ports.IsTransient(err) {
			return nil, err
		}
		if attempt == s.cfg.RetryAttempts {
			break
		}

		delay := b.Duration()
		s.logger.Debug(ctx, "Transient feed error, backing off", map[string]interface{}{
			"symbol":  symbol,
			"attempt": attempt,
			"delay":   delay.String(),
			"error":   err.Error(),
		})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("fetch canceled: %w: %w", ports.ErrContextCanceled, ctx.Err())
		}
	}
	return nil, fmt.Errorf("exhausted %d fetch attempts for %s: %w", s.cfg.RetryAttempts, symbol, lastErr)
}

func (s *SignalService) setState(st *symbolState, state domain.SymbolState) {
	s.mu.Lock()
	st.state = state
	s.mu.Unlock()
}

// suspend takes a symbol out of rotation for the rest of the session.
func (s *SignalService) suspend(ctx context.Context, st *symbolState, reason string) {
	s.mu.Lock()
	st.state = domain.SymbolSuspended
	st.suspendReason = reason
	s.mu.Unlock()

	s.logger.Warn(ctx, "Symbol suspended for the session", map[string]interface{}{
		"symbol": st.entry.Symbol,
		"reason": reason,
	})
}

// endSession resets indicator state, closes live symbols and reports any
// suspensions with their reasons.
func (s *SignalService) endSession(ctx context.Context, now time.Time) {
	s.indicators.ResetAll()

	s.mu.Lock()
	var suspended []*symbolState
	symbols := make([]string, 0, len(s.symbols))
	emitted := 0
	for symbol, st := range s.symbols {
		symbols = append(symbols, symbol)
		if st.state == domain.SymbolSuspended {
			suspended = append(suspended, st)
		} else {
			st.state = domain.SymbolClosed
		}
		if st.lastSignal != nil {
			emitted++
		}
	}
	s.mu.Unlock()

	sort.Slice(suspended, func(i, j int) bool {
		return suspended[i].entry.Symbol < suspended[j].entry.Symbol
	})
	for _, st := range suspended {
		s.logger.Warn(ctx, "Session report: symbol was suspended", map[string]interface{}{
			"symbol": st.entry.Symbol,
			"reason": st.suspendReason,
		})
	}

	signalsToday := 0
	for _, symbol := range symbols {
		n, err := s.store.CountToday(ctx, symbol)
		if err != nil {
			s.logger.Warn(ctx, "Session report: counting today's signals failed", map[string]interface{}{
				"symbol": symbol,
				"error":  err.Error(),
			})
			continue
		}
		signalsToday += n
	}

	s.logger.Info(ctx, "Session closed", map[string]interface{}{
		"close":               s.clock.SessionCloseAt(now).Format(time.RFC3339),
		"symbols":             len(s.symbols),
		"suspended":           len(suspended),
		"symbolsWithEmission": emitted,
		"signalsToday":        signalsToday,
	})
}

// EndSession finalises a run that is driven externally, such as a historical
// replay, instead of through Run's session loop.
func (s *SignalService) EndSession(ctx context.Context, now time.Time) {
	s.endSession(ctx, now)
}

// SuspendedSymbols returns the symbols currently suspended, with reasons.
func (s *SignalService) SuspendedSymbols() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string)
	for symbol, st := range s.symbols {
		if st.state == domain.SymbolSuspended {
			out[symbol] = st.suspendReason
		}
	}
	return out
}

// SymbolStates returns a copy of the current per-symbol state machine view.
func (s *SignalService) SymbolStates() map[string]domain.SymbolState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]domain.SymbolState, len(s.symbols))
	for symbol, st := range s.symbols {
		out[symbol] = st.state
	}
	return out
}
