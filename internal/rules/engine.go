package rules

import (
	"fmt"
	"time"

	"stockSignalBot/internal/domain"
	"stockSignalBot/internal/ports"
)

// Config holds the rule set and the emission policy.
type Config struct {
	// Rules are evaluated in slice order; order is the fixed priority used
	// for reason reporting. SELL votes are always tallied ahead of BUY
	// votes regardless of order, biasing ties toward risk reduction.
	Rules []Rule
	// MinVotes is how many rules must agree before a BUY or SELL is
	// classified; below it the snapshot classifies as HOLD.
	MinVotes int
	// ReaffirmInterval re-emits an unchanged classification as a heartbeat
	// once this much bar time has elapsed since the last emission.
	ReaffirmInterval time.Duration
}

// Engine turns indicator snapshots into deduplicated signals. Evaluate is a
// pure function of its arguments: given the same snapshot and last signal it
// always produces the same result.
type Engine struct {
	cfg    Config
	logger ports.Logger
}

// New validates the rule configuration and creates an engine.
func New(cfg Config, logger ports.Logger) (*Engine, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for rule engine")
	}
	if len(cfg.Rules) == 0 {
		return nil, fmt.Errorf("%w: at least one rule is required", ports.ErrConfigurationError)
	}
	if cfg.MinVotes <= 0 {
		return nil, fmt.Errorf("%w: MinVotes must be positive", ports.ErrConfigurationError)
	}
	if cfg.MinVotes > len(cfg.Rules) {
		return nil, fmt.Errorf("%w: MinVotes %d exceeds rule count %d", ports.ErrConfigurationError, cfg.MinVotes, len(cfg.Rules))
	}
	if cfg.ReaffirmInterval <= 0 {
		return nil, fmt.Errorf("%w: ReaffirmInterval must be positive", ports.ErrConfigurationError)
	}
	for _, r := range cfg.Rules {
		switch r.Kind {
		case KindRSIOversold, KindRSIOverbought:
			if r.Threshold <= 0 || r.Threshold >= 100 {
				return nil, fmt.Errorf("%w: %s threshold %.1f outside (0, 100)", ports.ErrConfigurationError, r.Kind, r.Threshold)
			}
		case KindVolumeSurge:
			if r.Threshold <= 0 {
				return nil, fmt.Errorf("%w: %s threshold must be positive", ports.ErrConfigurationError, r.Kind)
			}
		case KindMACDCross, KindTrendMA:
			// No parameters.
		default:
			return nil, fmt.Errorf("%w: unknown rule kind %q", ports.ErrConfigurationError, r.Kind)
		}
	}
	return &Engine{cfg: cfg, logger: logger}, nil
}

// Classify runs the rule set over a snapshot and returns the classification,
// its strength and the fired-rule reasons. A snapshot that is still warming
// up always classifies as HOLD with no reasons.
func (e *Engine) Classify(snap domain.IndicatorSnapshot) (domain.Classification, float64, []string) {
	if !snap.WarmedUp {
		return domain.SignalHold, 0, nil
	}

	var buyVotes, sellVotes int
	var buyReasons, sellReasons []string
	for _, r := range e.cfg.Rules {
		v := r.evaluate(snap)
		switch v.side {
		case domain.SignalBuy:
			buyVotes++
			buyReasons = append(buyReasons, v.reason)
		case domain.SignalSell:
			sellVotes++
			sellReasons = append(sellReasons, v.reason)
		}
	}

	total := float64(len(e.cfg.Rules))
	// SELL resolves first: an exact tie at or above the vote floor reduces
	// risk rather than adding it.
	if sellVotes >= e.cfg.MinVotes && sellVotes >= buyVotes {
		return domain.SignalSell, float64(sellVotes) / total, sellReasons
	}
	if buyVotes >= e.cfg.MinVotes && buyVotes > sellVotes {
		return domain.SignalBuy, float64(buyVotes) / total, buyReasons
	}
	return domain.SignalHold, 0, nil
}

// Evaluate classifies a snapshot and applies deduplication against the last
// emitted signal. It returns nil when nothing should be emitted: either the
// state is still warming up and produced nothing noteworthy, or the
// classification is unchanged and the re-affirmation interval has not yet
// elapsed. Emission gating by session phase is the orchestrator's job.
func (e *Engine) Evaluate(snap domain.IndicatorSnapshot, last *domain.Signal) *domain.Signal {
	if !snap.WarmedUp {
		return nil
	}

	classification, strength, reasons := e.Classify(snap)

	sig := &domain.Signal{
		Symbol:         snap.Symbol,
		Timestamp:      snap.Timestamp,
		Classification: classification,
		Strength:       strength,
		Reasons:        reasons,
		Basis:          snap,
	}

	if sig.SameClassification(last) && snap.Timestamp.Sub(last.Timestamp) < e.cfg.ReaffirmInterval {
		return nil
	}
	// Changed classification, or a heartbeat with the interval elapsed.
	return sig
}
