package session

import (
	"fmt"
	"time"

	"stockSignalBot/internal/domain"
	"stockSignalBot/internal/ports"
)

// Calendar describes one exchange's trading day. Times are "HH:MM" strings in
// the exchange timezone; offsets shift the emission window inside regular
// hours. The zero-value fields fall back to the US equities defaults.
type Calendar struct {
	Timezone       string        `yaml:"timezone"`         // e.g. "America/New_York"
	PreMarketStart string        `yaml:"pre_market_start"` // e.g. "04:00"
	MarketOpen     string        `yaml:"market_open"`      // e.g. "09:30"
	MarketClose    string        `yaml:"market_close"`     // e.g. "16:00"
	PostMarketEnd  string        `yaml:"post_market_end"`  // e.g. "20:00"
	EmissionCutoff time.Duration `yaml:"emission_cutoff"`  // offset after open, e.g. 45m -> 10:15
	EmissionEndsBy time.Duration `yaml:"emission_ends_by"` // offset before close, e.g. 15m -> 15:45
}

// DefaultCalendar returns the US equities regular session used by the engine
// when no calendar file is provided.
func DefaultCalendar() Calendar {
	return Calendar{
		Timezone:       "America/New_York",
		PreMarketStart: "04:00",
		MarketOpen:     "09:30",
		MarketClose:    "16:00",
		PostMarketEnd:  "20:00",
		EmissionCutoff: 45 * time.Minute,
		EmissionEndsBy: 15 * time.Minute,
	}
}

// Clock maps wall-clock time to a market session phase. It is a pure function
// of time plus the calendar it was built with; there is no mutable state.
type Clock struct {
	loc           *time.Location
	preStart      int // minutes since midnight, exchange local time
	open          int
	close         int
	postEnd       int
	emissionStart int
	emissionEnd   int
}

// NewClock validates the calendar and builds a Clock. Any inconsistency
// (cutoff outside regular hours, close before open, bad time strings) fails
// here, before any symbol processing begins.
func NewClock(cal Calendar) (*Clock, error) {
	loc, err := time.LoadLocation(cal.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q: %v", ports.ErrConfigurationError, cal.Timezone, err)
	}

	preStart, err := parseMinuteOfDay(cal.PreMarketStart)
	if err != nil {
		return nil, fmt.Errorf("%w: pre_market_start: %v", ports.ErrConfigurationError, err)
	}
	open, err := parseMinuteOfDay(cal.MarketOpen)
	if err != nil {
		return nil, fmt.Errorf("%w: market_open: %v", ports.ErrConfigurationError, err)
	}
	closeMin, err := parseMinuteOfDay(cal.MarketClose)
	if err != nil {
		return nil, fmt.Errorf("%w: market_close: %v", ports.ErrConfigurationError, err)
	}
	postEnd, err := parseMinuteOfDay(cal.PostMarketEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: post_market_end: %v", ports.ErrConfigurationError, err)
	}

	if !(preStart <= open && open < closeMin && closeMin <= postEnd) {
		return nil, fmt.Errorf("%w: session windows out of order (pre %s, open %s, close %s, post %s)",
			ports.ErrConfigurationError, cal.PreMarketStart, cal.MarketOpen, cal.MarketClose, cal.PostMarketEnd)
	}

	if cal.EmissionCutoff < 0 || cal.EmissionEndsBy < 0 {
		return nil, fmt.Errorf("%w: emission offsets must not be negative", ports.ErrConfigurationError)
	}
	emissionStart := open + int(cal.EmissionCutoff/time.Minute)
	emissionEnd := closeMin - int(cal.EmissionEndsBy/time.Minute)
	if emissionStart >= closeMin {
		return nil, fmt.Errorf("%w: emission cutoff %s pushes start past market close", ports.ErrConfigurationError, cal.EmissionCutoff)
	}
	if emissionEnd <= emissionStart {
		return nil, fmt.Errorf("%w: emission window is empty (starts %d, ends %d minutes after midnight)",
			ports.ErrConfigurationError, emissionStart, emissionEnd)
	}

	return &Clock{
		loc:           loc,
		preStart:      preStart,
		open:          open,
		close:         closeMin,
		postEnd:       postEnd,
		emissionStart: emissionStart,
		emissionEnd:   emissionEnd,
	}, nil
}

// PhaseAt returns the session phase for the given instant.
func (c *Clock) PhaseAt(now time.Time) domain.SessionPhase {
	local := now.In(c.loc)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return domain.PhaseClosed
	}
	m := local.Hour()*60 + local.Minute()
	switch {
	case m < c.preStart:
		return domain.PhaseClosed
	case m < c.open:
		return domain.PhasePreMarket
	case m < c.emissionStart:
		return domain.PhaseGatedOpen
	case m < c.close:
		return domain.PhaseActive
	case m < c.postEnd:
		return domain.PhasePostMarket
	default:
		return domain.PhaseClosed
	}
}

// IsEmissionAllowed reports whether signals may be emitted at the given
// instant: inside the active phase, and not within the end-of-session buffer.
func (c *Clock) IsEmissionAllowed(now time.Time) bool {
	if c.PhaseAt(now) != domain.PhaseActive {
		return false
	}
	local := now.In(c.loc)
	m := local.Hour()*60 + local.Minute()
	return m < c.emissionEnd
}

// SessionCloseAt returns the market close instant for the trading day
// containing now. Used by the orchestrator to schedule end-of-day shutdown.
func (c *Clock) SessionCloseAt(now time.Time) time.Time {
	local := now.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), c.close/60, c.close%60, 0, 0, c.loc)
}

func parseMinuteOfDay(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q (want HH:MM)", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}
