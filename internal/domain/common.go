package domain

// SessionPhase classifies a wall-clock instant against the exchange calendar.
// It is recomputed on every tick and never persisted.
type SessionPhase string

const (
	PhasePreMarket  SessionPhase = "PRE_MARKET"
	PhaseGatedOpen  SessionPhase = "GATED_OPEN" // regular session running, emission still gated
	PhaseActive     SessionPhase = "ACTIVE"
	PhasePostMarket SessionPhase = "POST_MARKET"
	PhaseClosed     SessionPhase = "CLOSED"
)

// SymbolState is the orchestrator's per-symbol lifecycle state.
type SymbolState string

const (
	SymbolPending   SymbolState = "PENDING"
	SymbolWarmingUp SymbolState = "WARMING_UP"
	SymbolActive    SymbolState = "ACTIVE"
	SymbolSuspended SymbolState = "SUSPENDED" // terminal for the session
	SymbolClosed    SymbolState = "CLOSED"    // terminal, end of day
)

// Classification is the discrete trading signal for a symbol.
type Classification string

const (
	SignalBuy  Classification = "BUY"
	SignalSell Classification = "SELL"
	SignalHold Classification = "HOLD"
)
