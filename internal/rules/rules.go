package rules

import "stockSignalBot/internal/domain"

// Kind identifies one rule variant. Rules form a fixed tagged-variant list
// with typed parameters; there is no free-form rule expression language.
type Kind string

const (
	// KindRSIOversold votes BUY when RSI recovers up through the oversold
	// threshold while price holds above the long moving average.
	KindRSIOversold Kind = "RSI_OVERSOLD"
	// KindRSIOverbought votes SELL when RSI falls back through the
	// overbought threshold while price sits below the long moving average.
	KindRSIOverbought Kind = "RSI_OVERBOUGHT"
	// KindMACDCross votes BUY on a bullish MACD/signal-line crossover and
	// SELL on a bearish one.
	KindMACDCross Kind = "MACD_CROSS"
	// KindTrendMA votes BUY when price > short SMA > long SMA and SELL on
	// the mirrored alignment.
	KindTrendMA Kind = "TREND_MA"
	// KindVolumeSurge votes with the momentum direction when volume runs
	// above its trailing average by the configured ratio.
	KindVolumeSurge Kind = "VOLUME_SURGE"
)

// Rule is one rule instance. Threshold is the RSI bound for the RSI kinds and
// the volume ratio floor for KindVolumeSurge; the other kinds take no
// parameters.
type Rule struct {
	Kind      Kind
	Threshold float64
}

// vote is the outcome of evaluating a single rule against a snapshot.
type vote struct {
	side   domain.Classification // SignalBuy or SignalSell; SignalHold means no vote
	reason string
}

func (r Rule) evaluate(s domain.IndicatorSnapshot) vote {
	switch r.Kind {
	case KindRSIOversold:
		if s.PrevRSI < r.Threshold && s.RSI >= r.Threshold && s.Close > s.SMALong {
			return vote{side: domain.SignalBuy, reason: "RSI oversold recovery"}
		}
	case KindRSIOverbought:
		if s.PrevRSI > r.Threshold && s.RSI <= r.Threshold && s.Close < s.SMALong {
			return vote{side: domain.SignalSell, reason: "RSI overbought reversal"}
		}
	case KindMACDCross:
		if s.PrevMACD <= s.PrevMACDSignal && s.MACD > s.MACDSignal {
			return vote{side: domain.SignalBuy, reason: "MACD bullish crossover"}
		}
		if s.PrevMACD >= s.PrevMACDSignal && s.MACD < s.MACDSignal {
			return vote{side: domain.SignalSell, reason: "MACD bearish crossover"}
		}
	case KindTrendMA:
		if s.Close > s.SMAShort && s.SMAShort > s.SMALong {
			return vote{side: domain.SignalBuy, reason: "Bullish MA alignment"}
		}
		if s.Close < s.SMAShort && s.SMAShort < s.SMALong {
			return vote{side: domain.SignalSell, reason: "Bearish MA alignment"}
		}
	case KindVolumeSurge:
		if s.VolumeRatio > r.Threshold {
			if s.Momentum > 0 {
				return vote{side: domain.SignalBuy, reason: "High volume with upward momentum"}
			}
			if s.Momentum < 0 {
				return vote{side: domain.SignalSell, reason: "High volume with downward momentum"}
			}
		}
	}
	return vote{side: domain.SignalHold}
}

// DefaultRules returns the standard rule set in its evaluation priority
// order, with the conventional RSI 30/70 bounds and a 1.5x volume surge.
func DefaultRules() []Rule {
	return []Rule{
		{Kind: KindRSIOverbought, Threshold: 70},
		{Kind: KindRSIOversold, Threshold: 30},
		{Kind: KindMACDCross},
		{Kind: KindTrendMA},
		{Kind: KindVolumeSurge, Threshold: 1.5},
	}
}
