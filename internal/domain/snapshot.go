package domain

import "time"

// IndicatorSnapshot is the immutable view of a symbol's indicator state after
// one bar has been applied. Previous-bar values are carried so that crossover
// rules can be evaluated without reaching back into engine state.
type IndicatorSnapshot struct {
	Symbol    string
	Timestamp time.Time // timestamp of the bar that produced this snapshot
	Close     float64
	Volume    float64

	SMAShort float64
	SMALong  float64
	RSI      float64
	PrevRSI  float64

	MACD           float64
	MACDSignal     float64
	MACDHist       float64
	PrevMACD       float64
	PrevMACDSignal float64

	VolumeRatio float64 // current bar volume over its trailing average
	Momentum    float64 // close minus close N bars back

	BarCount int
	WarmedUp bool // false until every indicator has enough history
}
