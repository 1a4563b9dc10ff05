package indicator

// Streaming indicator primitives. Each type consumes one value per bar and
// keeps only the minimal sufficient statistics, so updates are O(1) in the
// number of historical bars.

// EMA is a streaming exponential moving average. The first `period` values are
// accumulated into a simple average which seeds the recursion.
type EMA struct {
	period     int
	multiplier float64
	value      float64
	count      int
	warmupSum  float64
}

// NewEMA creates an exponential moving average with the standard smoothing
// constant 2/(period+1).
func NewEMA(period int) *EMA {
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *EMA) Update(v float64) {
	if e.count < e.period {
		e.warmupSum += v
		e.count++
		if e.count == e.period {
			e.value = e.warmupSum / float64(e.period)
		}
		return
	}
	e.value = (v-e.value)*e.multiplier + e.value
}

func (e *EMA) Ready() bool { return e.count >= e.period }

func (e *EMA) Value() float64 {
	if !e.Ready() {
		return 0
	}
	return e.value
}

func (e *EMA) Reset() {
	e.value = 0
	e.count = 0
	e.warmupSum = 0
}

// WilderRSI is a streaming Relative Strength Index using Wilder's smoothing.
// The first `period` changes seed the average gain/loss with simple averages.
type WilderRSI struct {
	period    int
	prevClose float64
	avgGain   float64
	avgLoss   float64
	count     int // number of changes observed
	seeded    bool
}

// NewRSI creates a Wilder-smoothed RSI over the given period.
func NewRSI(period int) *WilderRSI {
	return &WilderRSI{period: period}
}

func (r *WilderRSI) Update(close float64) {
	if r.count == 0 && !r.seeded {
		// First close only establishes the baseline.
		r.prevClose = close
		r.seeded = true
		return
	}

	change := close - r.prevClose
	r.prevClose = close

	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	if r.count < r.period {
		r.avgGain += gain
		r.avgLoss += loss
		r.count++
		if r.count == r.period {
			r.avgGain /= float64(r.period)
			r.avgLoss /= float64(r.period)
		}
		return
	}

	p := float64(r.period)
	r.avgGain = (r.avgGain*(p-1) + gain) / p
	r.avgLoss = (r.avgLoss*(p-1) + loss) / p
	r.count++
}

func (r *WilderRSI) Ready() bool { return r.count >= r.period }

func (r *WilderRSI) Value() float64 {
	if !r.Ready() {
		return 0
	}
	if r.avgLoss == 0 {
		if r.avgGain == 0 {
			return 50 // neutral if no change
		}
		return 100
	}
	rs := r.avgGain / r.avgLoss
	rsi := 100 - (100 / (1 + rs))
	if rsi > 100 {
		rsi = 100
	} else if rsi < 0 {
		rsi = 0
	}
	return rsi
}

func (r *WilderRSI) Reset() {
	r.prevClose = 0
	r.avgGain = 0
	r.avgLoss = 0
	r.count = 0
	r.seeded = false
}

// MACD is a streaming Moving Average Convergence Divergence: the difference
// of a fast and a slow EMA, with a signal-line EMA of that difference.
type MACD struct {
	fast   *EMA
	slow   *EMA
	signal *EMA
}

// NewMACD creates a MACD with the given fast/slow/signal periods.
func NewMACD(fastPeriod, slowPeriod, signalPeriod int) *MACD {
	return &MACD{
		fast:   NewEMA(fastPeriod),
		slow:   NewEMA(slowPeriod),
		signal: NewEMA(signalPeriod),
	}
}

func (m *MACD) Update(close float64) {
	m.fast.Update(close)
	m.slow.Update(close)
	// The signal line only sees MACD values once both component EMAs exist.
	if m.fast.Ready() && m.slow.Ready() {
		m.signal.Update(m.fast.Value() - m.slow.Value())
	}
}

func (m *MACD) Ready() bool { return m.signal.Ready() }

func (m *MACD) Line() float64 {
	if !m.fast.Ready() || !m.slow.Ready() {
		return 0
	}
	return m.fast.Value() - m.slow.Value()
}

func (m *MACD) Signal() float64 { return m.signal.Value() }

func (m *MACD) Hist() float64 {
	if !m.Ready() {
		return 0
	}
	return m.Line() - m.Signal()
}

func (m *MACD) Reset() {
	m.fast.Reset()
	m.slow.Reset()
	m.signal.Reset()
}

// RollingMean is a streaming simple moving average over a fixed window.
type RollingMean struct {
	period int
	window []float64
	sum    float64
	next   int
	filled bool
}

// NewRollingMean creates a simple moving average over the given window.
func NewRollingMean(period int) *RollingMean {
	return &RollingMean{
		period: period,
		window: make([]float64, period),
	}
}

func (s *RollingMean) Update(v float64) {
	s.sum += v - s.window[s.next]
	s.window[s.next] = v
	s.next++
	if s.next == s.period {
		s.next = 0
		s.filled = true
	}
}

func (s *RollingMean) Ready() bool { return s.filled }

func (s *RollingMean) Value() float64 {
	if !s.filled {
		return 0
	}
	return s.sum / float64(s.period)
}

func (s *RollingMean) Reset() {
	for i := range s.window {
		s.window[i] = 0
	}
	s.sum = 0
	s.next = 0
	s.filled = false
}

// Lag returns a value observed a fixed number of updates ago.
type Lag struct {
	depth  int
	buf    []float64
	next   int
	filled bool
}

// NewLag creates a delay line of the given depth.
func NewLag(depth int) *Lag {
	return &Lag{
		depth: depth,
		buf:   make([]float64, depth),
	}
}

// Update pushes v and returns the value seen `depth` updates earlier along
// with whether the delay line is full.
func (l *Lag) Update(v float64) (old float64, ok bool) {
	old = l.buf[l.next]
	ok = l.filled
	l.buf[l.next] = v
	l.next++
	if l.next == l.depth {
		l.next = 0
		l.filled = true
	}
	return old, ok
}

func (l *Lag) Reset() {
	for i := range l.buf {
		l.buf[i] = 0
	}
	l.next = 0
	l.filled = false
}
