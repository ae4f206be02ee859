package news

import (
	"math"
	"sync"

	"forex-trading-bot/internal/market"
)

// VolatilityTracker keeps a rolling window of realized-volatility readings
// per symbol and flags periods where recent readings run hot against the
// window baseline, which usually means news is moving the market.
type VolatilityTracker struct {
	mu      sync.RWMutex
	window  int
	samples map[string]*floatRing
}

// NewVolatilityTracker creates a tracker with the given rolling window size
func NewVolatilityTracker(window int) *VolatilityTracker {
	if window <= 0 {
		window = 50
	}
	return &VolatilityTracker{
		window:  window,
		samples: make(map[string]*floatRing),
	}
}

// Record appends a volatility reading for a symbol, evicting the oldest when
// the window is full.
func (vt *VolatilityTracker) Record(symbol string, reading float64) {
	vt.mu.Lock()
	defer vt.mu.Unlock()

	ring, ok := vt.samples[symbol]
	if !ok {
		ring = newFloatRing(vt.window)
		vt.samples[symbol] = ring
	}
	ring.push(reading)
}

// Baseline returns the mean reading over the full window for a symbol
func (vt *VolatilityTracker) Baseline(symbol string) float64 {
	vt.mu.RLock()
	defer vt.mu.RUnlock()

	ring, ok := vt.samples[symbol]
	if !ok || ring.count == 0 {
		return 0
	}
	return mean(ring.items())
}

// IsNewsVolatilityPeriod reports whether the mean of the last five readings
// exceeds 1.5 times the full-window baseline.
func (vt *VolatilityTracker) IsNewsVolatilityPeriod(symbol string) bool {
	vt.mu.RLock()
	defer vt.mu.RUnlock()

	ring, ok := vt.samples[symbol]
	if !ok || ring.count < 5 {
		return false
	}

	items := ring.items()
	baseline := mean(items)
	if baseline <= 0 {
		return false
	}
	recent := mean(items[len(items)-5:])
	return recent > 1.5*baseline
}

// RealizedVolatility computes the standard deviation of close-to-close
// returns over a candle series, usable as a Record reading.
func RealizedVolatility(candles []market.Candle) float64 {
	if len(candles) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		if candles[i-1].Close == 0 {
			continue
		}
		returns = append(returns, (candles[i].Close-candles[i-1].Close)/candles[i-1].Close)
	}
	if len(returns) == 0 {
		return 0
	}

	m := mean(returns)
	var sumSq float64
	for _, r := range returns {
		d := r - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(returns)))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// floatRing is a fixed-capacity FIFO of readings
type floatRing struct {
	buf   []float64
	head  int
	count int
}

func newFloatRing(capacity int) *floatRing {
	return &floatRing{buf: make([]float64, capacity)}
}

func (r *floatRing) push(v float64) {
	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = v
		r.count++
		return
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
}

func (r *floatRing) items() []float64 {
	out := make([]float64, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(r.head+i)%len(r.buf)])
	}
	return out
}
