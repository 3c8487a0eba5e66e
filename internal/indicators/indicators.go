// Package indicators computes technical indicators (RSI, SMA family,
// volatility, momentum) over an ordered-ascending-by-timestamp window of
// price ticks.
package indicators

import (
	"math"

	"github.com/buzzkillb/tirade-engine/internal/domain"
)

// Config holds the lookback periods the engine is configured with.
type Config struct {
	RSIFastPeriod    int
	RSISlowPeriod    int
	SMAShortPeriod   int
	SMALongPeriod    int
	VolatilityWindow int
}

// DefaultConfig matches the original implementation's defaults.
func DefaultConfig() Config {
	return Config{
		RSIFastPeriod:    14,
		RSISlowPeriod:    21,
		SMAShortPeriod:   20,
		SMALongPeriod:    50,
		VolatilityWindow: 20,
	}
}

// Engine computes Indicators from a price window. It holds no state of its
// own; every call is a pure function of its input slice.
type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Compute derives the full Indicators record from an ascending-by-timestamp
// slice of prices. NaN/Inf results are treated as absent (nil), never as a
// zero-value default.
func (e *Engine) Compute(pair string, prices []float64, ts int64) domain.Indicators {
	ind := domain.Indicators{Pair: pair}
	if len(prices) == 0 {
		return ind
	}
	ind.CurrentPrice = prices[len(prices)-1]

	ind.SMA20 = sma(prices, 20)
	ind.SMA50 = sma(prices, 50)
	ind.SMA200 = sma(prices, 200)
	ind.RSI14 = rsi(prices, 14)
	ind.RSIFast = rsi(prices, e.cfg.RSIFastPeriod)
	ind.RSISlow = rsi(prices, e.cfg.RSISlowPeriod)
	ind.Volatility24h = volatility(prices, e.cfg.VolatilityWindow)
	ind.PriceMomentum = momentum(prices)
	ind.PriceChangePercent = priceChangePercent(prices)
	ind.MomentumDecay = momentumDecay(prices)

	return ind
}

// SMA is the arithmetic mean of the last n prices, nil if fewer than n
// samples are available.
func sma(prices []float64, n int) *float64 {
	if n <= 0 || len(prices) < n {
		return nil
	}
	window := prices[len(prices)-n:]
	sum := 0.0
	for _, p := range window {
		sum += p
	}
	v := clean(sum / float64(n))
	if v == nil {
		return nil
	}
	return v
}

// RSI (Wilder-adjacent, simple-average variant): over the last n+1 samples,
// avg_gain = sum(gains)/n, avg_loss = sum(losses)/n; 100 if avg_loss == 0,
// else 100 - 100/(1+avg_gain/avg_loss).
func rsi(prices []float64, n int) *float64 {
	if n <= 0 || len(prices) < n+1 {
		return nil
	}
	window := prices[len(prices)-(n+1):]
	var gainSum, lossSum float64
	for i := 1; i < len(window); i++ {
		delta := window[i] - window[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum += -delta
		}
	}
	avgGain := gainSum / float64(n)
	avgLoss := lossSum / float64(n)
	if avgLoss == 0 {
		v := 100.0
		return &v
	}
	rs := avgGain / avgLoss
	v := 100 - 100/(1+rs)
	return clean(v)
}

// Volatility is the population standard deviation of one-step returns over
// the last w samples.
func volatility(prices []float64, w int) *float64 {
	if w <= 0 || len(prices) < w+1 {
		return nil
	}
	window := prices[len(prices)-(w+1):]
	returns := make([]float64, 0, w)
	for i := 1; i < len(window); i++ {
		if window[i-1] == 0 {
			return nil
		}
		returns = append(returns, (window[i]-window[i-1])/window[i-1])
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))
	return clean(math.Sqrt(variance))
}

// Momentum is (p_last - p_last-4) / p_last-4, requiring >= 5 samples.
func momentum(prices []float64) *float64 {
	if len(prices) < 5 {
		return nil
	}
	last := prices[len(prices)-1]
	prior := prices[len(prices)-5]
	if prior == 0 {
		return nil
	}
	return clean((last - prior) / prior)
}

// priceChangePercent is the one-step return, requiring >= 2 samples.
func priceChangePercent(prices []float64) *float64 {
	if len(prices) < 2 {
		return nil
	}
	last := prices[len(prices)-1]
	prior := prices[len(prices)-2]
	if prior == 0 {
		return nil
	}
	return clean((last - prior) / prior)
}

// momentumDecay resolves spec.md's Open Question 2. It is derived purely
// from the trailing price window: the most recent one-step change in the
// 5-period momentum is compared against 20% of the trailing-10-sample
// average absolute momentum change. A small, decaying most-recent change
// relative to its own recent history signals the move is running out of
// steam.
func momentumDecay(prices []float64) bool {
	const lookback = 10
	momenta := make([]float64, 0, lookback+1)
	for i := len(prices) - (lookback + 1); i < len(prices); i++ {
		if i < 4 {
			continue
		}
		m := (prices[i] - prices[i-4]) / prices[i-4]
		if math.IsNaN(m) || math.IsInf(m, 0) {
			continue
		}
		momenta = append(momenta, m)
	}
	if len(momenta) < 2 {
		return false
	}
	deltas := make([]float64, 0, len(momenta)-1)
	for i := 1; i < len(momenta); i++ {
		deltas = append(deltas, math.Abs(momenta[i]-momenta[i-1]))
	}
	if len(deltas) < 2 {
		return false
	}
	latest := deltas[len(deltas)-1]
	avg := 0.0
	for _, d := range deltas[:len(deltas)-1] {
		avg += d
	}
	avg /= float64(len(deltas) - 1)
	if avg == 0 {
		return false
	}
	return latest < 0.2*avg
}

func clean(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
