// Package neural implements the Neural Enhancer (C4): a small online
// sequence-memory predictor that produces a second opinion on the base
// signal and may override it when very confident.
package neural

import (
	"math"

	"github.com/buzzkillb/tirade-engine/internal/domain"
)

const (
	hiddenSize     = 10
	featureSize    = 10
	patternWindow  = 5
	forgetFactor   = 0.8
)

// Config holds the enhancer's tunables (spec.md §4.4, §6).
type Config struct {
	Enabled                  bool
	ConfidenceThreshold      float64
	LearningRate             float64
}

func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		ConfidenceThreshold: 0.6,
		LearningRate:        0.01,
	}
}

// Prediction is the neural enhancer's output for one cycle.
type Prediction struct {
	Direction          float64
	Confidence         float64
	PatternStrength    float64
	RiskLevel          float64
	VolatilityForecast float64
	MarketRegime       string
}

// Enhancer owns the learnable weights and the leaky hidden state. Neither is
// persisted or rebuilt from TradeOutcome history: each start begins with the
// default weights and a zero hidden state, and only the accuracy counters
// are restored from history (see Replay).
type Enhancer struct {
	cfg Config

	momentumWeight   float64
	rsiWeight        float64
	volatilityWeight float64
	hiddenState      [hiddenSize]float64

	totalPredictions   int
	correctPredictions int

	lastMomentum     float64
	lastCenteredRSI  float64

	recentReturns []float64 // last one-step returns, for pattern strength
}

func New(cfg Config) *Enhancer {
	return &Enhancer{
		cfg:              cfg,
		momentumWeight:   0.3,
		rsiWeight:        0.4,
		volatilityWeight: 0.3,
	}
}

// Replay reconstructs accuracy bookkeeping from historical outcomes on
// startup -- weights themselves stay at their defaults and adapt again via
// Learn as new outcomes arrive.
func (e *Enhancer) Replay(outcomes []domain.TradeOutcome) {
	for _, o := range outcomes {
		e.totalPredictions++
		if o.Success {
			e.correctPredictions++
		}
	}
}

func (e *Enhancer) accuracy() float64 {
	if e.totalPredictions == 0 {
		return 0.5
	}
	return float64(e.correctPredictions) / float64(e.totalPredictions)
}

// Enhance applies C4's combination rule to the incoming signal.
func (e *Enhancer) Enhance(sig domain.Signal, prices []float64, ind domain.Indicators) domain.Signal {
	if !e.cfg.Enabled {
		return sig
	}

	features := extractFeatures(prices, ind)
	e.updateHiddenState(features)
	e.lastMomentum = features[0]
	e.lastCenteredRSI = features[1] - 0.5

	d := e.directionalOutput(features)
	p := e.patternStrength(prices)
	accuracy := e.accuracy()
	c := clampMax1(0.4*math.Abs(d) + 0.3*p + 0.3*accuracy)

	vol := 0.0
	if ind.Volatility24h != nil {
		vol = *ind.Volatility24h
	}
	r := clampMax1((10*vol + (1 - c) + (1 - p)) / 3)

	pred := Prediction{
		Direction:          d,
		Confidence:         c,
		PatternStrength:    p,
		RiskLevel:          r,
		VolatilityForecast: volatilityForecast(prices),
		MarketRegime:       marketRegime(ind, d, vol),
	}

	if pred.Confidence < e.cfg.ConfidenceThreshold {
		return sig
	}
	e.totalPredictions++

	signalDir := float64(sig.Kind.Direction())
	var agreement float64
	if signalDir*pred.Direction > 0 {
		agreement = pred.Confidence
	} else {
		agreement = 1 - pred.Confidence
	}

	neuralWeight := 0.2
	if accuracy > 0.6 {
		neuralWeight = 0.4
	}
	sig.Confidence = (1-neuralWeight)*sig.Confidence + neuralWeight*agreement

	sig.AddReason("Neural: Dir %.2f, Conf %.1f%%, Pattern %.1f%%, Risk %.1f%%",
		pred.Direction, pred.Confidence*100, pred.PatternStrength*100, pred.RiskLevel*100)

	if pred.Confidence > 0.8 && accuracy > 0.7 && math.Abs(pred.Direction) > 0.3 {
		if pred.Direction > 0.3 && sig.Kind == domain.Sell {
			sig.Kind = domain.Buy
			sig.AddReason("Neural override: strong bullish signal")
		} else if pred.Direction < -0.3 && sig.Kind == domain.Buy {
			sig.Kind = domain.Sell
			sig.AddReason("Neural override: strong bearish signal")
		}
	}

	return sig
}

// Learn updates the learnable weights from a realized trade outcome.
// Prefers USDC-based success when available on the outcome.
func (e *Enhancer) Learn(outcome domain.TradeOutcome) {
	success := outcome.Success
	if success {
		e.correctPredictions++
	}
	adjustment := e.cfg.LearningRate
	if !success {
		adjustment = -e.cfg.LearningRate * 0.5
	}

	if math.Abs(e.lastMomentum) > 0.01 {
		e.momentumWeight += adjustment * math.Abs(e.lastMomentum)
	}
	if math.Abs(e.lastCenteredRSI) > 0.1 {
		e.rsiWeight += adjustment * math.Abs(e.lastCenteredRSI)
	}

	e.momentumWeight = clampWeight(e.momentumWeight)
	e.rsiWeight = clampWeight(e.rsiWeight)
	e.volatilityWeight = clampWeight(e.volatilityWeight)
}

func clampWeight(w float64) float64 {
	if w < 0.1 {
		return 0.1
	}
	if w > 1.0 {
		return 1.0
	}
	return w
}

func clampMax1(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	if v < 0 {
		return 0
	}
	return v
}

// directionalOutput computes d = tanh(w_m*momentum + w_r*(rsi-0.5) + w_v*vol + 0.2*mean(hidden)).
func (e *Enhancer) directionalOutput(features [featureSize]float64) float64 {
	output := features[0]*e.momentumWeight +
		(features[1]-0.5)*e.rsiWeight +
		features[2]*e.volatilityWeight

	sum := 0.0
	for _, h := range e.hiddenState {
		sum += h
	}
	output += (sum / float64(hiddenSize)) * 0.2

	return math.Tanh(output)
}

// updateHiddenState applies the leaky-memory update h_i <- 0.8h_i + 0.2f_i.
func (e *Enhancer) updateHiddenState(features [featureSize]float64) {
	n := len(features)
	if n > hiddenSize {
		n = hiddenSize
	}
	for i := 0; i < n; i++ {
		e.hiddenState[i] = e.hiddenState[i]*forgetFactor + features[i]*(1-forgetFactor)
	}
}

// patternStrength applies five independent filters over the last five
// one-step returns, each weighted equally and squashed via (tanh+1)/2.
func (e *Enhancer) patternStrength(prices []float64) float64 {
	returns := lastReturns(prices, patternWindow)
	if len(returns) < patternWindow {
		return 0.5
	}

	scores := [5]float64{
		momentumConsistencyFilter(returns),
		trendStrengthFilter(returns),
		meanAbsReturnFilter(returns),
		reversalCountFilter(returns),
		meanAbsReturnFilter(returns), // mean |return| fallback filter
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	combined := sum / float64(len(scores))
	return (math.Tanh(combined) + 1) / 2
}

func momentumConsistencyFilter(returns []float64) float64 {
	avg := mean(returns)
	consistency := 0.0
	for _, r := range returns {
		consistency += math.Abs(r - avg)
	}
	consistency /= float64(len(returns))
	return clampMax1(1 - clampMax1(consistency))
}

func trendStrengthFilter(returns []float64) float64 {
	trend := 0.0
	for i, r := range returns {
		trend += r * float64(i+1)
	}
	trend /= float64(len(returns))
	return clampMax1(math.Abs(trend))
}

func meanAbsReturnFilter(returns []float64) float64 {
	sum := 0.0
	for _, r := range returns {
		sum += math.Abs(r)
	}
	return clampMax1(sum / float64(len(returns)))
}

func reversalCountFilter(returns []float64) float64 {
	reversals := 0
	for i := 1; i < len(returns); i++ {
		if returns[i]*returns[i-1] < 0 {
			reversals++
		}
	}
	return clampMax1(float64(reversals) / float64(len(returns)))
}

func volatilityForecast(prices []float64) float64 {
	if len(prices) < 10 {
		return 0.5
	}
	n := len(prices)
	if n > 21 {
		n = 21
	}
	window := prices[len(prices)-n:]
	sum := 0.0
	count := 0
	for i := 1; i < len(window); i++ {
		if window[i-1] == 0 {
			continue
		}
		sum += math.Abs((window[i] - window[i-1]) / window[i-1])
		count++
	}
	if count == 0 {
		return 0.5
	}
	return clampMax1(sum / float64(count))
}

// marketRegime is C4's tag-only classifier (spec.md §4.4), distinct from
// C3's own regime tag (see DESIGN.md).
func marketRegime(ind domain.Indicators, momentum, vol float64) string {
	switch {
	case vol > 0.05:
		return "Volatile"
	case ind.PriceMomentum != nil && math.Abs(trendStrength(ind)) > 0.6:
		return "Trending"
	case math.Abs(momentum) > 0.3 && vol > 0.02:
		return "Breakout"
	default:
		return "Consolidating"
	}
}

func trendStrength(ind domain.Indicators) float64 {
	if ind.PriceMomentum == nil {
		return 0
	}
	return *ind.PriceMomentum
}

func lastReturns(prices []float64, n int) []float64 {
	if len(prices) < n+1 {
		return nil
	}
	window := prices[len(prices)-(n+1):]
	out := make([]float64, 0, n)
	for i := 1; i < len(window); i++ {
		if window[i-1] == 0 {
			return nil
		}
		out = append(out, (window[i]-window[i-1])/window[i-1])
	}
	return out
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// extractFeatures builds the 10-element feature vector: momentum,
// normalized RSI, volatility, sma_ratio, price/sma_short, and the last five
// one-step returns.
func extractFeatures(prices []float64, ind domain.Indicators) [featureSize]float64 {
	var f [featureSize]float64
	if len(prices) < 2 {
		return f
	}
	current := prices[len(prices)-1]
	previous := prices[len(prices)-2]

	if previous != 0 {
		f[0] = (current - previous) / previous
	}

	rsi := 50.0
	if ind.RSIFast != nil {
		rsi = *ind.RSIFast
	}
	f[1] = rsi / 100.0

	vol := 0.01
	if ind.Volatility24h != nil {
		vol = *ind.Volatility24h
	}
	f[2] = vol

	smaRatio := 1.0
	if ind.SMA20 != nil && ind.SMA50 != nil && *ind.SMA50 != 0 {
		smaRatio = *ind.SMA20 / *ind.SMA50
	}
	f[3] = smaRatio

	priceSMARatio := 1.0
	if ind.SMA20 != nil && *ind.SMA20 != 0 {
		priceSMARatio = current / *ind.SMA20
	}
	f[4] = priceSMARatio

	for i := 1; i <= 5; i++ {
		idx := len(prices) - 1 - i
		if idx > 0 {
			f[4+i] = (prices[idx] - prices[idx-1]) / prices[idx-1]
		}
	}

	return f
}
