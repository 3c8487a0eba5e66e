package neural

import (
	"testing"

	"github.com/buzzkillb/tirade-engine/internal/domain"
)

func f(v float64) *float64 { return &v }

func risingPrices(n int) []float64 {
	out := make([]float64, n)
	p := 100.0
	for i := range out {
		p *= 1.01
		out[i] = p
	}
	return out
}

func TestLowConfidencePassesThrough(t *testing.T) {
	e := New(DefaultConfig())
	prices := []float64{100, 100, 100, 100}
	sig := domain.Signal{Kind: domain.Buy, Confidence: 0.5}
	out := e.Enhance(sig, prices, domain.Indicators{})
	if out.Confidence != 0.5 {
		t.Fatalf("expected pass-through when below threshold, got %v", out.Confidence)
	}
}

func TestWeightsClampedAfterLearning(t *testing.T) {
	e := New(DefaultConfig())
	e.lastMomentum = 5.0
	e.lastCenteredRSI = 5.0
	for i := 0; i < 1000; i++ {
		e.Learn(domain.TradeOutcome{Success: true})
	}
	if e.momentumWeight > 1.0 || e.momentumWeight < 0.1 {
		t.Fatalf("momentum weight out of bounds: %v", e.momentumWeight)
	}
	if e.rsiWeight > 1.0 || e.rsiWeight < 0.1 {
		t.Fatalf("rsi weight out of bounds: %v", e.rsiWeight)
	}
}

func TestOverrideReasoningAccompaniesFlipToBuy(t *testing.T) {
	e := New(DefaultConfig())
	// Force a high-accuracy state by replaying a long streak of successes.
	history := make([]domain.TradeOutcome, 20)
	for i := range history {
		history[i] = domain.TradeOutcome{Success: true}
	}
	e.Replay(history)

	prices := risingPrices(30)
	ind := domain.Indicators{
		RSIFast:       f(20),
		Volatility24h: f(0.01),
		PriceMomentum: f(0.2),
	}

	sig := domain.Signal{Kind: domain.Sell, Confidence: 0.6}
	out := e.Enhance(sig, prices, ind)

	if out.Kind != domain.Buy && out.Kind != domain.Sell {
		t.Fatalf("unexpected kind %v", out.Kind)
	}
	// Whether the override threshold is crossed depends on the realized
	// direction/confidence for this price path; assert internal consistency
	// instead of a specific flip.
	if out.Kind == domain.Buy {
		found := false
		for _, r := range out.Reasoning {
			if r == "Neural override: strong bullish signal" {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected override reasoning when kind flipped, got %v", out.Reasoning)
		}
	}
}

func TestPatternStrengthBoundedZeroOne(t *testing.T) {
	e := New(DefaultConfig())
	prices := risingPrices(10)
	p := e.patternStrength(prices)
	if p < 0 || p > 1 {
		t.Fatalf("pattern strength must be in [0,1], got %v", p)
	}
}

func TestExtractFeaturesHasTenElements(t *testing.T) {
	prices := risingPrices(10)
	f := extractFeatures(prices, domain.Indicators{})
	if len(f) != featureSize {
		t.Fatalf("expected %d features, got %d", featureSize, len(f))
	}
}
