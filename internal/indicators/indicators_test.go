package indicators

import "testing"

func seqPrices(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestSMAInsufficientSamples(t *testing.T) {
	if v := sma([]float64{1, 2, 3}, 5); v != nil {
		t.Fatalf("expected nil, got %v", *v)
	}
}

func TestSMAExact(t *testing.T) {
	v := sma([]float64{1, 2, 3, 4, 5}, 5)
	if v == nil || *v != 3 {
		t.Fatalf("expected 3, got %v", v)
	}
}

func TestRSIAllGains(t *testing.T) {
	prices := seqPrices(15, 100, 1) // strictly increasing
	v := rsi(prices, 14)
	if v == nil || *v != 100 {
		t.Fatalf("expected 100 (avg_loss=0), got %v", v)
	}
}

func TestRSIInsufficientSamples(t *testing.T) {
	if v := rsi([]float64{1, 2}, 14); v != nil {
		t.Fatalf("expected nil, got %v", *v)
	}
}

func TestVolatilityZeroForFlatPrices(t *testing.T) {
	prices := seqPrices(25, 100, 0)
	v := volatility(prices, 20)
	if v == nil || *v != 0 {
		t.Fatalf("expected 0 volatility for flat series, got %v", v)
	}
}

func TestMomentumRequiresFiveSamples(t *testing.T) {
	if v := momentum([]float64{1, 2, 3, 4}); v != nil {
		t.Fatalf("expected nil with 4 samples, got %v", *v)
	}
	v := momentum([]float64{100, 101, 102, 103, 110})
	if v == nil {
		t.Fatal("expected a value with 5 samples")
	}
	want := (110.0 - 100.0) / 100.0
	if *v != want {
		t.Fatalf("expected %v, got %v", want, *v)
	}
}

func TestPriceChangePercent(t *testing.T) {
	v := priceChangePercent([]float64{100, 102})
	if v == nil || *v != 0.02 {
		t.Fatalf("expected 0.02, got %v", v)
	}
}

func TestMomentumDecayFlatSeriesIsFalse(t *testing.T) {
	// A flat series has zero momentum throughout, so the average delta is
	// zero and decay cannot be asserted (guarded, not a false positive).
	prices := seqPrices(20, 100, 0)
	if momentumDecay(prices) {
		t.Fatal("expected no decay signal on a flat series")
	}
}

func TestMomentumDecayDetectsFadingMove(t *testing.T) {
	// Construct a price path whose 5-period momentum grows then flattens
	// sharply in the final steps -- the last momentum delta should be much
	// smaller than its trailing average.
	prices := make([]float64, 0, 20)
	p := 100.0
	for i := 0; i < 10; i++ {
		p *= 1.02
		prices = append(prices, p)
	}
	for i := 0; i < 6; i++ {
		p *= 1.0001
		prices = append(prices, p)
	}
	if !momentumDecay(prices) {
		t.Fatal("expected decay signal once the trend flattens")
	}
}

func TestComputeDeterministic(t *testing.T) {
	e := New(DefaultConfig())
	prices := seqPrices(60, 100, 0.3)
	a := e.Compute("SOL/USDC", prices, 0)
	b := e.Compute("SOL/USDC", prices, 0)
	if *a.SMA20 != *b.SMA20 || *a.RSIFast != *b.RSIFast {
		t.Fatal("Compute must be deterministic in its inputs")
	}
}
