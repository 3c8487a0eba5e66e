package exchange

import (
	"context"
	"testing"

	"github.com/buzzkillb/tirade-engine/internal/domain"
)

func TestDryRunSwapQuoteInDeltasAreOpposite(t *testing.T) {
	v := NewVenueClient(DefaultConfig())
	result, err := v.Execute(context.Background(), domain.Wallet{Address: "w1"}, domain.QuoteIn, 10, 50, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatal("expected dry-run swap to succeed")
	}
	if *result.BaseDelta != 10 || *result.QuoteDelta != -10 {
		t.Fatalf("expected base +10 quote -10, got base=%v quote=%v", *result.BaseDelta, *result.QuoteDelta)
	}
}

func TestDryRunSwapBaseInDeltasAreOpposite(t *testing.T) {
	v := NewVenueClient(DefaultConfig())
	result, err := v.Execute(context.Background(), domain.Wallet{Address: "w1"}, domain.BaseIn, 5, 50, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *result.BaseDelta != -5 || *result.QuoteDelta != 5 {
		t.Fatalf("expected base -5 quote +5, got base=%v quote=%v", *result.BaseDelta, *result.QuoteDelta)
	}
}

func TestSlippageBpsFloorsFraction(t *testing.T) {
	cfg := Config{SlippageTolerance: 0.00579}
	if got := cfg.SlippageBps(); got != 57 {
		t.Fatalf("expected floored 57 bps, got %v", got)
	}
}

func TestSimPriceSourceProducesRequestedCandleCount(t *testing.T) {
	s := NewSimPriceSource("SOL/USDC", 150, 42)
	candles, err := s.FetchCandles(context.Background(), "SOL/USDC", "1m", 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candles) != 20 {
		t.Fatalf("expected 20 candles, got %d", len(candles))
	}
	for _, c := range candles {
		if c.Close <= 0 {
			t.Fatalf("expected positive price, got %v", c.Close)
		}
	}
}
