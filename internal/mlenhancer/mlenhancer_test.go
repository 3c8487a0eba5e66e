package mlenhancer

import (
	"testing"

	"github.com/buzzkillb/tirade-engine/internal/domain"
)

func f(v float64) *float64 { return &v }

func outcomesOf(successes []bool) []domain.TradeOutcome {
	out := make([]domain.TradeOutcome, len(successes))
	for i, s := range successes {
		out[i] = domain.TradeOutcome{Success: s}
	}
	return out
}

func TestMLFloorConvertsToHold(t *testing.T) {
	e := New(DefaultConfig())
	// 10 outcomes, 2 successes -> win_rate 0.2 -> -0.05 adjustment.
	e.outcomes = outcomesOf([]bool{true, true, false, false, false, false, false, false, false, false})

	sig := domain.Signal{Kind: domain.Buy, Confidence: 0.45}
	out := e.Enhance(sig, domain.Indicators{})

	if out.Kind != domain.Hold {
		t.Fatalf("expected Hold, got %v (confidence=%v)", out.Kind, out.Confidence)
	}
	found := false
	for _, r := range out.Reasoning {
		if r == "ML confidence too low (35% < 55%) - converted to HOLD" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected ML confidence too low reasoning, got %v", out.Reasoning)
	}
}

func TestEmptyHistoryMinimalAdjustment(t *testing.T) {
	e := New(DefaultConfig())
	sig := domain.Signal{Kind: domain.Buy, Confidence: 0.6}
	out := e.Enhance(sig, domain.Indicators{Volatility24h: f(0.3)})
	want := sig.Confidence - 0.05
	if out.Confidence != want {
		t.Fatalf("expected %v, got %v", want, out.Confidence)
	}
}

func TestRingCapacityBounded(t *testing.T) {
	e := New(DefaultConfig())
	for i := 0; i < ringCapacity+50; i++ {
		e.Record(domain.TradeOutcome{Success: i%2 == 0})
	}
	if e.RingSize() != ringCapacity {
		t.Fatalf("expected ring capped at %d, got %d", ringCapacity, e.RingSize())
	}
}

func TestFlushEveryFiveRecords(t *testing.T) {
	e := New(DefaultConfig())
	var flushes int
	for i := 0; i < 12; i++ {
		if e.Record(domain.TradeOutcome{Success: true}) {
			flushes++
		}
	}
	if flushes != 2 {
		t.Fatalf("expected 2 flushes over 12 records, got %d", flushes)
	}
}

func TestConsecutiveLossesCountsFromNewest(t *testing.T) {
	e := New(DefaultConfig())
	e.outcomes = outcomesOf([]bool{true, false, false, true, false, false, false})
	if got := e.consecutiveLosses(); got != 3 {
		t.Fatalf("expected 3 consecutive losses, got %d", got)
	}
}

func TestOptimalPositionSizeReducesOnLossStreak(t *testing.T) {
	e := New(DefaultConfig())
	e.outcomes = outcomesOf([]bool{true, false, false, false, false, false})
	size := e.OptimalPositionSize(domain.Indicators{})
	if size >= DefaultConfig().MaxPositionSize {
		t.Fatalf("expected reduced size on loss streak, got %v", size)
	}
	if size < 0.05 {
		t.Fatalf("size must stay >= 0.05 floor, got %v", size)
	}
}
