package risk

import "testing"

func TestQuoteAmountForBuyAppliesPercentage(t *testing.T) {
	m := New(Config{PositionSizePercentage: 0.1})
	if got := m.QuoteAmountForBuy(1000); got != 100 {
		t.Fatalf("expected 100, got %v", got)
	}
}

func TestDailyDrawdownBlocksNewPositions(t *testing.T) {
	m := New(Config{PositionSizePercentage: 0.1, MaxDailyDrawdownPct: 5.0})
	m.RegisterPositionOpen()
	m.RegisterPositionClose(-6.0)

	ok, reason := m.CanOpenPosition()
	if ok {
		t.Fatal("expected drawdown limit to block new positions")
	}
	if reason == "" {
		t.Fatal("expected a reason")
	}
}

func TestTrailingStopRaisesStopAsPriceAdvances(t *testing.T) {
	tr := NewTrailingStopTracker(TrailingStopConfig{Enabled: true, TrailingPercent: 1.0, ActivationPercent: 1.0})
	tr.Open(0, 100, 98.8)

	stop, triggered := tr.Update(0, 103)
	if triggered {
		t.Fatal("did not expect trigger while rising")
	}
	if stop <= 98.8 {
		t.Fatalf("expected stop to move up from 98.8, got %v", stop)
	}

	_, triggered = tr.Update(0, stop-0.01)
	if !triggered {
		t.Fatal("expected trigger once price falls through the trailed stop")
	}
}
