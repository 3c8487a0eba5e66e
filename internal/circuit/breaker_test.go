package circuit

import "testing"

func TestConsecutiveLossesTripsBreaker(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConsecutiveLosses = 3
	b := New(cfg)

	for i := 0; i < 3; i++ {
		b.RecordTrade(-1.0)
	}

	ok, reason := b.CanTrade()
	if ok {
		t.Fatal("expected breaker to trip after consecutive losses")
	}
	if reason == "" {
		t.Fatal("expected a trip reason")
	}
	if b.GetState() != StateOpen {
		t.Fatalf("expected open state, got %v", b.GetState())
	}
}

func TestWinningTradeResetsConsecutiveLosses(t *testing.T) {
	b := New(DefaultConfig())
	b.RecordTrade(-1.0)
	b.RecordTrade(-1.0)
	b.RecordTrade(2.0)

	ok, _ := b.CanTrade()
	if !ok {
		t.Fatal("expected breaker to remain closed after a winning trade")
	}
}

func TestDisabledBreakerAlwaysAllows(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	b := New(cfg)
	for i := 0; i < 50; i++ {
		b.RecordTrade(-5.0)
	}
	ok, _ := b.CanTrade()
	if !ok {
		t.Fatal("expected disabled breaker to always allow trading")
	}
}
