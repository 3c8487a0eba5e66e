package signalproc

import (
	"context"
	"testing"
	"time"

	"github.com/buzzkillb/tirade-engine/internal/circuit"
	"github.com/buzzkillb/tirade-engine/internal/domain"
	"github.com/buzzkillb/tirade-engine/internal/registry"
	"github.com/buzzkillb/tirade-engine/internal/risk"
)

type stubSwap struct {
	execPrice *float64
}

func (s *stubSwap) Execute(ctx context.Context, wallet domain.Wallet, dir domain.SwapDirection, qty, slippageBps float64, dryRun bool) (domain.SwapResult, error) {
	return domain.SwapResult{Success: true, ExecPrice: s.execPrice}, nil
}
func (s *stubSwap) BalanceOf(ctx context.Context, wallet domain.Wallet) (domain.Balance, error) {
	return domain.Balance{}, nil
}

type stubStore struct {
	domain.Store
	nextID string
}

func (s *stubStore) CreatePosition(ctx context.Context, wallet domain.Wallet, pair string, entryPrice, qty float64, usdcSpent *float64) (string, error) {
	return s.nextID, nil
}
func (s *stubStore) ClosePosition(ctx context.Context, positionID string, exitPrice float64, usdcReceived *float64) error {
	return nil
}

func wallets(n int) []domain.Wallet {
	out := make([]domain.Wallet, n)
	for i := range out {
		out[i] = domain.Wallet{ID: string(rune('a' + i)), Address: string(rune('A' + i))}
	}
	return out
}

func TestBuyRotationAcrossThreeWallets(t *testing.T) {
	reg := registry.New(wallets(3))
	store := &stubStore{nextID: "p1"}
	proc := New("SOL/USDC", &stubSwap{}, store, reg, nil, nil, nil, nil, nil, 50)

	prices := []float64{100, 101, 102}
	for _, price := range prices {
		sig := domain.Signal{Kind: domain.Buy, Price: price, Timestamp: time.Now()}
		if _, err := proc.Dispatch(context.Background(), sig, domain.Indicators{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	for i, want := range []float64{100, 101, 102} {
		if !reg.Has(i) {
			t.Fatalf("wallet %d expected open position", i)
		}
		if reg.Get(i).EntryPrice != want {
			t.Fatalf("wallet %d expected entry %v, got %v", i, want, reg.Get(i).EntryPrice)
		}
	}
	if proc.lastBuyWalletIndex != 2 {
		t.Fatalf("expected last_buy_wallet_index 2, got %d", proc.lastBuyWalletIndex)
	}
}

func TestSingleWalletModeSkipsWhenOccupied(t *testing.T) {
	reg := registry.New(wallets(1))
	reg.Set(0, &domain.Position{EntryPrice: 100})
	proc := New("SOL/USDC", &stubSwap{}, &stubStore{}, reg, nil, nil, nil, nil, nil, 50)

	note, err := proc.Dispatch(context.Background(), domain.Signal{Kind: domain.Buy, Price: 105}, domain.Indicators{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if note != "no available wallets" {
		t.Fatalf("expected skip note, got %q", note)
	}
}

func TestSellPicksBestPerformingWallet(t *testing.T) {
	reg := registry.New(wallets(3))
	reg.Set(0, &domain.Position{PositionID: "p0", EntryPrice: 100, Quantity: 1})
	reg.Set(1, &domain.Position{PositionID: "p1", EntryPrice: 90, Quantity: 1})
	reg.Set(2, &domain.Position{PositionID: "p2", EntryPrice: 95, Quantity: 1})
	proc := New("SOL/USDC", &stubSwap{}, &stubStore{}, reg, nil, nil, nil, nil, nil, 50)

	// current price 100: pnl_0=0, pnl_1=+11.1%, pnl_2=+5.3% -> wallet 1 wins.
	_, err := proc.Dispatch(context.Background(), domain.Signal{Kind: domain.Sell, Price: 100, Timestamp: time.Now()}, domain.Indicators{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reg.Has(1) {
		t.Fatal("expected wallet 1 (best performer) to be cleared")
	}
	if !reg.Has(0) || !reg.Has(2) {
		t.Fatal("expected wallets 0 and 2 to remain open")
	}
}

func TestExitRuleStopLossWinsTies(t *testing.T) {
	reason, fire := ExitRule(100, 98.7, 50, false)
	if !fire || reason != "STOP LOSS (-1.2%)" {
		t.Fatalf("expected stop loss, got %q fire=%v", reason, fire)
	}
}

func TestExitRuleTakeProfit(t *testing.T) {
	reason, fire := ExitRule(100, 102.5, 50, false)
	if !fire || reason != "TAKE PROFIT (+2.0%)" {
		t.Fatalf("expected take profit, got %q fire=%v", reason, fire)
	}
}

func TestExitRuleRSIOverbought(t *testing.T) {
	reason, fire := ExitRule(100, 101.5, 75, false)
	if !fire || reason != "RSI OVERBOUGHT" {
		t.Fatalf("expected rsi overbought, got %q fire=%v", reason, fire)
	}
}

func TestExitRuleNoFireBelowThresholds(t *testing.T) {
	_, fire := ExitRule(100, 100.5, 50, false)
	if fire {
		t.Fatal("expected no exit")
	}
}

func TestClosePositionFeedsCircuitBreakerAndRiskManager(t *testing.T) {
	reg := registry.New(wallets(1))
	reg.Set(0, &domain.Position{PositionID: "p0", EntryPrice: 100, Quantity: 1, EntryTime: time.Now()})

	breaker := circuit.New(circuit.Config{Enabled: true, MaxLossPerHour: 100, MaxConsecutiveLosses: 1, CooldownMinutes: 30, MaxDailyLoss: 100, MaxDailyTrades: 100})
	riskMgr := risk.New(risk.Config{PositionSizePercentage: 0.1, MaxDailyDrawdownPct: 100})
	riskMgr.RegisterPositionOpen()

	proc := New("SOL/USDC", &stubSwap{}, &stubStore{}, reg, nil, nil, riskMgr, breaker, nil, 50)

	sig := domain.Signal{Kind: domain.Hold, Price: 98.7, Timestamp: time.Now()}
	if _, err := proc.Dispatch(context.Background(), sig, domain.Indicators{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := breaker.GetState(); got != circuit.StateOpen {
		t.Fatalf("expected the realized loss to trip the breaker, got state %v", got)
	}
	if open := riskMgr.Stats()["open_positions"]; open != 0 {
		t.Fatalf("expected the risk manager to register the position close, got %v open", open)
	}
}

func TestRiskManagerBlocksBuyAtOpenPositionCap(t *testing.T) {
	reg := registry.New(wallets(2))
	riskMgr := risk.New(risk.Config{PositionSizePercentage: 0.1, MaxOpenPositions: 1})
	riskMgr.RegisterPositionOpen()

	proc := New("SOL/USDC", &stubSwap{}, &stubStore{nextID: "p1"}, reg, nil, nil, riskMgr, nil, nil, 50)

	note, err := proc.Dispatch(context.Background(), domain.Signal{Kind: domain.Buy, Price: 100}, domain.Indicators{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reg.Has(0) || reg.Has(1) {
		t.Fatal("expected the risk manager to block the buy before any wallet was touched")
	}
	if note == "" {
		t.Fatal("expected a note explaining the suppression")
	}
}

func TestTrailingStopPreemptsFixedExitBand(t *testing.T) {
	reg := registry.New(wallets(1))
	reg.Set(0, &domain.Position{PositionID: "p0", EntryPrice: 100, Quantity: 1, EntryTime: time.Now()})

	trailing := risk.NewTrailingStopTracker(risk.TrailingStopConfig{Enabled: true, TrailingPercent: 1.0, ActivationPercent: 1.0})
	trailing.Open(0, 100, 100*(1+stopLossBand))

	proc := New("SOL/USDC", &stubSwap{}, &stubStore{}, reg, nil, nil, nil, nil, trailing, 50)

	if _, err := proc.Dispatch(context.Background(), domain.Signal{Kind: domain.Hold, Price: 101.8, Timestamp: time.Now()}, domain.Indicators{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reg.Has(0) {
		t.Fatal("expected the position to remain open while price keeps rising")
	}

	// 101.8 is +1.8%: past the 1% trailing activation but under the +2% take
	// profit, so the tracker raises its stop to 101.8*0.99 = 100.782.
	// 100.5 sits above the fixed -1.2% stop loss but below that raised stop
	// -- only the tracker should catch it.
	note, err := proc.Dispatch(context.Background(), domain.Signal{Kind: domain.Hold, Price: 100.5, Timestamp: time.Now()}, domain.Indicators{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reg.Has(0) {
		t.Fatal("expected the trailing stop to close the position")
	}
	if note == "" {
		t.Fatal("expected a note describing the trailing stop exit")
	}
}

func TestHoldHandlingClosesPositionOnStopLoss(t *testing.T) {
	reg := registry.New(wallets(1))
	reg.Set(0, &domain.Position{PositionID: "p0", EntryPrice: 100, Quantity: 1, EntryTime: time.Now()})
	proc := New("SOL/USDC", &stubSwap{}, &stubStore{}, reg, nil, nil, nil, nil, nil, 50)

	sig := domain.Signal{Kind: domain.Hold, Price: 98.7, Timestamp: time.Now()}
	note, err := proc.Dispatch(context.Background(), sig, domain.Indicators{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reg.Has(0) {
		t.Fatal("expected stop-loss exit to clear the position")
	}
	if note == "" {
		t.Fatal("expected a note describing the exit")
	}
}
