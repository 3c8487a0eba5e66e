package engine

import (
	"context"
	"testing"
	"time"

	"github.com/buzzkillb/tirade-engine/internal/domain"
	"github.com/buzzkillb/tirade-engine/internal/indicators"
	"github.com/buzzkillb/tirade-engine/internal/mlenhancer"
	"github.com/buzzkillb/tirade-engine/internal/neural"
	"github.com/buzzkillb/tirade-engine/internal/risk"
	"github.com/buzzkillb/tirade-engine/internal/strategy"
)

type fakePrices struct {
	candles []domain.Candle
}

func (f *fakePrices) FetchCandles(ctx context.Context, pair, interval string, limit int) ([]domain.Candle, error) {
	return f.candles, nil
}
func (f *fakePrices) FetchRaw(ctx context.Context, pair string) ([]domain.PriceTick, error) {
	return nil, nil
}

type fakeStore struct {
	domain.Store
	indicatorsStored int
	signalsStored    int
}

func (s *fakeStore) StoreIndicators(ctx context.Context, ind domain.Indicators) error {
	s.indicatorsStored++
	return nil
}
func (s *fakeStore) StoreSignal(ctx context.Context, pair string, sig domain.Signal) error {
	s.signalsStored++
	return nil
}
func (s *fakeStore) PublishTradingConfig(ctx context.Context, pair string, fields map[string]interface{}) error {
	return nil
}
func (s *fakeStore) OpenPositionForWallet(ctx context.Context, address string) (*domain.Position, error) {
	return nil, nil
}
func (s *fakeStore) TradeHistory(ctx context.Context, pair string, limit int) ([]domain.TradeOutcome, error) {
	return nil, nil
}

type fakeSwap struct{}

func (f *fakeSwap) Execute(ctx context.Context, wallet domain.Wallet, dir domain.SwapDirection, qty, slippageBps float64, dryRun bool) (domain.SwapResult, error) {
	return domain.SwapResult{Success: true}, nil
}
func (f *fakeSwap) BalanceOf(ctx context.Context, wallet domain.Wallet) (domain.Balance, error) {
	return domain.Balance{Base: 10, Quote: 1000}, nil
}

func flatCandles(n int, price float64) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		out[i] = domain.Candle{Close: price, Timestamp: time.Now()}
	}
	return out
}

func TestNewRejectsEmptyPair(t *testing.T) {
	_, err := New(Config{Pair: "", CyclePeriodSecs: 30}, Deps{Wallets: []domain.Wallet{{ID: "a"}}})
	if err == nil {
		t.Fatal("expected error for empty pair")
	}
}

func TestNewRejectsNoWallets(t *testing.T) {
	_, err := New(Config{Pair: "SOL/USDC", CyclePeriodSecs: 30}, Deps{Wallets: nil})
	if err == nil {
		t.Fatal("expected error for no wallets")
	}
}

func TestRunCycleSkipsOnEmptyPriceWindow(t *testing.T) {
	store := &fakeStore{}
	e, err := New(Config{Pair: "SOL/USDC", CyclePeriodSecs: 30}, Deps{
		Wallets:    []domain.Wallet{{ID: "a", Address: "A"}},
		Prices:     &fakePrices{},
		Store:      store,
		Swap:       &fakeSwap{},
		Indicators: indicators.New(indicators.DefaultConfig()),
		Strategy:   strategy.New(strategy.DefaultConfig()),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e.runCycle(context.Background())
	if store.indicatorsStored != 0 {
		t.Fatal("expected no indicators stored on empty price window")
	}
}

func TestRunCycleStoresIndicatorsAndSignal(t *testing.T) {
	store := &fakeStore{}
	e, err := New(Config{Pair: "SOL/USDC", CyclePeriodSecs: 30}, Deps{
		Wallets:    []domain.Wallet{{ID: "a", Address: "A"}},
		Prices:     &fakePrices{candles: flatCandles(60, 100)},
		Store:      store,
		Swap:       &fakeSwap{},
		Indicators: indicators.New(indicators.DefaultConfig()),
		Strategy:   strategy.New(strategy.DefaultConfig()),
		ML:         mlenhancer.New(mlenhancer.DefaultConfig()),
		Neural:     neural.New(neural.DefaultConfig()),
		Risk:       risk.New(risk.DefaultConfig()),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e.runCycle(context.Background())
	if store.indicatorsStored != 1 {
		t.Fatalf("expected indicators stored once, got %d", store.indicatorsStored)
	}
	if store.signalsStored != 1 {
		t.Fatalf("expected signal stored once, got %d", store.signalsStored)
	}
}
