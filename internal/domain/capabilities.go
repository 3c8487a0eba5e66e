package domain

import "context"

// SwapDirection is the side of a Swap.execute call.
type SwapDirection int

const (
	// BaseIn sells the base asset (a SELL of the pair's position).
	BaseIn SwapDirection = iota
	// QuoteIn spends the quote asset (a BUY of the pair's position).
	QuoteIn
)

// SwapResult is the outcome of one Swap.execute call. Deltas are signed:
// positive means received, negative means spent.
type SwapResult struct {
	Success    bool
	Signature  string
	ExecPrice  *float64
	BaseDelta  *float64
	QuoteDelta *float64
	Error      error
}

// Balance is a point-in-time wallet balance reading.
type Balance struct {
	Base      float64
	Quote     float64
	Timestamp int64
}

// Swap is the per-wallet on-chain execution capability. Implementations may
// be a dry-run simulator or a real quote+sign+submit+confirm pipeline; the
// engine only ever sees this interface.
type Swap interface {
	Execute(ctx context.Context, wallet Wallet, direction SwapDirection, qtyOrQuote float64, slippageBps float64, dryRun bool) (SwapResult, error)
	BalanceOf(ctx context.Context, wallet Wallet) (Balance, error)
}

// PriceSource is the price-acquisition capability.
type PriceSource interface {
	FetchCandles(ctx context.Context, pair string, interval string, limit int) ([]Candle, error)
	FetchRaw(ctx context.Context, pair string) ([]PriceTick, error)
}

// Store is the persistence capability backing positions, indicators,
// signals, trade outcomes, and the trading-config record.
type Store interface {
	CreateWallet(ctx context.Context, address string) error
	CreatePosition(ctx context.Context, wallet Wallet, pair string, entryPrice, qty float64, usdcSpent *float64) (string, error)
	ClosePosition(ctx context.Context, positionID string, exitPrice float64, usdcReceived *float64) error
	OpenPositionForWallet(ctx context.Context, address string) (*Position, error)
	StoreIndicators(ctx context.Context, ind Indicators) error
	StoreSignal(ctx context.Context, pair string, sig Signal) error
	RecordTradeOutcome(ctx context.Context, outcome TradeOutcome) error
	TradeHistory(ctx context.Context, pair string, limit int) ([]TradeOutcome, error)
	Health(ctx context.Context) error
	CountLearningRows(ctx context.Context) (int, error)
	PublishTradingConfig(ctx context.Context, pair string, fields map[string]interface{}) error
}
