// Package signalproc implements the Signal Processor (C6): the multi-wallet
// dispatcher that turns a BUY/SELL/HOLD signal into wallet selection, swap
// execution, position bookkeeping, and exit-rule enforcement.
package signalproc

import (
	"context"
	"fmt"

	"github.com/buzzkillb/tirade-engine/internal/circuit"
	"github.com/buzzkillb/tirade-engine/internal/domain"
	"github.com/buzzkillb/tirade-engine/internal/registry"
	"github.com/buzzkillb/tirade-engine/internal/risk"
)

// Learner is the subset of C3/C4 that consumes realized outcomes.
type Learner interface {
	Record(outcome domain.TradeOutcome) bool
	RecentForFlush(n int) []domain.TradeOutcome
}

type neuralLearner interface {
	Learn(outcome domain.TradeOutcome)
}

// Processor owns last_buy_wallet_index, the only mutable state C6 carries
// across cycles.
type Processor struct {
	pair               string
	lastBuyWalletIndex int

	swap  domain.Swap
	store domain.Store
	reg   *registry.Registry

	ml     Learner
	neural neuralLearner

	// risk answers "how much" and "are we still allowed to open" for BUY
	// dispatch (position_size_percentage, max_open_positions,
	// max_daily_drawdown_pct); breaker halts new BUYs once realized losses
	// trip its thresholds; trailing raises the effective stop loss once a
	// position is sufficiently in profit. All three are optional -- a nil
	// risk/breaker/trailing reduces C6 to its un-gated baseline behavior.
	risk     *risk.Manager
	breaker  *circuit.Breaker
	trailing *risk.TrailingStopTracker

	slippageBps float64
}

func New(pair string, swap domain.Swap, store domain.Store, reg *registry.Registry, ml Learner, neural neuralLearner, riskMgr *risk.Manager, breaker *circuit.Breaker, trailing *risk.TrailingStopTracker, slippageBps float64) *Processor {
	return &Processor{
		pair:               pair,
		lastBuyWalletIndex: -1,
		swap:               swap,
		store:              store,
		reg:                reg,
		ml:                 ml,
		neural:             neural,
		risk:               riskMgr,
		breaker:            breaker,
		trailing:           trailing,
		slippageBps:        slippageBps,
	}
}

// Dispatch applies sig to the registry, executing swaps and persisting
// state as needed. It never returns an error for a skipped dispatch (e.g.
// no free wallet) -- those are logged via the returned note. ind supplies
// the exit-rule predicates (rsi_fast, momentum_decay) for the HOLD path.
func (p *Processor) Dispatch(ctx context.Context, sig domain.Signal, ind domain.Indicators) (string, error) {
	switch sig.Kind {
	case domain.Buy:
		return p.handleBuy(ctx, sig)
	case domain.Sell:
		return p.handleSell(ctx, sig)
	default:
		return p.handleHold(ctx, sig, ind)
	}
}

func (p *Processor) handleBuy(ctx context.Context, sig domain.Signal) (string, error) {
	if p.risk != nil {
		if ok, reason := p.risk.CanOpenPosition(); !ok {
			return fmt.Sprintf("BUY suppressed by risk manager: %s", reason), nil
		}
	}

	n := p.reg.Len()
	idx, ok := p.nextFreeWallet(n)
	if !ok {
		return "no available wallets", nil
	}

	note, err := p.executeBuy(ctx, idx, sig)
	if err == nil && note != "" {
		return note, nil
	}
	if err != nil {
		// One fallback attempt at the next free wallet.
		idx2, ok2 := p.nextFreeWalletExcluding(n, idx)
		if !ok2 {
			return "", fmt.Errorf("buy failed on wallet %d and no fallback available: %w", idx, err)
		}
		return p.executeBuy(ctx, idx2, sig)
	}
	return note, nil
}

// nextFreeWallet implements spec.md's BUY wallet-selection rule: single-
// wallet mode is slot 0 only; multi-wallet mode probes starting at
// (last+1) mod N and walks forward up to N slots.
func (p *Processor) nextFreeWallet(n int) (int, bool) {
	if n == 1 {
		if !p.reg.Has(0) {
			return 0, true
		}
		return 0, false
	}
	start := (p.lastBuyWalletIndex + 1) % n
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if !p.reg.Has(idx) {
			return idx, true
		}
	}
	return 0, false
}

func (p *Processor) nextFreeWalletExcluding(n, exclude int) (int, bool) {
	for i := 0; i < n; i++ {
		if i == exclude {
			continue
		}
		if !p.reg.Has(i) {
			return i, true
		}
	}
	return 0, false
}

func (p *Processor) executeBuy(ctx context.Context, idx int, sig domain.Signal) (string, error) {
	wallet := p.reg.Wallet(idx)

	quoteAmount := 1.0
	if p.risk != nil {
		balance, err := p.swap.BalanceOf(ctx, wallet)
		if err != nil {
			return "", fmt.Errorf("%w: read wallet balance before buy", err)
		}
		if amt := p.risk.QuoteAmountForBuy(balance.Quote); amt > 0 {
			quoteAmount = amt
		}
	}

	result, err := p.swap.Execute(ctx, wallet, domain.QuoteIn, quoteAmount, p.slippageBpsOrDefault(), false)
	if err != nil {
		return "", err
	}
	if !result.Success {
		return "", result.Error
	}

	entryPrice := sig.Price
	if result.ExecPrice != nil {
		entryPrice = *result.ExecPrice
	}
	qty := 1.0
	if result.BaseDelta != nil {
		qty = *result.BaseDelta
	}
	var usdcSpent *float64
	if result.QuoteDelta != nil && *result.QuoteDelta < 0 {
		usdcSpent = result.QuoteDelta
	}

	positionID, err := p.store.CreatePosition(ctx, wallet, p.pair, entryPrice, qty, usdcSpent)
	if err != nil {
		return "", fmt.Errorf("%w: persist new position", err)
	}

	pos := &domain.Position{
		PositionID: positionID,
		WalletID:   wallet.ID,
		Pair:       p.pair,
		EntryPrice: entryPrice,
		EntryTime:  sig.Timestamp,
		Quantity:   qty,
		USDCSpent:  usdcSpent,
		Status:     domain.PositionOpen,
	}
	p.reg.Set(idx, pos)
	p.lastBuyWalletIndex = idx

	if p.risk != nil {
		p.risk.RegisterPositionOpen()
	}
	if p.trailing != nil {
		p.trailing.Open(idx, entryPrice, entryPrice*(1+stopLossBand))
	}

	return fmt.Sprintf("BUY filled on wallet %d at %.4f", idx, entryPrice), nil
}

func (p *Processor) handleSell(ctx context.Context, sig domain.Signal) (string, error) {
	idx, ok := p.bestPerformingWallet(sig.Price)
	if !ok {
		return "no open positions to sell", nil
	}
	return p.closePosition(ctx, idx, sig)
}

// bestPerformingWallet picks argmax pnl across open slots, ties broken by
// lowest index.
func (p *Processor) bestPerformingWallet(currentPrice float64) (int, bool) {
	best := -1
	var bestPnL float64
	for i := 0; i < p.reg.Len(); i++ {
		pos := p.reg.Get(i)
		if pos == nil {
			continue
		}
		pnl := (currentPrice - pos.EntryPrice) / pos.EntryPrice
		if best == -1 || pnl > bestPnL {
			best = i
			bestPnL = pnl
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}

func (p *Processor) closePosition(ctx context.Context, idx int, sig domain.Signal) (string, error) {
	pos := p.reg.Get(idx)
	result, err := p.swap.Execute(ctx, p.reg.Wallet(idx), domain.BaseIn, pos.Quantity, p.slippageBpsOrDefault(), false)
	if err != nil {
		return "", err
	}
	if !result.Success {
		return "", result.Error
	}

	exitPrice := sig.Price
	if result.ExecPrice != nil {
		exitPrice = *result.ExecPrice
	}
	var usdcReceived *float64
	if result.QuoteDelta != nil && *result.QuoteDelta > 0 {
		usdcReceived = result.QuoteDelta
	}

	if err := p.store.ClosePosition(ctx, pos.PositionID, exitPrice, usdcReceived); err != nil {
		return "", fmt.Errorf("%w: persist position close", err)
	}

	pos.Close(exitPrice, sig.Timestamp, usdcReceived)
	outcome := domain.TradeOutcome{
		EntryPrice:      pos.EntryPrice,
		ExitPrice:       exitPrice,
		PnL:             *pos.PnLPercent,
		Success:         *pos.PnLPercent > 0,
		Timestamp:       sig.Timestamp,
		USDCPnL:         usdcPnL(pos.USDCSpent, usdcReceived),
		DurationSeconds: *pos.DurationSeconds,
	}
	if p.ml != nil && p.ml.Record(outcome) {
		// Every fifth outcome, persist the newest five so C3's memory can be
		// reloaded from Store. A failed write is not retried.
		for _, o := range p.ml.RecentForFlush(5) {
			_ = p.store.RecordTradeOutcome(ctx, o)
		}
	}
	if p.neural != nil {
		p.neural.Learn(outcome)
	}
	if p.breaker != nil {
		p.breaker.RecordTrade(*pos.PnLPercent * 100)
	}
	if p.risk != nil {
		p.risk.RegisterPositionClose(*pos.PnLPercent * 100)
	}
	if p.trailing != nil {
		p.trailing.Close(idx)
	}
	p.reg.Clear(idx)

	return fmt.Sprintf("SELL filled on wallet %d at %.4f (pnl %.2f%%)", idx, exitPrice, *pos.PnLPercent*100), nil
}

func (p *Processor) slippageBpsOrDefault() float64 {
	if p.slippageBps > 0 {
		return p.slippageBps
	}
	return 50
}

func usdcPnL(spent, received *float64) *float64 {
	if spent == nil || received == nil {
		return nil
	}
	s := *spent
	if s < 0 {
		s = -s
	}
	if s == 0 {
		return nil
	}
	v := (*received - s) / s
	return &v
}

func (p *Processor) handleHold(ctx context.Context, sig domain.Signal, ind domain.Indicators) (string, error) {
	var note string
	rsi := 0.0
	if ind.RSIFast != nil {
		rsi = *ind.RSIFast
	}
	for i := 0; i < p.reg.Len(); i++ {
		pos := p.reg.Get(i)
		if pos == nil {
			continue
		}
		reason, fire := p.checkExit(i, pos, sig.Price, rsi, ind.MomentumDecay)
		if !fire {
			continue
		}
		exitSig := domain.Signal{
			Kind:       domain.Sell,
			Confidence: 0.8,
			Price:      sig.Price,
			Timestamp:  sig.Timestamp,
		}
		exitSig.AddReason(reason)
		out, err := p.closePosition(ctx, i, exitSig)
		if err != nil {
			return note, err
		}
		note = out
	}
	return note, nil
}

// checkExit consults the trailing-stop tracker (when wired and enabled)
// ahead of the fixed exit band: a trailing stop that has activated and
// raised its floor above the fixed stop loss fires first. Absent a
// trailing tracker, this is exactly ExitRule.
func (p *Processor) checkExit(idx int, pos *domain.Position, currentPrice, rsi float64, momentumDecay bool) (string, bool) {
	if p.trailing != nil {
		if stop, triggered := p.trailing.Update(idx, currentPrice); triggered {
			return fmt.Sprintf("TRAILING STOP (%.4f)", stop), true
		}
	}
	return ExitRule(pos.EntryPrice, currentPrice, rsi, momentumDecay)
}

// stopLossBand and takeProfitBand are the fixed exit thresholds; a BUY's
// initial trailing-stop floor (before any trailing activation) sits at
// stopLossBand so the trailing tracker never fires tighter than the plain
// stop loss would have.
const (
	stopLossBand   = -0.012
	takeProfitBand = 0.02
)

// ExitRule evaluates spec.md §4.6.1's four exit predicates in priority
// order. Stop loss always wins ties with other fired predicates.
func ExitRule(entryPrice, currentPrice, rsi float64, momentumDecay bool) (string, bool) {
	if entryPrice == 0 {
		return "", false
	}
	pnl := (currentPrice - entryPrice) / entryPrice

	if pnl < stopLossBand {
		return "STOP LOSS (-1.2%)", true
	}
	if pnl > takeProfitBand {
		return "TAKE PROFIT (+2.0%)", true
	}
	if rsi > 70 && pnl > 0.014 {
		return "RSI OVERBOUGHT", true
	}
	if momentumDecay && pnl > 0.014 {
		return "MOMENTUM DECAY", true
	}
	return "", false
}
