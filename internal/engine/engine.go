// Package engine implements the Trading Engine (C7): the periodic cycle
// orchestrator that wires the price feed and C1-C6 into one sequential
// loop, adapted from the teacher's SpotController ticker main loop
// (internal/autopilot/spot_controller.go).
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/buzzkillb/tirade-engine/internal/circuit"
	"github.com/buzzkillb/tirade-engine/internal/domain"
	"github.com/buzzkillb/tirade-engine/internal/indicators"
	"github.com/buzzkillb/tirade-engine/internal/logging"
	"github.com/buzzkillb/tirade-engine/internal/mlenhancer"
	"github.com/buzzkillb/tirade-engine/internal/neural"
	"github.com/buzzkillb/tirade-engine/internal/registry"
	"github.com/buzzkillb/tirade-engine/internal/risk"
	"github.com/buzzkillb/tirade-engine/internal/signalproc"
	"github.com/buzzkillb/tirade-engine/internal/strategy"
)

const candleLimit = 200

// Config holds the cycle loop's own tunables; every other component keeps
// its own Config.
type Config struct {
	Pair            string
	CyclePeriodSecs int
	SlippageBps     float64
}

func DefaultConfig() Config {
	return Config{Pair: "SOL/USDC", CyclePeriodSecs: 30, SlippageBps: 50}
}

// Deps bundles every collaborator the engine orchestrates but does not
// construct itself.
type Deps struct {
	Prices  domain.PriceSource
	Store   domain.Store
	Swap    domain.Swap
	Wallets []domain.Wallet

	Indicators *indicators.Engine
	Strategy   *strategy.Strategy
	ML         *mlenhancer.Enhancer
	Neural     *neural.Enhancer
	Risk       *risk.Manager
	Breaker    *circuit.Breaker
	Trailing   *risk.TrailingStopTracker

	Logger *logging.Logger

	// OnSignal, when set, is called with every signal produced by a cycle
	// after enhancement, before dispatch -- used to push live updates to the
	// status API's websocket hub without the engine depending on it directly.
	OnSignal func(domain.Signal)
}

// Engine runs the single-threaded cooperative cycle loop described in
// spec.md §4.7/§5: cycles are strictly serial, and C7/C3/C4/C5/C6 need no
// internal locking because only one cycle is ever in flight.
type Engine struct {
	cfg  Config
	deps Deps

	reg  *registry.Registry
	proc *signalproc.Processor

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New performs spec.md §4.7's startup order up through registry
// construction; call Start to load history, recover the registry, and
// enter the loop.
func New(cfg Config, deps Deps) (*Engine, error) {
	if cfg.Pair == "" {
		return nil, fmt.Errorf("%w: empty trading pair", domain.ErrInput)
	}
	if len(deps.Wallets) == 0 {
		return nil, fmt.Errorf("%w: no wallets configured", domain.ErrInput)
	}

	// A disabled C3/C4 must reach the processor as a nil interface, not as a
	// typed nil pointer, so its own nil checks skip learning.
	var ml signalproc.Learner
	if deps.ML != nil {
		ml = deps.ML
	}
	var nl interface{ Learn(domain.TradeOutcome) }
	if deps.Neural != nil {
		nl = deps.Neural
	}

	reg := registry.New(deps.Wallets)
	proc := signalproc.New(cfg.Pair, deps.Swap, deps.Store, reg, ml, nl, deps.Risk, deps.Breaker, deps.Trailing, cfg.SlippageBps)

	return &Engine{cfg: cfg, deps: deps, reg: reg, proc: proc}, nil
}

// Start loads C3's trade history, replays it into C4's accuracy counters,
// publishes the trading-config record, recovers the registry from Store,
// and launches the cycle loop goroutine.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine already running")
	}

	if e.deps.ML != nil {
		if err := e.deps.ML.LoadHistory(ctx, e.deps.Store, e.cfg.Pair); err != nil {
			e.log().Warn("failed to load ML trade history, starting with empty memory", "error", err)
		}
	}
	if e.deps.Neural != nil {
		history, err := e.deps.Store.TradeHistory(ctx, e.cfg.Pair, 200)
		if err != nil {
			e.log().Warn("failed to load neural trade history, starting with default accuracy", "error", err)
		} else {
			e.deps.Neural.Replay(history)
		}
	}

	if err := e.deps.Store.PublishTradingConfig(ctx, e.cfg.Pair, map[string]interface{}{
		"cycle_period_secs": e.cfg.CyclePeriodSecs,
		"wallet_count":      len(e.deps.Wallets),
	}); err != nil {
		e.log().Warn("failed to publish trading config", "error", err)
	}

	if err := e.reg.Recover(ctx, e.deps.Store); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("%w: registry recovery failed", err)
	}

	e.running = true
	e.stopChan = make(chan struct{})
	e.mu.Unlock()

	e.wg.Add(1)
	go e.runLoop()

	e.log().Info("trading engine started", "pair", e.cfg.Pair, "wallets", len(e.deps.Wallets))
	return nil
}

// Registry exposes the position registry for read-only reporting (the
// status API surfaces it; the engine itself is the only writer).
func (e *Engine) Registry() *registry.Registry {
	return e.reg
}

func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine not running")
	}
	e.running = false
	close(e.stopChan)
	e.mu.Unlock()

	e.wg.Wait()
	e.log().Info("trading engine stopped")
	return nil
}

func (e *Engine) runLoop() {
	defer e.wg.Done()

	period := time.Duration(e.cfg.CyclePeriodSecs) * time.Second
	if period <= 0 {
		period = 30 * time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.runCycle(context.Background())
		}
	}
}

// runCycle executes exactly the six steps of spec.md §4.7's cycle loop.
func (e *Engine) runCycle(ctx context.Context) {
	prices, err := e.fetchWindow(ctx)
	if err != nil {
		e.log().Warn("cycle skipped: price fetch failed", "error", err)
		return
	}
	if len(prices) == 0 {
		return
	}

	ind := e.deps.Indicators.Compute(e.cfg.Pair, prices, time.Now().Unix())
	if err := e.deps.Store.StoreIndicators(ctx, ind); err != nil {
		e.log().Warn("failed to persist indicators", "error", err)
	}

	sig := e.deps.Strategy.Analyze(ind)
	if e.deps.ML != nil {
		sig = e.deps.ML.Enhance(sig, ind)
	}
	if e.deps.Neural != nil {
		sig = e.deps.Neural.Enhance(sig, prices, ind)
	}
	if err := e.deps.Store.StoreSignal(ctx, e.cfg.Pair, sig); err != nil {
		e.log().Warn("failed to persist signal", "error", err)
	}
	if e.deps.OnSignal != nil {
		e.deps.OnSignal(sig)
	}

	if sig.Kind == domain.Buy && e.deps.Breaker != nil {
		if ok, reason := e.deps.Breaker.CanTrade(); !ok {
			e.log().Info("cycle BUY suppressed by circuit breaker", "reason", reason)
			return
		}
	}

	positionsBefore := e.reg.ActiveCount()
	note, err := e.proc.Dispatch(ctx, sig, ind)
	if err != nil {
		e.log().Error("dispatch failed", "error", err, "signal", sig.Kind.String())
		return
	}

	positionChanged := e.reg.ActiveCount() != positionsBefore
	if sig.Kind != domain.Hold || positionChanged {
		e.log().Info("cycle summary", "signal", sig.Kind.String(), "confidence", sig.Confidence, "price", sig.Price, "note", note)
	}
}

// fetchWindow prefers 1-minute candles up to candleLimit samples, falling
// back to raw ticks when the candle feed returns nothing.
func (e *Engine) fetchWindow(ctx context.Context) ([]float64, error) {
	candles, err := e.deps.Prices.FetchCandles(ctx, e.cfg.Pair, "1m", candleLimit)
	if err == nil && len(candles) > 0 {
		out := make([]float64, len(candles))
		for i, c := range candles {
			out[i] = c.Close
		}
		return out, nil
	}

	ticks, terr := e.deps.Prices.FetchRaw(ctx, e.cfg.Pair)
	if terr != nil {
		if err != nil {
			return nil, fmt.Errorf("%w: candles and ticks both failed", err)
		}
		return nil, terr
	}
	out := make([]float64, len(ticks))
	for i, t := range ticks {
		out[i] = t.Price
	}
	return out, nil
}

func (e *Engine) log() *logging.Logger {
	if e.deps.Logger != nil {
		return e.deps.Logger
	}
	return logging.Default()
}
