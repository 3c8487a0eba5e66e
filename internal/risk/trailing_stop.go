package risk

import (
	"sync"
	"time"
)

// TrailingStopConfig controls the optional trailing-stop supplement to
// C6's fixed exit rules (spec.md §4.6.1 only specifies a fixed -1.2%/+2.0%
// band; this raises the effective stop once a position is sufficiently in
// profit). Long-only, matching spec.md's Non-goal on short selling.
type TrailingStopConfig struct {
	Enabled           bool
	TrailingPercent   float64 // distance below the high-water mark
	ActivationPercent float64 // profit % required before trailing engages
}

type trailingPosition struct {
	entryPrice      float64
	currentStopLoss float64
	highWaterMark   float64
	activated       bool
	lastUpdate      time.Time
}

// TrailingStopTracker maintains one trailing stop per wallet slot.
type TrailingStopTracker struct {
	cfg       TrailingStopConfig
	mu        sync.Mutex
	positions map[int]*trailingPosition
}

func NewTrailingStopTracker(cfg TrailingStopConfig) *TrailingStopTracker {
	return &TrailingStopTracker{cfg: cfg, positions: make(map[int]*trailingPosition)}
}

func (t *TrailingStopTracker) Open(walletIdx int, entryPrice, initialStopLoss float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.positions[walletIdx] = &trailingPosition{
		entryPrice:      entryPrice,
		currentStopLoss: initialStopLoss,
		highWaterMark:   entryPrice,
		lastUpdate:      time.Now(),
	}
}

func (t *TrailingStopTracker) Close(walletIdx int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.positions, walletIdx)
}

// Update raises the effective stop loss as price advances and reports
// whether the (possibly tightened) stop just triggered.
func (t *TrailingStopTracker) Update(walletIdx int, currentPrice float64) (stopLoss float64, triggered bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos, ok := t.positions[walletIdx]
	if !ok {
		return 0, false
	}
	pos.lastUpdate = time.Now()

	if currentPrice <= pos.currentStopLoss {
		return pos.currentStopLoss, true
	}

	if currentPrice > pos.highWaterMark {
		pos.highWaterMark = currentPrice
	}

	profitPercent := ((currentPrice - pos.entryPrice) / pos.entryPrice) * 100
	if !pos.activated && profitPercent >= t.cfg.ActivationPercent {
		pos.activated = true
	}

	if pos.activated && t.cfg.Enabled {
		trailingDistance := pos.highWaterMark * (t.cfg.TrailingPercent / 100)
		newStopLoss := pos.highWaterMark - trailingDistance
		if newStopLoss > pos.currentStopLoss {
			pos.currentStopLoss = newStopLoss
		}
	}

	return pos.currentStopLoss, false
}
