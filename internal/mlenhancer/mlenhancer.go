// Package mlenhancer implements the ML Enhancer (C3): a bounded ring of
// recent trade outcomes drives additive confidence adjustments to the base
// Signal, with a confidence floor that converts low-confidence signals to
// Hold.
package mlenhancer

import (
	"context"

	"github.com/buzzkillb/tirade-engine/internal/domain"
)

const ringCapacity = 200

// Config holds the enhancer's tunables (spec.md §6).
type Config struct {
	Enabled               bool
	MinConfidenceThreshold float64
	MaxPositionSize        float64
}

func DefaultConfig() Config {
	return Config{
		Enabled:                true,
		MinConfidenceThreshold: 0.55,
		MaxPositionSize:        0.9,
	}
}

// Enhancer owns the bounded trade-outcome ring and applies C3's confidence
// adjustments. It is single-mutator: only the engine's cycle loop calls it.
type Enhancer struct {
	cfg     Config
	outcomes []domain.TradeOutcome
	sinceFlush int
}

func New(cfg Config) *Enhancer {
	return &Enhancer{cfg: cfg}
}

// LoadHistory reconstitutes the ring from Store on startup (spec.md §4.7
// startup order). A missing or empty history is not an error (ErrLearningMiss
// semantics): the enhancer simply runs with an empty memory.
func (e *Enhancer) LoadHistory(ctx context.Context, store domain.Store, pair string) error {
	history, err := store.TradeHistory(ctx, pair, ringCapacity)
	if err != nil {
		return err
	}
	// TradeHistory is newest-first; the ring keeps oldest-first so recording
	// order matches live appends.
	e.outcomes = make([]domain.TradeOutcome, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		e.outcomes = append(e.outcomes, history[i])
	}
	return nil
}

// Enhance applies C3's adjustments to sig in place semantics (returns a new
// value; callers chain it into C4).
func (e *Enhancer) Enhance(sig domain.Signal, ind domain.Indicators) domain.Signal {
	if !e.cfg.Enabled {
		return sig
	}

	if len(e.outcomes) == 0 {
		if ind.Volatility24h != nil && *ind.Volatility24h > 0.25 {
			sig.Confidence -= 0.05
			sig.AddReason("ML: No trade history - minimal adjustments applied")
		} else {
			sig.AddReason("ML: No trade history - minimal adjustments applied")
		}
		return e.applyFloor(sig)
	}

	winRate := e.winRate()
	consecutiveLosses := e.consecutiveLosses()
	volatility := 0.0
	if ind.Volatility24h != nil {
		volatility = *ind.Volatility24h
	}

	switch {
	case winRate > 0.7:
		sig.Confidence += 0.05
	case winRate > 0.6:
		sig.Confidence += 0.03
	case winRate < 0.3:
		sig.Confidence -= 0.05
	case winRate < 0.4:
		sig.Confidence -= 0.03
	}

	switch {
	case consecutiveLosses > 5:
		sig.Confidence -= 0.05
	case consecutiveLosses > 3:
		sig.Confidence -= 0.03
	}

	switch {
	case volatility > 0.25:
		sig.Confidence -= 0.08
	case volatility > 0.15:
		sig.Confidence -= 0.05
	}

	if sig.Confidence < 0.2 {
		sig.Confidence = 0.2
	}
	if sig.Confidence > 0.9 {
		sig.Confidence = 0.9
	}

	sig.AddReason("ML: Win Rate %.1f%%", winRate*100)
	sig.AddReason("ML: Consecutive Losses %d", consecutiveLosses)
	sig.AddReason("ML: Market Regime %s", e.marketRegime(winRate, volatility))
	sig.AddReason("ML: Risk Score %.2f", 1-winRate)

	return e.applyFloor(sig)
}

func (e *Enhancer) applyFloor(sig domain.Signal) domain.Signal {
	if sig.Confidence < e.cfg.MinConfidenceThreshold {
		sig.Kind = domain.Hold
		sig.AddReason("ML confidence too low (%.0f%% < %.0f%%) - converted to HOLD", sig.Confidence*100, e.cfg.MinConfidenceThreshold*100)
	}
	return sig
}

// marketRegime is the classifier embedded in the original predictor, kept
// distinct from the neural enhancer's own regime tag (see DESIGN.md
// grounding notes on the corpus's three separate regime classifiers).
func (e *Enhancer) marketRegime(winRate, volatility float64) string {
	switch {
	case volatility > 0.20:
		return "Volatile"
	case winRate > 0.6:
		return "Trending"
	default:
		return "Consolidating"
	}
}

// winRate is the fraction of successes among the last up-to-10 outcomes;
// below 3 outcomes the raw rate is damped toward 0.4 to reduce noise.
func (e *Enhancer) winRate() float64 {
	n := len(e.outcomes)
	if n == 0 {
		return 0
	}
	window := e.outcomes
	if n > 10 {
		window = e.outcomes[n-10:]
	}
	successes := 0
	for _, o := range window {
		if o.Success {
			successes++
		}
	}
	raw := float64(successes) / float64(len(window))
	if len(e.outcomes) < 3 {
		return 0.4 + raw*0.2
	}
	return raw
}

// consecutiveLosses counts back from the newest outcome until a success.
func (e *Enhancer) consecutiveLosses() int {
	count := 0
	for i := len(e.outcomes) - 1; i >= 0; i-- {
		if e.outcomes[i].Success {
			break
		}
		count++
	}
	return count
}

// OptimalPositionSize supplements spec.md's position-sizing refinement
// (ported from the original's calculate_optimal_position_size, reintroduced
// per SPEC_FULL.md §4.3). It returns a size factor in [0.05,
// MaxPositionSize] and never changes the BUY/SELL/HOLD decision itself. The
// signal processor does not call it: BUY sizing uses
// position_size_percentage alone.
func (e *Enhancer) OptimalPositionSize(ind domain.Indicators) float64 {
	size := e.cfg.MaxPositionSize
	consecutiveLosses := e.consecutiveLosses()
	winRate := e.winRate()
	volatility := 0.0
	if ind.Volatility24h != nil {
		volatility = *ind.Volatility24h
	}

	switch {
	case consecutiveLosses > 4:
		size *= 0.3
	case consecutiveLosses > 2:
		size *= 0.5
	}
	if volatility > 0.20 {
		size *= 0.6
	}
	if winRate < 0.4 {
		size *= 0.7
	}
	if winRate > 0.7 {
		size = e.cfg.MaxPositionSize
	}

	if size < 0.05 {
		size = 0.05
	}
	if size > e.cfg.MaxPositionSize {
		size = e.cfg.MaxPositionSize
	}
	return size
}

// Record appends one outcome to the ring, evicting the oldest once capacity
// is exceeded, and reports whether this record crosses a 5-outcome flush
// boundary (the engine then persists the newest 5 to Store).
func (e *Enhancer) Record(outcome domain.TradeOutcome) (shouldFlush bool) {
	e.outcomes = append(e.outcomes, outcome)
	if len(e.outcomes) > ringCapacity {
		e.outcomes = e.outcomes[len(e.outcomes)-ringCapacity:]
	}
	e.sinceFlush++
	if e.sinceFlush >= 5 {
		e.sinceFlush = 0
		return true
	}
	return false
}

// RecentForFlush returns the newest n outcomes, for flushing to Store.
func (e *Enhancer) RecentForFlush(n int) []domain.TradeOutcome {
	if n > len(e.outcomes) {
		n = len(e.outcomes)
	}
	return e.outcomes[len(e.outcomes)-n:]
}

// Stats exposes observability fields for the status API / logs.
type Stats struct {
	TotalTrades        int
	WinRate             float64
	ConsecutiveLosses   int
	MinConfidenceThreshold float64
	Enabled             bool
}

func (e *Enhancer) Stats() Stats {
	return Stats{
		TotalTrades:            len(e.outcomes),
		WinRate:                e.winRate(),
		ConsecutiveLosses:      e.consecutiveLosses(),
		MinConfidenceThreshold: e.cfg.MinConfidenceThreshold,
		Enabled:                e.cfg.Enabled,
	}
}

// RingSize reports the current ring length, used by the I5 invariant check.
func (e *Enhancer) RingSize() int { return len(e.outcomes) }
