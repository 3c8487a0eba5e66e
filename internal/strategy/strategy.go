// Package strategy implements the rule-based base-signal strategy (C2): it
// maps a cycle's Indicators onto a BUY/SELL/HOLD Signal with an additive,
// order-stable confidence score and an auditable reasoning trail.
package strategy

import (
	"time"

	"github.com/buzzkillb/tirade-engine/internal/domain"
)

// Config holds the strategy's tunable thresholds.
type Config struct {
	PriceChangeThreshold float64
}

func DefaultConfig() Config {
	return Config{PriceChangeThreshold: 0.01}
}

type Strategy struct {
	cfg Config
}

func New(cfg Config) *Strategy {
	return &Strategy{cfg: cfg}
}

// Analyze produces the base Signal from the current Indicators. Rules are
// evaluated in a fixed order; each appends exactly one reasoning line when
// it fires. Composition is additive and order-stable: conflicting rules
// never subtract, they simply do not add (spec's preserved double-counting
// behavior -- see DESIGN.md Open Question 3).
func (s *Strategy) Analyze(ind domain.Indicators) domain.Signal {
	sig := domain.Signal{
		Kind:      domain.Hold,
		Price:     ind.CurrentPrice,
		Timestamp: time.Now().UTC(),
	}

	// 1. RSI divergence (+0.3)
	if ind.RSIFast != nil && ind.RSISlow != nil {
		fast, slow := *ind.RSIFast, *ind.RSISlow
		if fast < slow && fast < 40 && slow < 35 {
			sig.Kind = domain.Buy
			sig.Confidence += 0.3
			sig.AddReason("RSI divergence: fast %.1f < slow %.1f, both oversold (bullish)", fast, slow)
		} else if fast > slow && fast > 60 && slow > 65 {
			sig.Kind = domain.Sell
			sig.Confidence += 0.3
			sig.AddReason("RSI divergence: fast %.1f > slow %.1f, both overbought (bearish)", fast, slow)
		}
	}

	// 2. Moving-average trend (+0.2)
	if ind.SMA20 != nil && ind.SMA50 != nil && *ind.SMA50 != 0 {
		short, long := *ind.SMA20, *ind.SMA50
		ratio := short / long
		if ratio > 1.02 && ind.CurrentPrice > short {
			sig.Kind = domain.Buy
			sig.Confidence += 0.2
			sig.AddReason("MA trend: sma_short/sma_long %.4f > 1.02 and price above sma_short (bullish)", ratio)
		} else if ratio < 0.98 && ind.CurrentPrice < short {
			sig.Kind = domain.Sell
			sig.Confidence += 0.2
			sig.AddReason("MA trend: sma_short/sma_long %.4f < 0.98 and price below sma_short (bearish)", ratio)
		}
	}

	// 3. Volatility breakout (+0.15)
	if ind.Volatility24h != nil && ind.PriceMomentum != nil {
		vol, mom := *ind.Volatility24h, *ind.PriceMomentum
		if vol > 1.5*0.02 {
			if mom > s.cfg.PriceChangeThreshold {
				sig.Kind = domain.Buy
				sig.Confidence += 0.15
				sig.AddReason("Volatility breakout: vol %.4f elevated, momentum %.4f bullish", vol, mom)
			} else if mom < -s.cfg.PriceChangeThreshold {
				sig.Kind = domain.Sell
				sig.Confidence += 0.15
				sig.AddReason("Volatility breakout: vol %.4f elevated, momentum %.4f bearish", vol, mom)
			}
		}
	}

	// 4. Mean reversion (+0.25)
	if ind.RSIFast != nil {
		fast := *ind.RSIFast
		if fast < 20 && sig.Kind == domain.Hold {
			sig.Kind = domain.Buy
			sig.Confidence += 0.25
			sig.AddReason("Mean reversion: RSI fast %.1f deeply oversold", fast)
		} else if fast > 80 {
			sig.Kind = domain.Sell
			sig.Confidence += 0.25
			sig.AddReason("Mean reversion: RSI fast %.1f deeply overbought", fast)
		}
	}

	// 5. Momentum confirmation (+0.1)
	if ind.PriceChangePercent != nil {
		chg := *ind.PriceChangePercent
		if chg > s.cfg.PriceChangeThreshold && sig.Kind == domain.Buy {
			sig.Confidence += 0.1
			sig.AddReason("Momentum confirmation: price change %.4f confirms bullish direction", chg)
		} else if chg < -s.cfg.PriceChangeThreshold && sig.Kind == domain.Sell {
			sig.Confidence += 0.1
			sig.AddReason("Momentum confirmation: price change %.4f confirms bearish direction", chg)
		}
	}

	if sig.Confidence > 1.0 {
		sig.Confidence = 1.0
	}

	if sig.Confidence < 0.4 {
		sig.Kind = domain.Hold
		sig.AddReason("insufficient confidence")
	}

	return sig
}

// DetectMomentumDecay returns C1's supplemented momentum-decay predicate as
// carried on Indicators. The authoritative computation lives in
// internal/indicators and is wired through Indicators.MomentumDecay by the
// engine; the exit-rule checker reads that field directly.
func DetectMomentumDecay(ind domain.Indicators) bool {
	return ind.MomentumDecay
}
