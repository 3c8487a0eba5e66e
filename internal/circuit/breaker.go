// Package circuit implements a single-pair trading circuit breaker,
// narrowed from the teacher's per-user breaker (internal/circuit/breaker.go)
// to the engine's one instance covering its one trading pair. It gates
// C7's cycle dispatch as an optional supplement beyond the error kinds
// spec.md §7 already defines.
package circuit

import (
	"fmt"
	"math"
	"sync"
	"time"
)

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config holds the breaker's thresholds.
type Config struct {
	Enabled              bool
	MaxLossPerHour       float64 // percent
	MaxConsecutiveLosses int
	CooldownMinutes      int
	MaxDailyLoss         float64 // percent
	MaxDailyTrades       int
}

func DefaultConfig() Config {
	return Config{
		Enabled:              true,
		MaxLossPerHour:       3.0,
		MaxConsecutiveLosses: 5,
		CooldownMinutes:      30,
		MaxDailyLoss:         5.0,
		MaxDailyTrades:       100,
	}
}

// Breaker halts new BUY dispatch when recent realized losses exceed
// configured thresholds; it never blocks exit-rule SELLs.
type Breaker struct {
	cfg Config

	mu                sync.Mutex
	state             State
	consecutiveLosses int
	hourlyLoss        float64
	dailyLoss         float64
	dailyTrades       int
	lastTripTime      time.Time
	tripReason        string
	hourlyResetTime   time.Time
	dailyResetTime    time.Time
}

func New(cfg Config) *Breaker {
	now := time.Now()
	return &Breaker{
		cfg:             cfg,
		state:           StateClosed,
		hourlyResetTime: now.Add(time.Hour),
		dailyResetTime:  now.Truncate(24 * time.Hour).Add(24 * time.Hour),
	}
}

// CanTrade reports whether a new BUY may be dispatched.
func (b *Breaker) CanTrade() (bool, string) {
	if !b.cfg.Enabled {
		return true, ""
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetCountersIfNeeded()

	if b.state == StateOpen {
		elapsed := time.Since(b.lastTripTime)
		cooldown := time.Duration(b.cfg.CooldownMinutes) * time.Minute
		if elapsed < cooldown {
			return false, fmt.Sprintf("circuit breaker open, cooldown remaining: %v (reason: %s)",
				(cooldown - elapsed).Round(time.Second), b.tripReason)
		}
		b.state = StateHalfOpen
	}

	if b.hourlyLoss >= b.cfg.MaxLossPerHour {
		return false, fmt.Sprintf("hourly loss limit reached: %.2f%% >= %.2f%%", b.hourlyLoss, b.cfg.MaxLossPerHour)
	}
	if b.dailyLoss >= b.cfg.MaxDailyLoss {
		return false, fmt.Sprintf("daily loss limit reached: %.2f%% >= %.2f%%", b.dailyLoss, b.cfg.MaxDailyLoss)
	}
	if b.consecutiveLosses >= b.cfg.MaxConsecutiveLosses {
		return false, fmt.Sprintf("max consecutive losses reached: %d", b.consecutiveLosses)
	}
	if b.dailyTrades >= b.cfg.MaxDailyTrades {
		return false, fmt.Sprintf("daily trade limit reached: %d trades", b.dailyTrades)
	}
	return true, ""
}

// RecordTrade feeds a realized pnl percent into the breaker's counters.
func (b *Breaker) RecordTrade(pnlPercent float64) {
	if !b.cfg.Enabled || math.IsNaN(pnlPercent) || math.IsInf(pnlPercent, 0) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetCountersIfNeeded()
	b.dailyTrades++

	if pnlPercent < 0 {
		b.consecutiveLosses++
		b.hourlyLoss += -pnlPercent
		b.dailyLoss += -pnlPercent
	} else {
		b.consecutiveLosses = 0
		if b.state == StateHalfOpen {
			b.state = StateClosed
		}
	}

	b.checkAndTrip()
}

func (b *Breaker) checkAndTrip() {
	var reason string
	switch {
	case b.consecutiveLosses >= b.cfg.MaxConsecutiveLosses:
		reason = fmt.Sprintf("consecutive losses: %d", b.consecutiveLosses)
	case b.hourlyLoss >= b.cfg.MaxLossPerHour:
		reason = fmt.Sprintf("hourly loss: %.2f%%", b.hourlyLoss)
	case b.dailyLoss >= b.cfg.MaxDailyLoss:
		reason = fmt.Sprintf("daily loss: %.2f%%", b.dailyLoss)
	}
	if reason != "" {
		b.state = StateOpen
		b.lastTripTime = time.Now()
		b.tripReason = reason
	}
}

func (b *Breaker) resetCountersIfNeeded() {
	now := time.Now()
	if now.After(b.hourlyResetTime) {
		b.hourlyLoss = 0
		b.hourlyResetTime = now.Add(time.Hour)
	}
	if now.After(b.dailyResetTime) {
		b.dailyLoss = 0
		b.dailyTrades = 0
		b.dailyResetTime = now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	}
}

func (b *Breaker) ForceReset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.consecutiveLosses = 0
	b.tripReason = ""
}

func (b *Breaker) GetState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Stats() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return map[string]interface{}{
		"state":              string(b.state),
		"consecutive_losses": b.consecutiveLosses,
		"hourly_loss":        b.hourlyLoss,
		"daily_loss":         b.dailyLoss,
		"daily_trades":       b.dailyTrades,
		"trip_reason":        b.tripReason,
		"last_trip_time":     b.lastTripTime,
	}
}
