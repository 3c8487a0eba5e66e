// Package risk sizes BUY orders and enforces a daily drawdown stop,
// adapted from the teacher's multi-method RiskManager (internal/risk/manager.go)
// down to spec.md §6's single configured knob: position_size_percentage of
// free quote balance. The per-trade stop-loss/take-profit levels themselves
// are C6's concern (signalproc.ExitRule); this package only answers "how
// much" and "are we still allowed to open".
package risk

import (
	"fmt"
	"sync"
	"time"
)

// Config holds the engine's risk tunables.
type Config struct {
	PositionSizePercentage float64 // fraction of free quote balance per BUY
	MaxDailyDrawdownPct    float64 // percent; 0 disables the check
	MaxOpenPositions       int
}

func DefaultConfig() Config {
	return Config{
		PositionSizePercentage: 0.1,
		MaxDailyDrawdownPct:    5.0,
		MaxOpenPositions:       0, // 0 means "unbounded, let the registry decide"
	}
}

// Manager tracks daily realized PnL and open-position count across wallets.
type Manager struct {
	cfg Config

	mu            sync.Mutex
	dailyPnL      float64
	dailyPnLReset time.Time
	openPositions int
}

func New(cfg Config) *Manager {
	return &Manager{cfg: cfg, dailyPnLReset: time.Now().Truncate(24 * time.Hour)}
}

// QuoteAmountForBuy returns how much free quote balance to commit to the
// next BUY.
func (m *Manager) QuoteAmountForBuy(freeQuoteBalance float64) float64 {
	if freeQuoteBalance <= 0 {
		return 0
	}
	return freeQuoteBalance * m.cfg.PositionSizePercentage
}

// CanOpenPosition reports whether a new position may be opened given the
// configured caps.
func (m *Manager) CanOpenPosition() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkDailyReset()

	if m.cfg.MaxOpenPositions > 0 && m.openPositions >= m.cfg.MaxOpenPositions {
		return false, fmt.Sprintf("max positions reached (%d/%d)", m.openPositions, m.cfg.MaxOpenPositions)
	}
	if m.cfg.MaxDailyDrawdownPct > 0 && m.dailyPnL <= -m.cfg.MaxDailyDrawdownPct {
		return false, fmt.Sprintf("daily drawdown limit reached (%.2f%%)", m.dailyPnL)
	}
	return true, ""
}

func (m *Manager) RegisterPositionOpen() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openPositions++
}

// RegisterPositionClose records a realized pnl percent against the day's
// running total and decrements the open-position count.
func (m *Manager) RegisterPositionClose(pnlPercent float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openPositions--
	if m.openPositions < 0 {
		m.openPositions = 0
	}
	m.checkDailyReset()
	m.dailyPnL += pnlPercent
}

func (m *Manager) checkDailyReset() {
	today := time.Now().Truncate(24 * time.Hour)
	if today.After(m.dailyPnLReset) {
		m.dailyPnL = 0
		m.dailyPnLReset = today
	}
}

func (m *Manager) Stats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]interface{}{
		"daily_pnl_percent": m.dailyPnL,
		"open_positions":    m.openPositions,
	}
}
