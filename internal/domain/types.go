// Package domain holds the data model and capability interfaces shared across
// the trading engine: price ticks, indicators, signals, positions, trade
// outcomes, wallets, and the Swap/PriceSource/Store boundaries the engine
// depends on but never constructs itself.
package domain

import (
	"fmt"
	"time"
)

// PriceTick is an immutable price observation for a pair.
type PriceTick struct {
	Pair      string
	Price     float64
	Timestamp time.Time
	Source    string
}

// Candle is an OHLCV bar as returned by a PriceSource.
type Candle struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

// Indicators holds the derived technical indicators for one cycle. Every
// pointer field is nil when the engine was underfed for that computation --
// never a zero-value default.
type Indicators struct {
	Pair               string
	Timestamp          time.Time
	CurrentPrice       float64
	SMA20              *float64
	SMA50              *float64
	SMA200             *float64
	RSI14              *float64
	RSIFast            *float64
	RSISlow            *float64
	Volatility24h      *float64
	PriceMomentum      *float64
	PriceChangePercent *float64
	MomentumDecay      bool
}

// SignalKind is the discrete direction a Signal carries.
type SignalKind int

const (
	Hold SignalKind = iota
	Buy
	Sell
)

func (k SignalKind) String() string {
	switch k {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Direction returns +1 for Buy, -1 for Sell, 0 for Hold -- used by the
// enhancer stages to test agreement against a directional prediction.
func (k SignalKind) Direction() int {
	switch k {
	case Buy:
		return 1
	case Sell:
		return -1
	default:
		return 0
	}
}

// Signal is a discrete trading directive with an auditable reasoning trail.
type Signal struct {
	Kind       SignalKind
	Confidence float64
	Price      float64
	Timestamp  time.Time
	Reasoning  []string
	TakeProfit float64
	StopLoss   float64
}

// AddReason appends one reasoning line, preserving evaluation order.
func (s *Signal) AddReason(format string, args ...interface{}) {
	if len(args) == 0 {
		s.Reasoning = append(s.Reasoning, format)
		return
	}
	s.Reasoning = append(s.Reasoning, fmt.Sprintf(format, args...))
}

// PositionStatus is the lifecycle state of a Position.
type PositionStatus int

const (
	PositionOpen PositionStatus = iota
	PositionClosed
)

func (s PositionStatus) String() string {
	if s == PositionClosed {
		return "closed"
	}
	return "open"
}

// Position is a single wallet's open (or closed) commitment to the base
// asset of the pair. At most one Open position exists per wallet at any
// instant (enforced by the Position Registry).
type Position struct {
	PositionID      string
	WalletID        string
	Pair            string
	EntryPrice      float64
	EntryTime       time.Time
	Quantity        float64
	USDCSpent       *float64
	Status          PositionStatus
	ExitPrice       *float64
	ExitTime        *time.Time
	PnLPercent      *float64
	USDCReceived    *float64
	DurationSeconds *int64
}

// Close mutates the position to Closed, populating every exit field. It is
// the only mutation a Position ever undergoes after creation.
func (p *Position) Close(exitPrice float64, exitTime time.Time, usdcReceived *float64) {
	p.Status = PositionClosed
	p.ExitPrice = &exitPrice
	p.ExitTime = &exitTime
	p.USDCReceived = usdcReceived
	dur := int64(exitTime.Sub(p.EntryTime).Seconds())
	p.DurationSeconds = &dur
	pnl := RealizedPnL(p.EntryPrice, exitPrice, p.USDCSpent, usdcReceived)
	p.PnLPercent = &pnl
}

// RealizedPnL implements the spec's USDC-preferred PnL rule: USDC-based when
// both legs are known, otherwise price-ratio based.
func RealizedPnL(entryPrice, exitPrice float64, usdcSpent, usdcReceived *float64) float64 {
	if usdcSpent != nil && usdcReceived != nil {
		spent := *usdcSpent
		if spent < 0 {
			spent = -spent
		}
		if spent != 0 {
			return (*usdcReceived - spent) / spent
		}
	}
	if entryPrice == 0 {
		return 0
	}
	return (exitPrice - entryPrice) / entryPrice
}

// TradeOutcome is a learning record fed to C3 and C4 when a position closes.
type TradeOutcome struct {
	EntryPrice      float64
	ExitPrice       float64
	PnL             float64
	Success         bool
	Timestamp       time.Time
	USDCPnL         *float64
	DurationSeconds int64
}

// Wallet is an engine-owned identity referenced by Position.WalletID.
type Wallet struct {
	ID      string
	Address string
	Name    string
}
