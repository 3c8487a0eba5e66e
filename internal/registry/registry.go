// Package registry implements the Position Registry (C5): an indexed,
// in-memory source of truth for each wallet's at-most-one open position,
// with recovery from Store on startup.
package registry

import (
	"context"

	"github.com/buzzkillb/tirade-engine/internal/domain"
)

// Registry is a slot-per-wallet store of optional open positions. It is
// owned exclusively by the engine; nothing outside the cycle's call stack
// mutates it.
type Registry struct {
	wallets   []domain.Wallet
	positions []*domain.Position
}

func New(wallets []domain.Wallet) *Registry {
	return &Registry{
		wallets:   wallets,
		positions: make([]*domain.Position, len(wallets)),
	}
}

// Len is the number of wallet slots.
func (r *Registry) Len() int { return len(r.positions) }

// Wallet returns the wallet owning slot i.
func (r *Registry) Wallet(i int) domain.Wallet { return r.wallets[i] }

// Get returns the open position in slot i, or nil.
func (r *Registry) Get(i int) *domain.Position { return r.positions[i] }

// Set places (or clears, with nil) the position in slot i.
func (r *Registry) Set(i int, pos *domain.Position) { r.positions[i] = pos }

// Has reports whether slot i currently holds an open position.
func (r *Registry) Has(i int) bool { return r.positions[i] != nil }

// Clear empties slot i.
func (r *Registry) Clear(i int) { r.positions[i] = nil }

// ActiveCount is the number of slots currently holding an open position.
func (r *Registry) ActiveCount() int {
	n := 0
	for _, p := range r.positions {
		if p != nil {
			n++
		}
	}
	return n
}

// Recover queries Store for each wallet's currently-open position and
// populates the slot. Any divergence between the registry's prior state and
// Store is resolved in favor of Store (spec.md §4.5 invariant, and the
// ErrConsistency error kind).
func (r *Registry) Recover(ctx context.Context, store domain.Store) error {
	for i, w := range r.wallets {
		pos, err := store.OpenPositionForWallet(ctx, w.Address)
		if err != nil {
			return err
		}
		if pos != nil {
			pos.WalletID = w.ID
		}
		r.positions[i] = pos
	}
	return nil
}
