package domain

import "errors"

// Error kinds are sentinels, not type names: callers wrap a sentinel with
// fmt.Errorf("%w: ...", ErrSwap) and test with errors.Is.
var (
	// ErrInput is a malformed config, bad key, or invalid pair. Fatal at
	// startup; logged and the cycle is skipped everywhere else.
	ErrInput = errors.New("input error")

	// ErrTransientIO is a Store or PriceSource timeout/unreachable error.
	// It is not retried: the call returns it at once, the engine logs it,
	// and a failed price fetch skips the cycle until the next tick.
	ErrTransientIO = errors.New("transient i/o error")

	// ErrSwap is a non-success swap status, an unparseable response, or no
	// observable balance change within the verification window.
	ErrSwap = errors.New("swap failure")

	// ErrConsistency is a Store/registry divergence over a wallet's open
	// position. Resolved by adopting Store's view.
	ErrConsistency = errors.New("consistency error")

	// ErrLearningMiss is a missing trade history on startup. Not fatal: C3
	// runs with empty memory and applies minimal adjustments.
	ErrLearningMiss = errors.New("learning store miss")

	// ErrInvariant is an attempt to open a second position on a wallet, or
	// close an unknown position id. The operation aborts; the caller logs
	// and continues.
	ErrInvariant = errors.New("invariant violation")
)
