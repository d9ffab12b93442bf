package domain

import (
	"context"
	"time"
)

// QuoteCache is the shared short-TTL price cache sitting between the
// in-process cache and the authoritative fetch.
type QuoteCache interface {
	SetQuote(ctx context.Context, q Quote, ttl time.Duration) error
	// GetQuote returns ErrNotFound when the mint has no cached quote or the
	// entry has expired.
	GetQuote(ctx context.Context, mint string) (Quote, error)
}

// CurveRegistry maps a mint to its bonding-curve account address. The feed
// listener registers the mapping when a launch is observed; the valuation
// service resolves it on every authoritative fetch.
type CurveRegistry interface {
	SetCurveAccount(ctx context.Context, mint, account string) error
	// CurveAccount returns ErrUnknownCurve when no mapping exists.
	CurveAccount(ctx context.Context, mint string) (string, error)
}

// ForceCloseFlags is the external force-close signal channel: a watcher sets
// a per-mint reason, the orchestrator consumes (reads and clears) it.
type ForceCloseFlags interface {
	Set(ctx context.Context, mint, reason string) error
	// Consume atomically reads and clears the flag. The bool reports whether
	// a flag was present.
	Consume(ctx context.Context, mint string) (string, bool, error)
}

// WalletActivity records when a tracked wallet sold a mint, keyed by the
// wallet as well as the mint: a copy position only mirrors the exit of its
// own source wallet, never a sale of the same token by another tracked
// wallet. The copy strategy's phased exit override reads it on every tick.
type WalletActivity interface {
	MarkSold(ctx context.Context, wallet, mint string, at time.Time) error
	// SoldAt returns the wallet's sale timestamp for the mint and whether a
	// sale was recorded.
	SoldAt(ctx context.Context, wallet, mint string) (time.Time, bool, error)
}

// Cooldowns tracks per-mint re-entry cooldowns after a close, so the entry
// engines do not immediately re-open a position in the same token.
type Cooldowns interface {
	Set(ctx context.Context, mint string, ttl time.Duration) error
	Active(ctx context.Context, mint string) (bool, error)
}
