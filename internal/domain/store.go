package domain

import "context"

// PositionStore is the single source of truth for position state.
//
// Open and Close are the only multi-field transitions and must be atomic:
// a record without an open-index entry (or vice versa) is a correctness
// violation. Close is the sole close authority and must be idempotent:
// closing an absent or already-closed mint returns ErrNotFound and has no
// effect, so concurrent force-close and policy-close races resolve to exactly
// one journal entry.
type PositionStore interface {
	// Open inserts a new open position. Returns ErrAlreadyExists when the
	// mint is already in the open index.
	Open(ctx context.Context, pos Position) error

	// UpdateMaxPrice raises the high-water mark. Prices at or below the
	// stored mark are a no-op.
	UpdateMaxPrice(ctx context.Context, mint string, price float64) error

	// Close atomically finalizes the position, removes it from the open
	// index, and appends the journal entry. Returns ErrNotFound when the
	// mint has no open record.
	Close(ctx context.Context, mint string, req CloseRequest) (*ClosedTrade, error)

	// GetOpen returns a snapshot of all open positions. A position may be
	// closed concurrently between the snapshot and its use; callers must
	// tolerate Close returning ErrNotFound afterwards.
	GetOpen(ctx context.Context) ([]Position, error)

	// Get returns the position record for a mint, open or closed.
	Get(ctx context.Context, mint string) (Position, error)
}

// JournalReader reads back journaled trades for a calendar day (UTC,
// "2006-01-02" format).
type JournalReader interface {
	ListDay(ctx context.Context, day string) ([]ClosedTrade, error)
}

// JournalSink receives a copy of every closed trade. Implementations are
// analytics mirrors (Postgres, object storage); failures are logged and never
// block or reverse a close.
type JournalSink interface {
	Append(ctx context.Context, trade ClosedTrade) error
}

// EntryPriceSource resolves the last-known entry price for a mint. The
// valuation service uses it as the final fallback for graduated tokens with
// no DEX liquidity data yet.
type EntryPriceSource interface {
	LastEntryPrice(ctx context.Context, mint string) (float64, error)
}
