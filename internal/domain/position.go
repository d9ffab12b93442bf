package domain

import (
	"fmt"
	"time"
)

// PositionStatus tracks whether a position is open or closed.
type PositionStatus string

const (
	PositionStatusOpen   PositionStatus = "open"
	PositionStatusClosed PositionStatus = "closed"
)

// Strategy identifies which entry engine opened a position and which exit
// policy governs it.
type Strategy string

const (
	StrategySniper Strategy = "sniper"
	StrategyCopy   Strategy = "copy"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	return s == StrategySniper || s == StrategyCopy
}

// Position is an open trading position in a single launchpad token. At most
// one open position may exist per mint; the store enforces this through its
// open-index set.
type Position struct {
	Mint         string
	Strategy     Strategy
	EntryPrice   float64 // SOL per token unit, > 0
	SolAmount    float64 // capital committed, > 0
	TokenAmount  float64 // tokens received, > 0
	MaxPrice     float64 // high-water mark, never below EntryPrice while open
	SourceWallet string  // copy strategy only: the tracked wallet
	BuyTxRef     string
	EntryTime    time.Time
	Status       PositionStatus
}

// Validate checks the invariants a position must satisfy at open time.
func (p Position) Validate() error {
	if p.Mint == "" {
		return fmt.Errorf("position: %w: empty mint", ErrInvalidPosition)
	}
	if !p.Strategy.Valid() {
		return fmt.Errorf("position %s: %w: unknown strategy %q", p.Mint, ErrInvalidPosition, p.Strategy)
	}
	if p.EntryPrice <= 0 {
		return fmt.Errorf("position %s: %w: entry price %f", p.Mint, ErrInvalidPosition, p.EntryPrice)
	}
	if p.SolAmount <= 0 {
		return fmt.Errorf("position %s: %w: sol amount %f", p.Mint, ErrInvalidPosition, p.SolAmount)
	}
	if p.TokenAmount <= 0 {
		return fmt.Errorf("position %s: %w: token amount %f", p.Mint, ErrInvalidPosition, p.TokenAmount)
	}
	if p.Strategy == StrategyCopy && p.SourceWallet == "" {
		return fmt.Errorf("position %s: %w: copy position without source wallet", p.Mint, ErrInvalidPosition)
	}
	return nil
}

// PnLPercentAt returns the unrealized gain of the position at the given price,
// as a percentage of the entry price.
func (p Position) PnLPercentAt(price float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice * 100
}

// DrawdownPercentAt returns the decline of the given price from the running
// high-water mark, as a negative percentage. Returns 0 when no peak is set.
func (p Position) DrawdownPercentAt(price float64) float64 {
	if p.MaxPrice <= 0 {
		return 0
	}
	return (price - p.MaxPrice) / p.MaxPrice * 100
}

// HoldDuration returns how long the position has been open as of now.
func (p Position) HoldDuration(now time.Time) time.Duration {
	return now.Sub(p.EntryTime)
}
