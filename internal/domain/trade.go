package domain

import "time"

// ClosedTrade is the append-only journal record written exactly once per
// position close. It is immutable after the write.
type ClosedTrade struct {
	ID           string
	Mint         string
	Strategy     Strategy
	SourceWallet string
	EntryPrice   float64
	ExitPrice    float64
	SolAmount    float64
	TokenAmount  float64
	ExitValue    float64 // proceeds reported by execution, or TokenAmount*ExitPrice
	PnL          float64 // ExitValue - SolAmount
	PnLPercent   float64 // (ExitPrice-EntryPrice)/EntryPrice*100
	Reason       ExitReason
	TxRef        string
	EntryTime    time.Time
	ClosedAt     time.Time
}

// JournalDay formats a close timestamp into the calendar-day key under which
// the trade is journaled.
func JournalDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// CloseRequest carries the parameters of a position close. ExitValue may be
// zero, in which case the store computes it as TokenAmount * ExitPrice.
type CloseRequest struct {
	ExitPrice float64
	ExitValue float64
	Reason    ExitReason
	TxRef     string
}
