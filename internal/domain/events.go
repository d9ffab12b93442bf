package domain

import "time"

// LaunchEvent is a new-token launch observed on the launchpad feed.
type LaunchEvent struct {
	Mint         string
	Name         string
	Symbol       string
	Creator      string
	CurveAccount string
	Timestamp    time.Time
}

// TradeSide is the direction of an observed wallet trade.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// WalletTradeEvent is a trade by a tracked wallet observed on the feed.
type WalletTradeEvent struct {
	Wallet      string
	Mint        string
	Side        TradeSide
	SolAmount   float64
	TokenAmount float64
	Timestamp   time.Time
}
