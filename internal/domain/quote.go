package domain

import "time"

// QuoteSource identifies where a price came from.
type QuoteSource string

const (
	// QuoteSourceCurve means the price was derived from the bonding-curve
	// account's reserve ratio.
	QuoteSourceCurve QuoteSource = "curve"
	// QuoteSourceDex means the price came from a DEX aggregator after the
	// token graduated to open-market trading.
	QuoteSourceDex QuoteSource = "dex"
	// QuoteSourceFallbackEntry means no live price was available for a
	// graduated token and the last-known entry price was substituted.
	QuoteSourceFallbackEntry QuoteSource = "fallback_entry"
)

// Quote is an ephemeral price observation for a mint. It is never persisted
// beyond the shared cache TTL.
type Quote struct {
	Mint      string
	Price     float64 // SOL per token unit, > 0
	Source    QuoteSource
	Graduated bool // token has left the bonding curve for open-market pricing
	// Anomalous marks quotes that deviate more than 100x above or below the
	// raw reserve-ratio baseline. Anomalous quotes are flagged, not dropped:
	// the exit engine needs some price more than a perfect one.
	Anomalous bool
	FetchedAt time.Time
}

// Valuation is the SOL value of a token holding at a quoted price.
type Valuation struct {
	Mint     string
	SolValue float64
	Price    float64
	Source   QuoteSource
}
