package domain

import "context"

// BuyResult is the outcome of a buy submission to the execution API.
type BuyResult struct {
	Success        bool
	TokensReceived float64
	TxRef          string
	Message        string
}

// SellResult is the outcome of a sell submission to the execution API.
type SellResult struct {
	Success     bool
	SolReceived float64
	TxRef       string
	Message     string
}

// ExecutionClient is the opaque buy/sell boundary to the third-party
// execution API. Transaction construction, signing, and submission all live
// behind it. A nil error with Success=false means the API answered but
// rejected or failed the trade; callers must not advance position state in
// either failure case.
type ExecutionClient interface {
	Buy(ctx context.Context, mint string, solAmount float64) (BuyResult, error)
	Sell(ctx context.Context, mint string, tokenAmount float64) (SellResult, error)
}
