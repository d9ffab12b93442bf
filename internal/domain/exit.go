package domain

// ExitReason is the taxonomy of why a position was closed. Force-close
// reasons arrive as free-form strings from the external watcher and are
// carried through unchanged.
type ExitReason string

const (
	ExitReasonTakeProfit   ExitReason = "take_profit"
	ExitReasonTrailingStop ExitReason = "trailing_stop"
	ExitReasonStopLoss     ExitReason = "stop_loss"
	ExitReasonMaxHoldTime  ExitReason = "max_hold_time"
	ExitReasonWalletEarly  ExitReason = "wallet_exit_early"
	ExitReasonWalletLoss   ExitReason = "wallet_exit_loss"
)

// Exit decision priorities. Lower is more urgent. Priority is advisory
// metadata for logging and alerting; it is not a tie-break, since policy
// checks are sequential and only one condition can match per evaluation.
const (
	PriorityForceClose = 1
	PriorityWalletExit = 2
	PriorityProfit     = 3
	PriorityStopLoss   = 4
	PriorityTimeLimit  = 5
)

// ExitDecision is the result of evaluating an exit policy against a position
// snapshot and a current price.
type ExitDecision struct {
	Exit        bool
	Reason      ExitReason
	Description string
	Priority    int
}

// Hold is the zero decision: keep the position open.
func Hold() ExitDecision {
	return ExitDecision{}
}
