// Package strategy implements the exit-decision policies and the pre-entry
// momentum analysis for the two trading strategies.
package strategy

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/snipebot/internal/domain"
)

// ExitPolicy decides whether an open position should be closed at the
// current price. Implementations are pure: no I/O, no hidden state, the same
// inputs always produce the same decision.
type ExitPolicy interface {
	Name() string
	ShouldExit(pos domain.Position, price float64, now time.Time) domain.ExitDecision
}

// ExitRules holds the generic threshold checks shared by both strategies. A
// disabled or zero-threshold check is skipped entirely and never fires.
type ExitRules struct {
	TakeProfitEnabled   bool
	TakeProfitPercent   float64
	TrailingStopEnabled bool
	TrailingStopPercent float64
	StopLossEnabled     bool
	StopLossPercent     float64
	MaxHoldEnabled      bool
	MaxHold             time.Duration
}

// evaluate runs the shared checks in their fixed order, returning on the
// first match so every decision carries exactly one reason:
// take-profit, trailing-stop, stop-loss, max-hold-time, hold.
func (r ExitRules) evaluate(pos domain.Position, price float64, now time.Time) domain.ExitDecision {
	pnl := pos.PnLPercentAt(price)

	if r.TakeProfitEnabled && r.TakeProfitPercent > 0 && pnl >= r.TakeProfitPercent {
		return domain.ExitDecision{
			Exit:        true,
			Reason:      domain.ExitReasonTakeProfit,
			Description: fmt.Sprintf("up %.1f%% (target %.1f%%)", pnl, r.TakeProfitPercent),
			Priority:    domain.PriorityProfit,
		}
	}

	// Drawdown is measured from the running high-water mark, not the entry
	// price: a position far in profit still exits when it gives back the
	// threshold from its peak.
	if r.TrailingStopEnabled && r.TrailingStopPercent > 0 {
		if dd := pos.DrawdownPercentAt(price); dd <= -r.TrailingStopPercent {
			return domain.ExitDecision{
				Exit:        true,
				Reason:      domain.ExitReasonTrailingStop,
				Description: fmt.Sprintf("%.1f%% off peak %.12f (limit %.1f%%)", dd, pos.MaxPrice, r.TrailingStopPercent),
				Priority:    domain.PriorityProfit,
			}
		}
	}

	if r.StopLossEnabled && r.StopLossPercent > 0 && pnl <= -r.StopLossPercent {
		return domain.ExitDecision{
			Exit:        true,
			Reason:      domain.ExitReasonStopLoss,
			Description: fmt.Sprintf("down %.1f%% (limit %.1f%%)", pnl, r.StopLossPercent),
			Priority:    domain.PriorityStopLoss,
		}
	}

	if r.MaxHoldEnabled && r.MaxHold > 0 && pos.HoldDuration(now) >= r.MaxHold {
		return domain.ExitDecision{
			Exit:        true,
			Reason:      domain.ExitReasonMaxHoldTime,
			Description: fmt.Sprintf("held %s (limit %s)", pos.HoldDuration(now).Round(time.Second), r.MaxHold),
			Priority:    domain.PriorityTimeLimit,
		}
	}

	return domain.Hold()
}

// guard rejects evaluations that cannot produce a meaningful decision:
// wrong strategy, non-open position, missing entry price, bad current price.
func guard(pos domain.Position, price float64, want domain.Strategy) bool {
	if pos.Strategy != want {
		return false
	}
	if pos.Status != domain.PositionStatusOpen {
		return false
	}
	if pos.EntryPrice <= 0 || price <= 0 {
		return false
	}
	return true
}
