package strategy

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/snipebot/internal/domain"
)

// CopyPolicy is the exit policy for wallet copy-trading positions. The
// generic rules are identical in shape to the sniper's; what differs is the
// phased wallet-mirror override, which the orchestrator evaluates before the
// generic policy via MirrorDecision.
//
// The phasing reflects how the source wallet's signal decays: early in a
// position's life the wallet's own exit is the strongest information
// available; past the independent threshold mechanical risk rules take over
// completely.
type CopyPolicy struct {
	rules ExitRules
	// mirrorWindow: below this hold time a source-wallet sale is mirrored
	// unconditionally.
	mirrorWindow time.Duration
	// independentAfter: at or above this hold time the wallet signal is
	// ignored. Between the two, a sale is mirrored only while at a loss.
	independentAfter time.Duration
}

// NewCopyPolicy creates a CopyPolicy.
func NewCopyPolicy(rules ExitRules, mirrorWindow, independentAfter time.Duration) *CopyPolicy {
	if mirrorWindow <= 0 {
		mirrorWindow = 3 * time.Minute
	}
	if independentAfter <= mirrorWindow {
		independentAfter = 10 * time.Minute
	}
	return &CopyPolicy{
		rules:            rules,
		mirrorWindow:     mirrorWindow,
		independentAfter: independentAfter,
	}
}

// Name returns the policy identifier.
func (p *CopyPolicy) Name() string {
	return string(domain.StrategyCopy)
}

// ShouldExit evaluates the generic exit rules for a copy position.
func (p *CopyPolicy) ShouldExit(pos domain.Position, price float64, now time.Time) domain.ExitDecision {
	if !guard(pos, price, domain.StrategyCopy) {
		return domain.Hold()
	}
	return p.rules.evaluate(pos, price, now)
}

// MirrorDecision evaluates the phased wallet-exit override. walletSold
// reports whether the tracked wallet has sold the mint since entry, and
// soldAt is when (ignored when walletSold is false). A positive decision
// short-circuits the generic policy; a hold defers to it.
func (p *CopyPolicy) MirrorDecision(pos domain.Position, price float64, walletSold bool, soldAt, now time.Time) domain.ExitDecision {
	if !guard(pos, price, domain.StrategyCopy) {
		return domain.Hold()
	}

	held := pos.HoldDuration(now)

	// Independent mode: the wallet signal has fully decayed.
	if held >= p.independentAfter {
		return domain.Hold()
	}
	// Only sales after our own entry count as exit signals.
	if !walletSold || soldAt.Before(pos.EntryTime) {
		return domain.Hold()
	}

	if held < p.mirrorWindow {
		return domain.ExitDecision{
			Exit:        true,
			Reason:      domain.ExitReasonWalletEarly,
			Description: fmt.Sprintf("source wallet sold %s after entry", soldAt.Sub(pos.EntryTime).Round(time.Second)),
			Priority:    domain.PriorityWalletExit,
		}
	}

	// Middle phase: mirror only while losing. A winning position is left to
	// run and the trailing stop takes over.
	if pos.PnLPercentAt(price) < 0 {
		return domain.ExitDecision{
			Exit:        true,
			Reason:      domain.ExitReasonWalletLoss,
			Description: fmt.Sprintf("source wallet sold, position down %.1f%%", pos.PnLPercentAt(price)),
			Priority:    domain.PriorityWalletExit,
		}
	}
	return domain.Hold()
}

var _ ExitPolicy = (*CopyPolicy)(nil)
