package strategy

import (
	"time"

	"github.com/alanyoungcy/snipebot/internal/domain"
)

// SniperPolicy is the exit policy for momentum-sniper positions. It applies
// only the generic threshold rules; the sniper has no external signal to
// mirror once a position is open.
type SniperPolicy struct {
	rules ExitRules
}

// NewSniperPolicy creates a SniperPolicy with the given rules.
func NewSniperPolicy(rules ExitRules) *SniperPolicy {
	return &SniperPolicy{rules: rules}
}

// Name returns the policy identifier.
func (p *SniperPolicy) Name() string {
	return string(domain.StrategySniper)
}

// ShouldExit evaluates the generic exit rules for a sniper position.
func (p *SniperPolicy) ShouldExit(pos domain.Position, price float64, now time.Time) domain.ExitDecision {
	if !guard(pos, price, domain.StrategySniper) {
		return domain.Hold()
	}
	return p.rules.evaluate(pos, price, now)
}

var _ ExitPolicy = (*SniperPolicy)(nil)
