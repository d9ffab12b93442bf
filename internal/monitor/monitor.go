// Package monitor runs the exit orchestration loop: the polling sweep that
// valuates every open position, maintains its high-water mark, evaluates the
// exit policies, and executes closes.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/snipebot/internal/domain"
	"github.com/alanyoungcy/snipebot/internal/notify"
	"github.com/alanyoungcy/snipebot/internal/strategy"
)

// QuoteSource provides current valuations. Implemented by
// service.ValuationService.
type QuoteSource interface {
	GetPrice(ctx context.Context, mint string, forceFresh bool) (*domain.Quote, error)
	// Forget drops per-mint cache state after a close.
	Forget(mint string)
}

// Config holds the orchestration loop parameters.
type Config struct {
	TickInterval   time.Duration
	SniperCooldown time.Duration
	CopyCooldown   time.Duration
}

// Monitor is the exit orchestrator. One Run loop serves all open positions
// of both strategies; positions are independent (keyed by distinct mints),
// so a close for one never blocks state for another.
type Monitor struct {
	cfg       Config
	store     domain.PositionStore
	quotes    QuoteSource
	exec      domain.ExecutionClient
	force     domain.ForceCloseFlags
	wallets   domain.WalletActivity
	cooldowns domain.Cooldowns
	sniper    strategy.ExitPolicy
	copy      *strategy.CopyPolicy
	momentum  *strategy.MomentumAnalyzer
	sinks     []domain.JournalSink
	notifier  *notify.Notifier
	logger    *slog.Logger
}

// New creates a Monitor. sinks and notifier may be empty/nil.
func New(
	cfg Config,
	store domain.PositionStore,
	quotes QuoteSource,
	exec domain.ExecutionClient,
	force domain.ForceCloseFlags,
	wallets domain.WalletActivity,
	cooldowns domain.Cooldowns,
	sniper strategy.ExitPolicy,
	copyPolicy *strategy.CopyPolicy,
	momentum *strategy.MomentumAnalyzer,
	sinks []domain.JournalSink,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *Monitor {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 2 * time.Second
	}
	return &Monitor{
		cfg:       cfg,
		store:     store,
		quotes:    quotes,
		exec:      exec,
		force:     force,
		wallets:   wallets,
		cooldowns: cooldowns,
		sniper:    sniper,
		copy:      copyPolicy,
		momentum:  momentum,
		sinks:     sinks,
		notifier:  notifier,
		logger:    logger.With(slog.String("component", "monitor")),
	}
}

// Run executes the polling loop until the context is cancelled. Each tick
// sweeps the open-position snapshot sequentially; a position that fails to
// valuate or to sell simply stays open and is re-evaluated next tick.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("exit monitor started",
		slog.Duration("tick", m.cfg.TickInterval),
	)
	defer m.logger.Info("exit monitor stopped")

	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Monitor) sweep(ctx context.Context) {
	positions, err := m.store.GetOpen(ctx)
	if err != nil {
		m.logger.Error("open position snapshot failed",
			slog.String("error", err.Error()),
		)
		return
	}

	for _, pos := range positions {
		if ctx.Err() != nil {
			return
		}
		m.checkPosition(ctx, pos)
	}
}

// checkPosition runs the per-position tick: valuation refresh, high-water
// mark update, then the decision ladder (force-close, copy mirror override,
// generic policy) with the first positive decision winning.
func (m *Monitor) checkPosition(ctx context.Context, pos domain.Position) {
	log := m.logger.With(
		slog.String("mint", pos.Mint),
		slog.String("strategy", string(pos.Strategy)),
	)

	quote, err := m.quotes.GetPrice(ctx, pos.Mint, false)
	if err != nil {
		// No valuation is not an exit signal; skip this tick.
		log.Warn("no valuation this tick", slog.String("error", err.Error()))
		return
	}
	if quote.Anomalous {
		log.Warn("evaluating with anomalous quote",
			slog.Float64("price", quote.Price),
			slog.String("source", string(quote.Source)),
		)
	}

	// Persist a new peak before evaluating so the trailing stop sees it
	// within the same tick.
	if quote.Price > pos.MaxPrice {
		if err := m.store.UpdateMaxPrice(ctx, pos.Mint, quote.Price); err != nil {
			log.Error("max price update failed", slog.String("error", err.Error()))
		} else {
			pos.MaxPrice = quote.Price
		}
	}

	// Force-close overrides every policy.
	if m.force != nil {
		reason, flagged, err := m.force.Consume(ctx, pos.Mint)
		if err != nil {
			log.Error("force close flag read failed", slog.String("error", err.Error()))
		} else if flagged {
			m.closePosition(ctx, pos, quote, domain.ExitDecision{
				Exit:        true,
				Reason:      domain.ExitReason(reason),
				Description: "external force close",
				Priority:    domain.PriorityForceClose,
			}, log)
			return
		}
	}

	// Copy strategy: phased wallet-mirror override ahead of the generic
	// policy.
	if pos.Strategy == domain.StrategyCopy && m.copy != nil && m.wallets != nil {
		soldAt, sold, err := m.wallets.SoldAt(ctx, pos.SourceWallet, pos.Mint)
		if err != nil {
			log.Error("wallet activity read failed", slog.String("error", err.Error()))
		} else {
			dec := m.copy.MirrorDecision(pos, quote.Price, sold, soldAt, time.Now())
			if dec.Exit {
				m.closePosition(ctx, pos, quote, dec, log)
				return
			}
		}
	}

	policy := m.policyFor(pos.Strategy)
	if policy == nil {
		log.Error("no exit policy for strategy")
		return
	}
	if dec := policy.ShouldExit(pos, quote.Price, time.Now()); dec.Exit {
		m.closePosition(ctx, pos, quote, dec, log)
	}
}

func (m *Monitor) policyFor(s domain.Strategy) strategy.ExitPolicy {
	switch s {
	case domain.StrategySniper:
		return m.sniper
	case domain.StrategyCopy:
		return m.copy
	default:
		return nil
	}
}

// closePosition sells through the execution client and, only on a successful
// sell, commits the store close. A failed sell leaves the position open; the
// next tick retries at the natural interval.
func (m *Monitor) closePosition(ctx context.Context, pos domain.Position, quote *domain.Quote, dec domain.ExitDecision, log *slog.Logger) {
	log = log.With(
		slog.String("reason", string(dec.Reason)),
		slog.Int("priority", dec.Priority),
	)
	log.Info("closing position",
		slog.String("description", dec.Description),
		slog.Float64("price", quote.Price),
	)

	res, err := m.exec.Sell(ctx, pos.Mint, pos.TokenAmount)
	if err != nil {
		log.Error("sell failed, position stays open", slog.String("error", err.Error()))
		return
	}
	if !res.Success {
		log.Error("sell rejected, position stays open", slog.String("message", res.Message))
		return
	}

	trade, err := m.store.Close(ctx, pos.Mint, domain.CloseRequest{
		ExitPrice: quote.Price,
		ExitValue: res.SolReceived,
		Reason:    dec.Reason,
		TxRef:     res.TxRef,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Lost a close race; the winner finalized and journaled it.
			log.Warn("position already closed elsewhere")
			return
		}
		log.Error("store close failed after successful sell",
			slog.String("error", err.Error()),
		)
		return
	}

	m.finalize(ctx, pos, trade, log)
}

// finalize clears derived per-mint state and fans the closed trade out to
// journal mirrors and notifications. Everything here is best-effort: the
// close is already committed.
func (m *Monitor) finalize(ctx context.Context, pos domain.Position, trade *domain.ClosedTrade, log *slog.Logger) {
	if m.momentum != nil {
		m.momentum.Clear(pos.Mint)
	}
	m.quotes.Forget(pos.Mint)

	if m.cooldowns != nil {
		ttl := m.cfg.SniperCooldown
		if pos.Strategy == domain.StrategyCopy {
			ttl = m.cfg.CopyCooldown
		}
		if err := m.cooldowns.Set(ctx, pos.Mint, ttl); err != nil {
			log.Warn("cooldown set failed", slog.String("error", err.Error()))
		}
	}

	for _, sink := range m.sinks {
		if err := sink.Append(ctx, *trade); err != nil {
			log.Warn("journal mirror append failed", slog.String("error", err.Error()))
		}
	}

	log.Info("position closed",
		slog.Float64("exit_price", trade.ExitPrice),
		slog.Float64("pnl", trade.PnL),
		slog.Float64("pnl_percent", trade.PnLPercent),
	)

	if m.notifier != nil {
		title := fmt.Sprintf("Closed %s (%s)", pos.Mint, trade.Reason)
		msg := fmt.Sprintf("strategy=%s pnl=%.6f SOL (%.1f%%) entry=%.12f exit=%.12f",
			trade.Strategy, trade.PnL, trade.PnLPercent, trade.EntryPrice, trade.ExitPrice)
		if err := m.notifier.Notify(ctx, notify.EventPositionClosed, title, msg); err != nil {
			log.Debug("close notification failed", slog.String("error", err.Error()))
		}
	}
}
