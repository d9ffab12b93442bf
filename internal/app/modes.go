package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/snipebot/internal/config"
	"github.com/alanyoungcy/snipebot/internal/entry"
	"github.com/alanyoungcy/snipebot/internal/feed"
	"github.com/alanyoungcy/snipebot/internal/monitor"
	"github.com/alanyoungcy/snipebot/internal/strategy"
)

// TradeMode starts the full trading loop: the launch feed, both entry
// engines, the exit monitor, and the optional journal archiver.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode",
		slog.Bool("sniper_enabled", a.cfg.Sniper.Enabled),
		slog.Bool("copy_enabled", a.cfg.Copy.Enabled),
	)

	g, ctx := errgroup.WithContext(ctx)

	momentum := strategy.NewMomentumAnalyzer(strategy.DefaultWindows(
		a.cfg.Sniper.Momentum.Gain15s,
		a.cfg.Sniper.Momentum.Gain30s,
		a.cfg.Sniper.Momentum.Gain1m,
		a.cfg.Sniper.Momentum.Gain2m,
		a.cfg.Sniper.Momentum.Gain5m,
	))

	sniperEntry := entry.NewSniperEntry(
		a.cfg.Sniper,
		deps.Store, deps.Quotes, deps.Exec,
		deps.Curves, deps.Cooldowns,
		momentum, deps.Notifier, a.logger,
	)
	copyEntry := entry.NewCopyEntry(
		a.cfg.Copy,
		deps.Store, deps.Quotes, deps.Exec,
		deps.Wallets, deps.Cooldowns,
		deps.Notifier, a.logger,
	)

	launchFeed := feed.NewLaunchFeed(
		a.cfg.Feed.WsURL,
		a.cfg.Copy.Wallets,
		sniperEntry.HandleLaunch,
		copyEntry.HandleWalletTrade,
		a.logger,
	)
	g.Go(func() error {
		return launchFeed.Run(ctx)
	})

	mon := a.buildMonitor(deps, momentum)
	g.Go(func() error {
		return mon.Run(ctx)
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(ctx)
		})
	}

	return g.Wait()
}

// MonitorMode manages already-open positions without opening new ones: the
// exit monitor and the optional journal archiver run, the feed and entry
// engines do not.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	mon := a.buildMonitor(deps, nil)
	g.Go(func() error {
		return mon.Run(ctx)
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(ctx)
		})
	}

	return g.Wait()
}

func (a *App) buildMonitor(deps *Dependencies, momentum *strategy.MomentumAnalyzer) *monitor.Monitor {
	sniperPolicy := strategy.NewSniperPolicy(toExitRules(a.cfg.Sniper.Exit))
	copyPolicy := strategy.NewCopyPolicy(
		toExitRules(a.cfg.Copy.Exit),
		a.cfg.Copy.MirrorWindow.Duration,
		a.cfg.Copy.IndependentAfter.Duration,
	)

	return monitor.New(
		monitor.Config{
			TickInterval:   a.cfg.Monitor.TickInterval.Duration,
			SniperCooldown: time.Duration(a.cfg.Sniper.CooldownMinutes) * time.Minute,
			CopyCooldown:   time.Duration(a.cfg.Copy.CooldownMinutes) * time.Minute,
		},
		deps.Store,
		deps.Quotes,
		deps.Exec,
		deps.ForceClose,
		deps.Wallets,
		deps.Cooldowns,
		sniperPolicy,
		copyPolicy,
		momentum,
		deps.JournalSinks,
		deps.Notifier,
		a.logger,
	)
}

func toExitRules(cfg config.ExitRulesConfig) strategy.ExitRules {
	return strategy.ExitRules{
		TakeProfitEnabled:   cfg.TakeProfitEnabled,
		TakeProfitPercent:   cfg.TakeProfitPercent,
		TrailingStopEnabled: cfg.TrailingStopEnabled,
		TrailingStopPercent: cfg.TrailingStopPercent,
		StopLossEnabled:     cfg.StopLossEnabled,
		StopLossPercent:     cfg.StopLossPercent,
		MaxHoldEnabled:      cfg.MaxHoldEnabled,
		MaxHold:             time.Duration(cfg.MaxHoldMinutes) * time.Minute,
	}
}
