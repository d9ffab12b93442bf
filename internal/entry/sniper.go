// Package entry implements the position-opening engines: the momentum sniper
// that watches fresh launches, and the copy trader that mirrors tracked
// wallets.
package entry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/snipebot/internal/config"
	"github.com/alanyoungcy/snipebot/internal/domain"
	"github.com/alanyoungcy/snipebot/internal/notify"
	"github.com/alanyoungcy/snipebot/internal/strategy"
)

// maxConcurrentWatches bounds the number of launches sampled at once; the
// launchpad firehose far outpaces what is worth valuating.
const maxConcurrentWatches = 25

// PriceSource provides current valuations for entry sampling. Implemented by
// service.ValuationService.
type PriceSource interface {
	GetPrice(ctx context.Context, mint string, forceFresh bool) (*domain.Quote, error)
}

// SniperEntry watches each new launch for a configured duration, sampling its
// valuation into the momentum analyzer, and opens a position the moment
// momentum qualifies as strong.
type SniperEntry struct {
	cfg       config.SniperConfig
	store     domain.PositionStore
	quotes    PriceSource
	exec      domain.ExecutionClient
	curves    domain.CurveRegistry
	cooldowns domain.Cooldowns
	momentum  *strategy.MomentumAnalyzer
	notifier  *notify.Notifier
	logger    *slog.Logger

	mu       sync.Mutex
	watching map[string]bool
}

// NewSniperEntry creates the sniper entry engine. notifier may be nil.
func NewSniperEntry(
	cfg config.SniperConfig,
	store domain.PositionStore,
	quotes PriceSource,
	exec domain.ExecutionClient,
	curves domain.CurveRegistry,
	cooldowns domain.Cooldowns,
	momentum *strategy.MomentumAnalyzer,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *SniperEntry {
	return &SniperEntry{
		cfg:       cfg,
		store:     store,
		quotes:    quotes,
		exec:      exec,
		curves:    curves,
		cooldowns: cooldowns,
		momentum:  momentum,
		notifier:  notifier,
		logger:    logger.With(slog.String("component", "sniper_entry")),
		watching:  make(map[string]bool),
	}
}

// HandleLaunch is the feed callback for new-token launches. It registers the
// bonding-curve account and, capacity and cooldown permitting, starts a watch
// goroutine for the mint.
func (s *SniperEntry) HandleLaunch(ctx context.Context, ev domain.LaunchEvent) {
	log := s.logger.With(slog.String("mint", ev.Mint))

	if ev.CurveAccount != "" {
		if err := s.curves.SetCurveAccount(ctx, ev.Mint, ev.CurveAccount); err != nil {
			log.Error("curve registration failed", slog.String("error", err.Error()))
			return
		}
	}
	if !s.cfg.Enabled {
		return
	}

	active, err := s.cooldowns.Active(ctx, ev.Mint)
	if err != nil {
		log.Error("cooldown check failed", slog.String("error", err.Error()))
		return
	}
	if active {
		log.Debug("mint on cooldown, skipping launch")
		return
	}

	if !s.claimWatch(ev.Mint) {
		log.Debug("watch capacity reached, skipping launch")
		return
	}

	go func() {
		defer s.releaseWatch(ev.Mint)
		s.watch(ctx, ev.Mint, log)
	}()
}

func (s *SniperEntry) claimWatch(mint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watching[mint] || len(s.watching) >= maxConcurrentWatches {
		return false
	}
	s.watching[mint] = true
	return true
}

func (s *SniperEntry) releaseWatch(mint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watching, mint)
}

// watch samples the mint's valuation at the configured interval for the watch
// duration, feeding the momentum analyzer. The first strong reading triggers a
// buy; a quiet watch window clears the history and gives up.
func (s *SniperEntry) watch(ctx context.Context, mint string, log *slog.Logger) {
	deadline := time.Now().Add(s.cfg.WatchDuration.Duration)
	ticker := time.NewTicker(s.cfg.SampleInterval.Duration)
	defer ticker.Stop()

	var lastReason string
	for {
		select {
		case <-ctx.Done():
			s.momentum.Clear(mint)
			return
		case now := <-ticker.C:
			if now.After(deadline) {
				s.momentum.Clear(mint)
				log.Debug("watch expired without entry", slog.String("reason", lastReason))
				return
			}

			quote, err := s.quotes.GetPrice(ctx, mint, true)
			if err != nil {
				log.Debug("no valuation sample", slog.String("error", err.Error()))
				continue
			}
			s.momentum.Record(mint, quote.Price, now)

			report := s.momentum.Analyze(mint, now)
			if !report.Strong {
				lastReason = report.Reason
				continue
			}

			log.Info("momentum qualified, buying",
				slog.Int("qualifying_windows", report.Qualifying),
				slog.Float64("price", quote.Price),
			)
			s.buy(ctx, mint, quote.Price, log)
			return
		}
	}
}

func (s *SniperEntry) buy(ctx context.Context, mint string, price float64, log *slog.Logger) {
	res, err := s.exec.Buy(ctx, mint, s.cfg.BuySolAmount)
	if err != nil {
		s.momentum.Clear(mint)
		log.Error("buy failed", slog.String("error", err.Error()))
		return
	}
	if !res.Success {
		s.momentum.Clear(mint)
		log.Error("buy rejected", slog.String("message", res.Message))
		return
	}

	pos := domain.Position{
		Mint:        mint,
		Strategy:    domain.StrategySniper,
		EntryPrice:  price,
		SolAmount:   s.cfg.BuySolAmount,
		TokenAmount: res.TokensReceived,
		MaxPrice:    price,
		BuyTxRef:    res.TxRef,
		EntryTime:   time.Now(),
		Status:      domain.PositionStatusOpen,
	}
	if err := s.store.Open(ctx, pos); err != nil {
		// The tokens were bought either way; the exit monitor cannot see an
		// unrecorded position, so this needs operator attention.
		log.Error("position record failed after buy",
			slog.String("tx", res.TxRef),
			slog.String("error", err.Error()),
		)
		if s.notifier != nil {
			title := fmt.Sprintf("Unrecorded buy %s", mint)
			msg := fmt.Sprintf("tx=%s error=%v; tokens are held but invisible to the exit monitor", res.TxRef, err)
			_ = s.notifier.Notify(ctx, notify.EventTradeError, title, msg)
		}
		return
	}

	log.Info("position opened",
		slog.Float64("entry_price", price),
		slog.Float64("sol", pos.SolAmount),
		slog.Float64("tokens", pos.TokenAmount),
	)
	if s.notifier != nil {
		title := fmt.Sprintf("Opened %s (sniper)", mint)
		msg := fmt.Sprintf("entry=%.12f sol=%.4f tokens=%.2f", price, pos.SolAmount, pos.TokenAmount)
		if err := s.notifier.Notify(ctx, notify.EventPositionOpened, title, msg); err != nil {
			log.Debug("open notification failed", slog.String("error", err.Error()))
		}
	}
}
