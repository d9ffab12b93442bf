package entry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/snipebot/internal/config"
	"github.com/alanyoungcy/snipebot/internal/domain"
	"github.com/alanyoungcy/snipebot/internal/notify"
)

// CopyEntry mirrors the buys of a configured set of tracked wallets and
// records their sells for the exit monitor's phased mirror override.
type CopyEntry struct {
	cfg       config.CopyConfig
	tracked   map[string]bool
	store     domain.PositionStore
	quotes    PriceSource
	exec      domain.ExecutionClient
	wallets   domain.WalletActivity
	cooldowns domain.Cooldowns
	notifier  *notify.Notifier
	logger    *slog.Logger
}

// NewCopyEntry creates the copy entry engine. notifier may be nil.
func NewCopyEntry(
	cfg config.CopyConfig,
	store domain.PositionStore,
	quotes PriceSource,
	exec domain.ExecutionClient,
	wallets domain.WalletActivity,
	cooldowns domain.Cooldowns,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *CopyEntry {
	tracked := make(map[string]bool, len(cfg.Wallets))
	for _, w := range cfg.Wallets {
		tracked[w] = true
	}
	return &CopyEntry{
		cfg:       cfg,
		tracked:   tracked,
		store:     store,
		quotes:    quotes,
		exec:      exec,
		wallets:   wallets,
		cooldowns: cooldowns,
		notifier:  notifier,
		logger:    logger.With(slog.String("component", "copy_entry")),
	}
}

// HandleWalletTrade is the feed callback for tracked-wallet trades. Buys are
// mirrored with the configured fixed size; sells are recorded for the exit
// monitor to act on.
func (c *CopyEntry) HandleWalletTrade(ctx context.Context, ev domain.WalletTradeEvent) {
	if !c.cfg.Enabled || !c.tracked[ev.Wallet] {
		return
	}
	log := c.logger.With(
		slog.String("mint", ev.Mint),
		slog.String("wallet", ev.Wallet),
	)

	switch ev.Side {
	case domain.TradeSideSell:
		// Recorded unconditionally: the position may be opened by a
		// slower-arriving buy event, and a stale mark expires on its own.
		if err := c.wallets.MarkSold(ctx, ev.Wallet, ev.Mint, ev.Timestamp); err != nil {
			log.Error("wallet sell record failed", slog.String("error", err.Error()))
		}
	case domain.TradeSideBuy:
		c.mirrorBuy(ctx, ev, log)
	}
}

func (c *CopyEntry) mirrorBuy(ctx context.Context, ev domain.WalletTradeEvent, log *slog.Logger) {
	active, err := c.cooldowns.Active(ctx, ev.Mint)
	if err != nil {
		log.Error("cooldown check failed", slog.String("error", err.Error()))
		return
	}
	if active {
		log.Debug("mint on cooldown, not mirroring buy")
		return
	}
	// One position per mint; a second tracked wallet buying the same token
	// does not double the exposure.
	if pos, err := c.store.Get(ctx, ev.Mint); err == nil {
		if pos.Status == domain.PositionStatusOpen {
			log.Debug("position already open, not mirroring buy")
			return
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		log.Error("position lookup failed", slog.String("error", err.Error()))
		return
	}

	res, err := c.exec.Buy(ctx, ev.Mint, c.cfg.BuySolAmount)
	if err != nil {
		log.Error("mirror buy failed", slog.String("error", err.Error()))
		return
	}
	if !res.Success {
		log.Error("mirror buy rejected", slog.String("message", res.Message))
		return
	}

	price := c.entryPrice(ctx, ev.Mint, c.cfg.BuySolAmount, res.TokensReceived)
	pos := domain.Position{
		Mint:         ev.Mint,
		Strategy:     domain.StrategyCopy,
		EntryPrice:   price,
		SolAmount:    c.cfg.BuySolAmount,
		TokenAmount:  res.TokensReceived,
		MaxPrice:     price,
		SourceWallet: ev.Wallet,
		BuyTxRef:     res.TxRef,
		EntryTime:    time.Now(),
		Status:       domain.PositionStatusOpen,
	}
	if err := c.store.Open(ctx, pos); err != nil {
		log.Error("position record failed after buy",
			slog.String("tx", res.TxRef),
			slog.String("error", err.Error()),
		)
		if c.notifier != nil {
			title := fmt.Sprintf("Unrecorded buy %s", ev.Mint)
			msg := fmt.Sprintf("tx=%s error=%v; tokens are held but invisible to the exit monitor", res.TxRef, err)
			_ = c.notifier.Notify(ctx, notify.EventTradeError, title, msg)
		}
		return
	}

	log.Info("mirrored buy",
		slog.Float64("entry_price", price),
		slog.Float64("sol", pos.SolAmount),
		slog.Float64("tokens", pos.TokenAmount),
	)
	if c.notifier != nil {
		title := fmt.Sprintf("Opened %s (copy of %s)", ev.Mint, ev.Wallet)
		msg := fmt.Sprintf("entry=%.12f sol=%.4f tokens=%.2f", price, pos.SolAmount, pos.TokenAmount)
		if err := c.notifier.Notify(ctx, notify.EventPositionOpened, title, msg); err != nil {
			log.Debug("open notification failed", slog.String("error", err.Error()))
		}
	}
}

// entryPrice derives the effective fill price from the buy itself, falling
// back to a fresh valuation when the fill math is unusable.
func (c *CopyEntry) entryPrice(ctx context.Context, mint string, solSpent, tokens float64) float64 {
	if tokens > 0 {
		return solSpent / tokens
	}
	if quote, err := c.quotes.GetPrice(ctx, mint, true); err == nil {
		return quote.Price
	}
	return 0
}
