package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/snipebot/internal/blob/s3"
	"github.com/alanyoungcy/snipebot/internal/cache/redis"
	"github.com/alanyoungcy/snipebot/internal/config"
	"github.com/alanyoungcy/snipebot/internal/domain"
	"github.com/alanyoungcy/snipebot/internal/notify"
	"github.com/alanyoungcy/snipebot/internal/platform/chainrpc"
	"github.com/alanyoungcy/snipebot/internal/platform/dexapi"
	"github.com/alanyoungcy/snipebot/internal/platform/tradeapi"
	"github.com/alanyoungcy/snipebot/internal/service"
	"github.com/alanyoungcy/snipebot/internal/store/postgres"
	"github.com/alanyoungcy/snipebot/internal/store/redisstore"
)

// Dependencies bundles every dependency the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Position state and journal, both on Redis.
	Store *redisstore.PositionStore

	// Redis-backed coordination primitives.
	Curves     domain.CurveRegistry
	ForceClose domain.ForceCloseFlags
	Wallets    domain.WalletActivity
	Cooldowns  domain.Cooldowns

	// Services and platform clients.
	Quotes *service.ValuationService
	Exec   domain.ExecutionClient

	// Optional analytics mirrors; empty when postgres is disabled.
	JournalSinks []domain.JournalSink

	// Optional cold archive; nil when s3 is disabled.
	Archiver *s3blob.JournalArchiver

	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Redis: required, fail fast ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Store = redisstore.NewPositionStore(redisClient.Underlying())
	deps.Curves = redis.NewCurveRegistry(redisClient)
	deps.ForceClose = redis.NewForceCloseFlags(redisClient)
	deps.Wallets = redis.NewWalletActivity(redisClient)
	deps.Cooldowns = redis.NewCooldowns(redisClient)
	quoteCache := redis.NewQuoteCache(redisClient)

	// --- Platform clients ---
	rpcClient := chainrpc.NewClient(chainrpc.ClientConfig{
		PrimaryURL:  cfg.RPC.PrimaryURL,
		FallbackURL: cfg.RPC.FallbackURL,
		Retries:     cfg.RPC.RetryAttempts,
		RetryDelay:  cfg.RPC.RetryDelay.Duration,
		Timeout:     cfg.RPC.Timeout.Duration,
	}, logger)
	dexClient := dexapi.NewClient(cfg.Dex.BaseURL, cfg.Dex.Timeout.Duration)
	deps.Exec = tradeapi.NewClient(tradeapi.ClientConfig{
		BaseURL:       cfg.TradeAPI.BaseURL,
		APIKey:        cfg.TradeAPI.APIKey,
		SlippageBps:   cfg.TradeAPI.SlippageBps,
		PriorityFee:   cfg.TradeAPI.PriorityFee,
		Timeout:       cfg.TradeAPI.Timeout.Duration,
		SubmitRetries: cfg.TradeAPI.SubmitRetries,
	}, logger)

	deps.Quotes = service.NewValuationService(
		deps.Curves,
		rpcClient,
		dexClient,
		quoteCache,
		deps.Store,
		cfg.Valuation.LocalTTL.Duration,
		cfg.Valuation.SharedTTL.Duration,
		logger,
	)

	// --- Postgres journal mirror (optional) ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
		deps.JournalSinks = append(deps.JournalSinks, postgres.NewJournalStore(pgClient.Pool()))
	}

	// --- S3 journal archive (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewJournalArchiver(s3blob.NewWriter(s3Client), deps.Store, logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
