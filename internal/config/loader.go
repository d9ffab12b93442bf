package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SNIPEBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SNIPEBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── RPC ──
	setStr(&cfg.RPC.PrimaryURL, "SNIPEBOT_RPC_PRIMARY_URL")
	setStr(&cfg.RPC.FallbackURL, "SNIPEBOT_RPC_FALLBACK_URL")
	setInt(&cfg.RPC.RetryAttempts, "SNIPEBOT_RPC_RETRY_ATTEMPTS")
	setDuration(&cfg.RPC.RetryDelay, "SNIPEBOT_RPC_RETRY_DELAY")
	setDuration(&cfg.RPC.Timeout, "SNIPEBOT_RPC_TIMEOUT")

	// ── DEX ──
	setStr(&cfg.Dex.BaseURL, "SNIPEBOT_DEX_BASE_URL")

	// ── Trade API ──
	setStr(&cfg.TradeAPI.BaseURL, "SNIPEBOT_TRADE_API_BASE_URL")
	setStr(&cfg.TradeAPI.APIKey, "SNIPEBOT_TRADE_API_KEY")
	setInt(&cfg.TradeAPI.SlippageBps, "SNIPEBOT_TRADE_API_SLIPPAGE_BPS")
	setFloat64(&cfg.TradeAPI.PriorityFee, "SNIPEBOT_TRADE_API_PRIORITY_FEE")
	setInt(&cfg.TradeAPI.SubmitRetries, "SNIPEBOT_TRADE_API_SUBMIT_RETRIES")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SNIPEBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SNIPEBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SNIPEBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SNIPEBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SNIPEBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SNIPEBOT_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "SNIPEBOT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "SNIPEBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SNIPEBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SNIPEBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SNIPEBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SNIPEBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SNIPEBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SNIPEBOT_POSTGRES_SSLMODE")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "SNIPEBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "SNIPEBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SNIPEBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "SNIPEBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SNIPEBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SNIPEBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SNIPEBOT_S3_USE_SSL")

	// ── Valuation ──
	setDuration(&cfg.Valuation.LocalTTL, "SNIPEBOT_VALUATION_LOCAL_TTL")
	setDuration(&cfg.Valuation.SharedTTL, "SNIPEBOT_VALUATION_SHARED_TTL")

	// ── Sniper ──
	setBool(&cfg.Sniper.Enabled, "SNIPEBOT_SNIPER_ENABLED")
	setFloat64(&cfg.Sniper.BuySolAmount, "SNIPEBOT_SNIPER_BUY_SOL_AMOUNT")
	setDuration(&cfg.Sniper.WatchDuration, "SNIPEBOT_SNIPER_WATCH_DURATION")
	setInt(&cfg.Sniper.CooldownMinutes, "SNIPEBOT_SNIPER_COOLDOWN_MINUTES")

	// ── Copy ──
	setBool(&cfg.Copy.Enabled, "SNIPEBOT_COPY_ENABLED")
	setStringSlice(&cfg.Copy.Wallets, "SNIPEBOT_COPY_WALLETS")
	setFloat64(&cfg.Copy.BuySolAmount, "SNIPEBOT_COPY_BUY_SOL_AMOUNT")
	setInt(&cfg.Copy.CooldownMinutes, "SNIPEBOT_COPY_COOLDOWN_MINUTES")

	// ── Monitor ──
	setDuration(&cfg.Monitor.TickInterval, "SNIPEBOT_MONITOR_TICK_INTERVAL")

	// ── Feed ──
	setStr(&cfg.Feed.WsURL, "SNIPEBOT_FEED_WS_URL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SNIPEBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SNIPEBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SNIPEBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SNIPEBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SNIPEBOT_MODE")
	setStr(&cfg.LogLevel, "SNIPEBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
