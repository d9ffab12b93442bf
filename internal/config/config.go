// Package config defines the top-level configuration for the sniper bot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SNIPEBOT_* environment variables.
type Config struct {
	RPC       RPCConfig       `toml:"rpc"`
	Dex       DexConfig       `toml:"dex"`
	TradeAPI  TradeAPIConfig  `toml:"trade_api"`
	Redis     RedisConfig     `toml:"redis"`
	Postgres  PostgresConfig  `toml:"postgres"`
	S3        S3Config        `toml:"s3"`
	Valuation ValuationConfig `toml:"valuation"`
	Sniper    SniperConfig    `toml:"sniper"`
	Copy      CopyConfig      `toml:"copy"`
	Monitor   MonitorConfig   `toml:"monitor"`
	Feed      FeedConfig      `toml:"feed"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// RPCConfig holds the chain RPC endpoints used for bonding-curve reads.
type RPCConfig struct {
	PrimaryURL    string   `toml:"primary_url"`
	FallbackURL   string   `toml:"fallback_url"`
	RetryAttempts int      `toml:"retry_attempts"`
	RetryDelay    duration `toml:"retry_delay"`
	Timeout       duration `toml:"timeout"`
}

// DexConfig holds the DEX aggregator price API used after graduation.
type DexConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout duration `toml:"timeout"`
}

// TradeAPIConfig holds the third-party execution API parameters.
type TradeAPIConfig struct {
	BaseURL       string   `toml:"base_url"`
	APIKey        string   `toml:"api_key"`
	SlippageBps   int      `toml:"slippage_bps"`
	PriorityFee   float64  `toml:"priority_fee"`
	Timeout       duration `toml:"timeout"`
	SubmitRetries int      `toml:"submit_retries"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds the optional analytics mirror database. When Enabled
// is false the bot runs on Redis alone.
type PostgresConfig struct {
	Enabled      bool   `toml:"enabled"`
	DSN          string `toml:"dsn"`
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Database     string `toml:"database"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	SSLMode      string `toml:"ssl_mode"`
	PoolMaxConns int    `toml:"pool_max_conns"`
	PoolMinConns int    `toml:"pool_min_conns"`
}

// S3Config holds the optional journal archive target.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ValuationConfig holds price cache TTLs.
type ValuationConfig struct {
	LocalTTL  duration `toml:"local_ttl"`
	SharedTTL duration `toml:"shared_ttl"`
}

// ExitRulesConfig holds the generic exit thresholds shared by both
// strategies. A disabled or zero-threshold check never fires.
type ExitRulesConfig struct {
	TakeProfitEnabled   bool    `toml:"take_profit_enabled"`
	TakeProfitPercent   float64 `toml:"take_profit_percent"`
	TrailingStopEnabled bool    `toml:"trailing_stop_enabled"`
	TrailingStopPercent float64 `toml:"trailing_stop_percent"`
	StopLossEnabled     bool    `toml:"stop_loss_enabled"`
	StopLossPercent     float64 `toml:"stop_loss_percent"`
	MaxHoldEnabled      bool    `toml:"max_hold_enabled"`
	MaxHoldMinutes      int     `toml:"max_hold_minutes"`
}

// MomentumConfig holds the minimum-gain thresholds (percent) for the five
// momentum lookback windows.
type MomentumConfig struct {
	Gain15s float64 `toml:"gain_15s"`
	Gain30s float64 `toml:"gain_30s"`
	Gain1m  float64 `toml:"gain_1m"`
	Gain2m  float64 `toml:"gain_2m"`
	Gain5m  float64 `toml:"gain_5m"`
}

// SniperConfig holds momentum-sniper strategy parameters.
type SniperConfig struct {
	Enabled         bool            `toml:"enabled"`
	BuySolAmount    float64         `toml:"buy_sol_amount"`
	WatchDuration   duration        `toml:"watch_duration"`
	SampleInterval  duration        `toml:"sample_interval"`
	CooldownMinutes int             `toml:"cooldown_minutes"`
	Momentum        MomentumConfig  `toml:"momentum"`
	Exit            ExitRulesConfig `toml:"exit"`
}

// CopyConfig holds wallet copy-trading parameters.
type CopyConfig struct {
	Enabled         bool            `toml:"enabled"`
	Wallets         []string        `toml:"wallets"`
	BuySolAmount    float64         `toml:"buy_sol_amount"`
	CooldownMinutes int             `toml:"cooldown_minutes"`
	// MirrorWindow and IndependentAfter bound the phased wallet-exit
	// override: before MirrorWindow the wallet's exit is mirrored
	// unconditionally, between the two it is mirrored only at a loss, and
	// after IndependentAfter the wallet signal is ignored entirely.
	MirrorWindow     duration        `toml:"mirror_window"`
	IndependentAfter duration        `toml:"independent_after"`
	Exit             ExitRulesConfig `toml:"exit"`
}

// MonitorConfig holds the exit-orchestrator loop parameters.
type MonitorConfig struct {
	TickInterval duration `toml:"tick_interval"`
}

// FeedConfig holds the launchpad websocket feed parameters.
type FeedConfig struct {
	WsURL string `toml:"ws_url"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		RPC: RPCConfig{
			PrimaryURL:    "https://api.mainnet-beta.solana.com",
			RetryAttempts: 3,
			RetryDelay:    duration{500 * time.Millisecond},
			Timeout:       duration{10 * time.Second},
		},
		Dex: DexConfig{
			BaseURL: "https://api.jup.ag/price/v2",
			Timeout: duration{10 * time.Second},
		},
		TradeAPI: TradeAPIConfig{
			SlippageBps:   500,
			PriorityFee:   0.0005,
			Timeout:       duration{30 * time.Second},
			SubmitRetries: 2,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Host:         "localhost",
			Port:         5432,
			Database:     "snipebot",
			User:         "postgres",
			SSLMode:      "disable",
			PoolMaxConns: 10,
			PoolMinConns: 2,
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "snipebot-journal",
			ForcePathStyle: true,
		},
		Valuation: ValuationConfig{
			LocalTTL:  duration{3 * time.Second},
			SharedTTL: duration{10 * time.Second},
		},
		Sniper: SniperConfig{
			Enabled:         true,
			BuySolAmount:    0.05,
			WatchDuration:   duration{90 * time.Second},
			SampleInterval:  duration{2 * time.Second},
			CooldownMinutes: 30,
			Momentum: MomentumConfig{
				Gain15s: 2,
				Gain30s: 3,
				Gain1m:  5,
				Gain2m:  8,
				Gain5m:  12,
			},
			Exit: ExitRulesConfig{
				TakeProfitEnabled:   true,
				TakeProfitPercent:   150,
				TrailingStopEnabled: true,
				TrailingStopPercent: 20,
				StopLossEnabled:     true,
				StopLossPercent:     30,
				MaxHoldEnabled:      true,
				MaxHoldMinutes:      60,
			},
		},
		Copy: CopyConfig{
			Enabled:          false,
			BuySolAmount:     0.05,
			CooldownMinutes:  30,
			MirrorWindow:     duration{3 * time.Minute},
			IndependentAfter: duration{10 * time.Minute},
			Exit: ExitRulesConfig{
				TakeProfitEnabled:   true,
				TakeProfitPercent:   100,
				TrailingStopEnabled: true,
				TrailingStopPercent: 15,
				StopLossEnabled:     true,
				StopLossPercent:     25,
				MaxHoldEnabled:      true,
				MaxHoldMinutes:      120,
			},
		},
		Monitor: MonitorConfig{
			TickInterval: duration{2 * time.Second},
		},
		Feed: FeedConfig{
			WsURL: "wss://pumpportal.fun/api/data",
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

// Validate checks the configuration for missing or inconsistent values and
// returns a combined error listing every problem found.
func (c *Config) Validate() error {
	var problems []string

	switch strings.ToLower(c.Mode) {
	case "trade", "monitor":
	default:
		problems = append(problems, fmt.Sprintf("mode: unsupported %q (want trade or monitor)", c.Mode))
	}

	if c.RPC.PrimaryURL == "" {
		problems = append(problems, "rpc.primary_url: required")
	}
	if c.RPC.RetryAttempts <= 0 {
		problems = append(problems, "rpc.retry_attempts: must be positive")
	}
	if c.Redis.Addr == "" {
		problems = append(problems, "redis.addr: required")
	}
	if c.TradeAPI.BaseURL == "" {
		problems = append(problems, "trade_api.base_url: required")
	}
	if c.Monitor.TickInterval.Duration <= 0 {
		problems = append(problems, "monitor.tick_interval: must be positive")
	}
	if c.Valuation.LocalTTL.Duration <= 0 || c.Valuation.SharedTTL.Duration <= 0 {
		problems = append(problems, "valuation: ttls must be positive")
	}

	if c.Sniper.Enabled {
		if c.Sniper.BuySolAmount <= 0 {
			problems = append(problems, "sniper.buy_sol_amount: must be positive")
		}
		if c.Sniper.WatchDuration.Duration <= 0 {
			problems = append(problems, "sniper.watch_duration: must be positive")
		}
		problems = append(problems, validateExitRules("sniper.exit", c.Sniper.Exit)...)
	}
	if c.Copy.Enabled {
		if len(c.Copy.Wallets) == 0 {
			problems = append(problems, "copy.wallets: at least one tracked wallet required")
		}
		if c.Copy.BuySolAmount <= 0 {
			problems = append(problems, "copy.buy_sol_amount: must be positive")
		}
		if c.Copy.MirrorWindow.Duration <= 0 || c.Copy.IndependentAfter.Duration <= c.Copy.MirrorWindow.Duration {
			problems = append(problems, "copy: independent_after must exceed mirror_window, both positive")
		}
		problems = append(problems, validateExitRules("copy.exit", c.Copy.Exit)...)
	}

	if strings.ToLower(c.Mode) == "trade" {
		if c.Feed.WsURL == "" {
			problems = append(problems, "feed.ws_url: required in trade mode")
		}
	}

	if c.Postgres.Enabled && c.Postgres.DSN == "" && c.Postgres.Host == "" {
		problems = append(problems, "postgres: dsn or host required when enabled")
	}
	if c.S3.Enabled && c.S3.Bucket == "" {
		problems = append(problems, "s3.bucket: required when enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func validateExitRules(prefix string, r ExitRulesConfig) []string {
	var problems []string
	if r.TakeProfitEnabled && r.TakeProfitPercent <= 0 {
		problems = append(problems, prefix+".take_profit_percent: must be positive when enabled")
	}
	if r.TrailingStopEnabled && r.TrailingStopPercent <= 0 {
		problems = append(problems, prefix+".trailing_stop_percent: must be positive when enabled")
	}
	if r.StopLossEnabled && r.StopLossPercent <= 0 {
		problems = append(problems, prefix+".stop_loss_percent: must be positive when enabled")
	}
	if r.MaxHoldEnabled && r.MaxHoldMinutes <= 0 {
		problems = append(problems, prefix+".max_hold_minutes: must be positive when enabled")
	}
	return problems
}
