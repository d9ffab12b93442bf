package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validConfig is Defaults plus the fields with no sensible default.
func validConfig() Config {
	cfg := Defaults()
	cfg.TradeAPI.BaseURL = "https://trade.example.com"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string // substring; empty means valid
	}{
		{
			name:   "defaults with trade api",
			mutate: func(*Config) {},
		},
		{
			name:    "unknown mode",
			mutate:  func(c *Config) { c.Mode = "backtest" },
			wantErr: "mode",
		},
		{
			name:    "missing trade api url",
			mutate:  func(c *Config) { c.TradeAPI.BaseURL = "" },
			wantErr: "trade_api.base_url",
		},
		{
			name:    "missing redis addr",
			mutate:  func(c *Config) { c.Redis.Addr = "" },
			wantErr: "redis.addr",
		},
		{
			name:    "copy enabled without wallets",
			mutate:  func(c *Config) { c.Copy.Enabled = true },
			wantErr: "copy.wallets",
		},
		{
			name: "copy windows inverted",
			mutate: func(c *Config) {
				c.Copy.Enabled = true
				c.Copy.Wallets = []string{"walletA"}
				c.Copy.MirrorWindow = duration{10 * time.Minute}
				c.Copy.IndependentAfter = duration{3 * time.Minute}
			},
			wantErr: "independent_after",
		},
		{
			name: "take profit enabled without threshold",
			mutate: func(c *Config) {
				c.Sniper.Exit.TakeProfitPercent = 0
			},
			wantErr: "sniper.exit.take_profit_percent",
		},
		{
			name:    "trade mode without feed url",
			mutate:  func(c *Config) { c.Feed.WsURL = "" },
			wantErr: "feed.ws_url",
		},
		{
			name: "monitor mode without feed url is fine",
			mutate: func(c *Config) {
				c.Mode = "monitor"
				c.Feed.WsURL = ""
			},
		},
		{
			name: "postgres enabled without target",
			mutate: func(c *Config) {
				c.Postgres.Enabled = true
				c.Postgres.Host = ""
			},
			wantErr: "postgres",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate accepted an invalid config")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
mode = "monitor"
log_level = "debug"

[trade_api]
base_url = "https://trade.example.com"

[monitor]
tick_interval = "5s"

[sniper]
watch_duration = "2m"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "monitor" || cfg.LogLevel != "debug" {
		t.Errorf("Mode = %q, LogLevel = %q", cfg.Mode, cfg.LogLevel)
	}
	if cfg.Monitor.TickInterval.Duration != 5*time.Second {
		t.Errorf("TickInterval = %v, want 5s", cfg.Monitor.TickInterval.Duration)
	}
	if cfg.Sniper.WatchDuration.Duration != 2*time.Minute {
		t.Errorf("WatchDuration = %v, want 2m", cfg.Sniper.WatchDuration.Duration)
	}
	// Untouched sections keep their defaults.
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q, want default", cfg.Redis.Addr)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate after Load: %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SNIPEBOT_TRADE_API_BASE_URL", "https://override.example.com")
	t.Setenv("SNIPEBOT_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("SNIPEBOT_SNIPER_BUY_SOL_AMOUNT", "0.25")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TradeAPI.BaseURL != "https://override.example.com" {
		t.Errorf("TradeAPI.BaseURL = %q", cfg.TradeAPI.BaseURL)
	}
	if cfg.Redis.Addr != "redis.internal:6380" {
		t.Errorf("Redis.Addr = %q", cfg.Redis.Addr)
	}
	if cfg.Sniper.BuySolAmount != 0.25 {
		t.Errorf("Sniper.BuySolAmount = %v", cfg.Sniper.BuySolAmount)
	}
}

func TestDurationUnmarshalText(t *testing.T) {
	var d duration
	if err := d.UnmarshalText([]byte("90s")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if d.Duration != 90*time.Second {
		t.Errorf("Duration = %v, want 90s", d.Duration)
	}
	if err := d.UnmarshalText([]byte("not-a-duration")); err == nil {
		t.Error("UnmarshalText accepted garbage")
	}
}
