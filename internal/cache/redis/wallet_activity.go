package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/snipebot/internal/domain"
)

// walletSoldTTL bounds how long a sale flag is kept. The copy strategy only
// consults the flag within the first minutes of a position's life, so a short
// retention is enough and keeps the keyspace from growing unbounded.
const walletSoldTTL = 30 * time.Minute

// WalletActivity implements domain.WalletActivity. A sale is recorded at
// "wallet_sold:{wallet}:{mint}" as a Unix millisecond timestamp, so sales of
// the same mint by different tracked wallets never shadow each other. The
// latest observed sale overwrites any earlier one: a wallet that sold before
// our entry and again after it must surface the post-entry sale, and
// MirrorDecision already discards timestamps older than the entry.
type WalletActivity struct {
	rdb *redis.Client
}

// NewWalletActivity creates a WalletActivity store backed by the given Client.
func NewWalletActivity(c *Client) *WalletActivity {
	return &WalletActivity{rdb: c.Underlying()}
}

func walletSoldKey(wallet, mint string) string {
	return "wallet_sold:" + wallet + ":" + mint
}

// MarkSold records that the wallet sold the mint at the given time.
func (w *WalletActivity) MarkSold(ctx context.Context, wallet, mint string, at time.Time) error {
	val := strconv.FormatInt(at.UnixMilli(), 10)
	if err := w.rdb.Set(ctx, walletSoldKey(wallet, mint), val, walletSoldTTL).Err(); err != nil {
		return fmt.Errorf("redis: mark sold %s %s: %w", wallet, mint, err)
	}
	return nil
}

// SoldAt returns when the wallet last sold the mint, if recorded.
func (w *WalletActivity) SoldAt(ctx context.Context, wallet, mint string) (time.Time, bool, error) {
	val, err := w.rdb.Get(ctx, walletSoldKey(wallet, mint)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("redis: sold at %s %s: %w", wallet, mint, err)
	}
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis: parse sold at %s %s: %w", wallet, mint, err)
	}
	return time.UnixMilli(ms), true, nil
}

var _ domain.WalletActivity = (*WalletActivity)(nil)
