package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/snipebot/internal/domain"
)

// curveAddrTTL keeps mint→curve mappings for a day. A mint we have not
// touched in 24h is no longer a live candidate or position.
const curveAddrTTL = 24 * time.Hour

// CurveRegistry implements domain.CurveRegistry with string keys at
// "curve_addr:{mint}".
type CurveRegistry struct {
	rdb *redis.Client
}

// NewCurveRegistry creates a CurveRegistry backed by the given Client.
func NewCurveRegistry(c *Client) *CurveRegistry {
	return &CurveRegistry{rdb: c.Underlying()}
}

func curveAddrKey(mint string) string {
	return "curve_addr:" + mint
}

// SetCurveAccount records the bonding-curve account address for a mint.
func (r *CurveRegistry) SetCurveAccount(ctx context.Context, mint, account string) error {
	if err := r.rdb.Set(ctx, curveAddrKey(mint), account, curveAddrTTL).Err(); err != nil {
		return fmt.Errorf("redis: set curve account %s: %w", mint, err)
	}
	return nil
}

// CurveAccount resolves the bonding-curve account address for a mint.
func (r *CurveRegistry) CurveAccount(ctx context.Context, mint string) (string, error) {
	account, err := r.rdb.Get(ctx, curveAddrKey(mint)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrUnknownCurve
		}
		return "", fmt.Errorf("redis: curve account %s: %w", mint, err)
	}
	return account, nil
}

var _ domain.CurveRegistry = (*CurveRegistry)(nil)
