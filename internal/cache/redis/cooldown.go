package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/snipebot/internal/domain"
)

// Cooldowns implements domain.Cooldowns with TTL keys at "cooldown:{mint}".
type Cooldowns struct {
	rdb *redis.Client
}

// NewCooldowns creates a Cooldowns store backed by the given Client.
func NewCooldowns(c *Client) *Cooldowns {
	return &Cooldowns{rdb: c.Underlying()}
}

func cooldownKey(mint string) string {
	return "cooldown:" + mint
}

// Set arms the re-entry cooldown for a mint.
func (cd *Cooldowns) Set(ctx context.Context, mint string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := cd.rdb.Set(ctx, cooldownKey(mint), "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis: set cooldown %s: %w", mint, err)
	}
	return nil
}

// Active reports whether the mint is still cooling down.
func (cd *Cooldowns) Active(ctx context.Context, mint string) (bool, error) {
	n, err := cd.rdb.Exists(ctx, cooldownKey(mint)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: cooldown %s: %w", mint, err)
	}
	return n > 0, nil
}

var _ domain.Cooldowns = (*Cooldowns)(nil)
