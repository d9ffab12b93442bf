package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/snipebot/internal/domain"
)

// ForceCloseFlags implements domain.ForceCloseFlags using plain string keys
// at "force_exit:{mint}". An external watcher (for example a graduation
// monitor) sets the flag; the orchestrator consumes it with GETDEL so each
// flag triggers at most one close attempt.
type ForceCloseFlags struct {
	rdb *redis.Client
}

// NewForceCloseFlags creates a ForceCloseFlags store backed by the given Client.
func NewForceCloseFlags(c *Client) *ForceCloseFlags {
	return &ForceCloseFlags{rdb: c.Underlying()}
}

func forceCloseKey(mint string) string {
	return "force_exit:" + mint
}

// Set flags a mint for forced close with the given reason.
func (f *ForceCloseFlags) Set(ctx context.Context, mint, reason string) error {
	if err := f.rdb.Set(ctx, forceCloseKey(mint), reason, 0).Err(); err != nil {
		return fmt.Errorf("redis: set force close %s: %w", mint, err)
	}
	return nil
}

// Consume atomically reads and clears the flag for a mint.
func (f *ForceCloseFlags) Consume(ctx context.Context, mint string) (string, bool, error) {
	reason, err := f.rdb.GetDel(ctx, forceCloseKey(mint)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis: consume force close %s: %w", mint, err)
	}
	return reason, true, nil
}

var _ domain.ForceCloseFlags = (*ForceCloseFlags)(nil)
