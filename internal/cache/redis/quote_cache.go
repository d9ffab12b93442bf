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

// QuoteCache implements domain.QuoteCache using Redis hashes with a key TTL.
// Each mint's quote is stored at "quote:{mint}" with fields "price",
// "source", "graduated", "anomalous" and "ts" (Unix nanosecond timestamp).
// The key expires after the cache TTL, so a hit is always fresher than the
// TTL by construction.
type QuoteCache struct {
	rdb *redis.Client
}

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying()}
}

func quoteKey(mint string) string {
	return "quote:" + mint
}

// SetQuote stores the quote and arms the TTL in a single pipeline.
func (qc *QuoteCache) SetQuote(ctx context.Context, q domain.Quote, ttl time.Duration) error {
	key := quoteKey(q.Mint)
	fields := map[string]interface{}{
		"price":     strconv.FormatFloat(q.Price, 'f', -1, 64),
		"source":    string(q.Source),
		"graduated": strconv.FormatBool(q.Graduated),
		"anomalous": strconv.FormatBool(q.Anomalous),
		"ts":        strconv.FormatInt(q.FetchedAt.UnixNano(), 10),
	}

	pipe := qc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", q.Mint, err)
	}
	return nil
}

// GetQuote retrieves the cached quote for a mint. It returns
// domain.ErrNotFound when the key does not exist or has expired.
func (qc *QuoteCache) GetQuote(ctx context.Context, mint string) (domain.Quote, error) {
	vals, err := qc.rdb.HGetAll(ctx, quoteKey(mint)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Quote{}, domain.ErrNotFound
		}
		return domain.Quote{}, fmt.Errorf("redis: get quote %s: %w", mint, err)
	}
	if len(vals) == 0 {
		return domain.Quote{}, domain.ErrNotFound
	}

	price, err := strconv.ParseFloat(vals["price"], 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse quote price %s: %w", mint, err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse quote ts %s: %w", mint, err)
	}
	graduated, _ := strconv.ParseBool(vals["graduated"])
	anomalous, _ := strconv.ParseBool(vals["anomalous"])

	return domain.Quote{
		Mint:      mint,
		Price:     price,
		Source:    domain.QuoteSource(vals["source"]),
		Graduated: graduated,
		Anomalous: anomalous,
		FetchedAt: time.Unix(0, tsNano),
	}, nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
