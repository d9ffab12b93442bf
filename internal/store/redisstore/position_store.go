// Package redisstore implements the position store and trade journal on
// Redis. The layout is a per-mint hash ("position:{mint}"), an open-index
// set ("positions:open"), and per-day journal lists ("journal:{yyyy-mm-dd}").
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/snipebot/internal/domain"
)

const (
	openIndexKey = "positions:open"
	positionKeyP = "position:"
	journalKeyP  = "journal:"
)

func positionKey(mint string) string {
	return positionKeyP + mint
}

func journalKey(day string) string {
	return journalKeyP + day
}

// openScript inserts the open-index entry and the position record in one
// atomic step. Returns 0 without touching anything when the mint is already
// open.
var openScript = redis.NewScript(`
if redis.call('SISMEMBER', KEYS[1], ARGV[1]) == 1 then
	return 0
end
redis.call('SADD', KEYS[1], ARGV[1])
redis.call('DEL', KEYS[2])
redis.call('HSET', KEYS[2], unpack(ARGV, 2))
return 1
`)

// maxPriceScript raises the high-water mark only for open positions and only
// when the new price exceeds the stored mark.
var maxPriceScript = redis.NewScript(`
if redis.call('SISMEMBER', KEYS[2], ARGV[3]) == 0 then
	return 0
end
local cur = tonumber(redis.call('HGET', KEYS[1], 'max_price'))
local new = tonumber(ARGV[1])
if cur and new <= cur then
	return 0
end
redis.call('HSET', KEYS[1], 'max_price', ARGV[1], 'max_updated_at', ARGV[2])
return 1
`)

// closeScript is the single commit point for a close: remove from the open
// index, write the closed fields, append the journal entry. The SREM result
// is the authority: when it returns 0 the position was already closed (or
// never open) and nothing is written, which makes Close idempotent under
// racing callers.
var closeScript = redis.NewScript(`
if redis.call('SREM', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[2], unpack(ARGV, 3))
redis.call('RPUSH', KEYS[3], ARGV[2])
return 1
`)

// PositionStore implements domain.PositionStore, domain.JournalReader and
// domain.EntryPriceSource on Redis.
type PositionStore struct {
	rdb *redis.Client
}

// NewPositionStore creates a PositionStore on the given go-redis client.
func NewPositionStore(rdb *redis.Client) *PositionStore {
	return &PositionStore{rdb: rdb}
}

// Open validates and inserts a new open position. Returns
// domain.ErrAlreadyExists when the mint is already in the open index.
func (s *PositionStore) Open(ctx context.Context, pos domain.Position) error {
	if err := pos.Validate(); err != nil {
		return err
	}
	if pos.MaxPrice < pos.EntryPrice {
		pos.MaxPrice = pos.EntryPrice
	}
	pos.Status = domain.PositionStatusOpen

	args := []interface{}{pos.Mint}
	args = append(args, hashArgs(map[string]string{
		"mint":          pos.Mint,
		"strategy":      string(pos.Strategy),
		"entry_price":   formatFloat(pos.EntryPrice),
		"sol_amount":    formatFloat(pos.SolAmount),
		"token_amount":  formatFloat(pos.TokenAmount),
		"max_price":     formatFloat(pos.MaxPrice),
		"source_wallet": pos.SourceWallet,
		"buy_tx_ref":    pos.BuyTxRef,
		"entry_time":    strconv.FormatInt(pos.EntryTime.UnixMilli(), 10),
		"status":        string(pos.Status),
	})...)

	n, err := openScript.Run(ctx, s.rdb, []string{openIndexKey, positionKey(pos.Mint)}, args...).Int()
	if err != nil {
		return fmt.Errorf("redisstore: open %s: %w", pos.Mint, err)
	}
	if n == 0 {
		return fmt.Errorf("redisstore: open %s: %w", pos.Mint, domain.ErrAlreadyExists)
	}
	return nil
}

// UpdateMaxPrice raises the high-water mark for an open position. Prices at
// or below the stored mark, and closed or unknown mints, are a no-op.
func (s *PositionStore) UpdateMaxPrice(ctx context.Context, mint string, price float64) error {
	if price <= 0 {
		return nil
	}
	_, err := maxPriceScript.Run(ctx, s.rdb,
		[]string{positionKey(mint), openIndexKey},
		formatFloat(price),
		strconv.FormatInt(time.Now().UnixMilli(), 10),
		mint,
	).Int()
	if err != nil {
		return fmt.Errorf("redisstore: update max price %s: %w", mint, err)
	}
	return nil
}

// Close finalizes an open position and appends the journal entry atomically.
// Returns domain.ErrNotFound when the mint has no open record; callers treat
// that as "someone else already closed it" and must not retry.
func (s *PositionStore) Close(ctx context.Context, mint string, req domain.CloseRequest) (*domain.ClosedTrade, error) {
	pos, err := s.Get(ctx, mint)
	if err != nil {
		return nil, err
	}
	if pos.Status != domain.PositionStatusOpen {
		return nil, fmt.Errorf("redisstore: close %s: %w", mint, domain.ErrNotFound)
	}

	closedAt := time.Now().UTC()
	exitValue := req.ExitValue
	if exitValue == 0 {
		exitValue = pos.TokenAmount * req.ExitPrice
	}
	trade := domain.ClosedTrade{
		ID:           uuid.New().String(),
		Mint:         pos.Mint,
		Strategy:     pos.Strategy,
		SourceWallet: pos.SourceWallet,
		EntryPrice:   pos.EntryPrice,
		ExitPrice:    req.ExitPrice,
		SolAmount:    pos.SolAmount,
		TokenAmount:  pos.TokenAmount,
		ExitValue:    exitValue,
		PnL:          exitValue - pos.SolAmount,
		PnLPercent:   pos.PnLPercentAt(req.ExitPrice),
		Reason:       req.Reason,
		TxRef:        req.TxRef,
		EntryTime:    pos.EntryTime,
		ClosedAt:     closedAt,
	}

	entry, err := json.Marshal(trade)
	if err != nil {
		return nil, fmt.Errorf("redisstore: marshal journal entry %s: %w", mint, err)
	}

	args := []interface{}{mint, string(entry)}
	args = append(args, hashArgs(map[string]string{
		"status":       string(domain.PositionStatusClosed),
		"exit_price":   formatFloat(trade.ExitPrice),
		"exit_value":   formatFloat(trade.ExitValue),
		"pnl":          formatFloat(trade.PnL),
		"pnl_percent":  formatFloat(trade.PnLPercent),
		"close_reason": string(trade.Reason),
		"sell_tx_ref":  trade.TxRef,
		"closed_at":    strconv.FormatInt(closedAt.UnixMilli(), 10),
	})...)

	n, err := closeScript.Run(ctx, s.rdb,
		[]string{openIndexKey, positionKey(mint), journalKey(domain.JournalDay(closedAt))},
		args...,
	).Int()
	if err != nil {
		return nil, fmt.Errorf("redisstore: close %s: %w", mint, err)
	}
	if n == 0 {
		// Lost the race against a concurrent close.
		return nil, fmt.Errorf("redisstore: close %s: %w", mint, domain.ErrNotFound)
	}
	return &trade, nil
}

// GetOpen returns a snapshot of all open positions. Mints that disappear
// between the index read and the record read (a concurrent close) are
// skipped.
func (s *PositionStore) GetOpen(ctx context.Context) ([]domain.Position, error) {
	mints, err := s.rdb.SMembers(ctx, openIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: open index: %w", err)
	}
	if len(mints) == 0 {
		return nil, nil
	}

	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(mints))
	for i, mint := range mints {
		cmds[i] = pipe.HGetAll(ctx, positionKey(mint))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redisstore: open positions pipeline: %w", err)
	}

	positions := make([]domain.Position, 0, len(mints))
	for i := range cmds {
		vals, err := cmds[i].Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		pos, err := parsePosition(vals)
		if err != nil {
			return nil, fmt.Errorf("redisstore: parse position %s: %w", mints[i], err)
		}
		if pos.Status == domain.PositionStatusOpen {
			positions = append(positions, pos)
		}
	}
	return positions, nil
}

// Get returns the position record for a mint, open or closed.
func (s *PositionStore) Get(ctx context.Context, mint string) (domain.Position, error) {
	vals, err := s.rdb.HGetAll(ctx, positionKey(mint)).Result()
	if err != nil {
		return domain.Position{}, fmt.Errorf("redisstore: get %s: %w", mint, err)
	}
	if len(vals) == 0 {
		return domain.Position{}, fmt.Errorf("redisstore: get %s: %w", mint, domain.ErrNotFound)
	}
	pos, err := parsePosition(vals)
	if err != nil {
		return domain.Position{}, fmt.Errorf("redisstore: parse position %s: %w", mint, err)
	}
	return pos, nil
}

// ListDay returns the journaled trades for a UTC calendar day ("2006-01-02").
func (s *PositionStore) ListDay(ctx context.Context, day string) ([]domain.ClosedTrade, error) {
	entries, err := s.rdb.LRange(ctx, journalKey(day), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: journal %s: %w", day, err)
	}
	trades := make([]domain.ClosedTrade, 0, len(entries))
	for _, e := range entries {
		var t domain.ClosedTrade
		if err := json.Unmarshal([]byte(e), &t); err != nil {
			return nil, fmt.Errorf("redisstore: journal %s: decode entry: %w", day, err)
		}
		trades = append(trades, t)
	}
	return trades, nil
}

// LastEntryPrice returns the stored entry price for a mint, open or closed.
// Used by the valuation service as the graduated-token fallback.
func (s *PositionStore) LastEntryPrice(ctx context.Context, mint string) (float64, error) {
	val, err := s.rdb.HGet(ctx, positionKey(mint), "entry_price").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("redisstore: entry price %s: %w", mint, err)
	}
	price, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("redisstore: parse entry price %s: %w", mint, err)
	}
	return price, nil
}

func parsePosition(vals map[string]string) (domain.Position, error) {
	entryPrice, err := strconv.ParseFloat(vals["entry_price"], 64)
	if err != nil {
		return domain.Position{}, fmt.Errorf("entry_price: %w", err)
	}
	solAmount, err := strconv.ParseFloat(vals["sol_amount"], 64)
	if err != nil {
		return domain.Position{}, fmt.Errorf("sol_amount: %w", err)
	}
	tokenAmount, err := strconv.ParseFloat(vals["token_amount"], 64)
	if err != nil {
		return domain.Position{}, fmt.Errorf("token_amount: %w", err)
	}
	maxPrice, err := strconv.ParseFloat(vals["max_price"], 64)
	if err != nil {
		return domain.Position{}, fmt.Errorf("max_price: %w", err)
	}
	entryMs, err := strconv.ParseInt(vals["entry_time"], 10, 64)
	if err != nil {
		return domain.Position{}, fmt.Errorf("entry_time: %w", err)
	}

	return domain.Position{
		Mint:         vals["mint"],
		Strategy:     domain.Strategy(vals["strategy"]),
		EntryPrice:   entryPrice,
		SolAmount:    solAmount,
		TokenAmount:  tokenAmount,
		MaxPrice:     maxPrice,
		SourceWallet: vals["source_wallet"],
		BuyTxRef:     vals["buy_tx_ref"],
		EntryTime:    time.UnixMilli(entryMs),
		Status:       domain.PositionStatus(vals["status"]),
	}, nil
}

func hashArgs(fields map[string]string) []interface{} {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Compile-time interface checks.
var (
	_ domain.PositionStore    = (*PositionStore)(nil)
	_ domain.JournalReader    = (*PositionStore)(nil)
	_ domain.EntryPriceSource = (*PositionStore)(nil)
)
