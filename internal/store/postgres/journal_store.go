package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/snipebot/internal/domain"
)

// JournalStore mirrors closed trades into PostgreSQL for analytics queries.
// It implements domain.JournalSink and domain.JournalReader.
type JournalStore struct {
	pool *pgxpool.Pool
}

// NewJournalStore creates a JournalStore backed by the given connection pool.
func NewJournalStore(pool *pgxpool.Pool) *JournalStore {
	return &JournalStore{pool: pool}
}

const tradeSelectCols = `id, mint, strategy, source_wallet,
	entry_price, exit_price, sol_amount, token_amount,
	exit_value, pnl, pnl_percent, close_reason, tx_ref,
	entry_time, closed_at`

// Append inserts a closed trade. Re-inserting the same trade ID is a no-op,
// so a retried mirror write after a transient failure stays idempotent.
func (s *JournalStore) Append(ctx context.Context, t domain.ClosedTrade) error {
	const query = `
		INSERT INTO closed_trades (
			id, mint, strategy, source_wallet,
			entry_price, exit_price, sol_amount, token_amount,
			exit_value, pnl, pnl_percent, close_reason, tx_ref,
			entry_time, closed_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12, $13,
			$14, $15
		) ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		t.ID, t.Mint, string(t.Strategy), t.SourceWallet,
		t.EntryPrice, t.ExitPrice, t.SolAmount, t.TokenAmount,
		t.ExitValue, t.PnL, t.PnLPercent, string(t.Reason), t.TxRef,
		t.EntryTime, t.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append trade %s: %w", t.ID, err)
	}
	return nil
}

// ListDay returns trades closed on the given UTC calendar day ("2006-01-02").
func (s *JournalStore) ListDay(ctx context.Context, day string) ([]domain.ClosedTrade, error) {
	start, err := time.ParseInLocation("2006-01-02", day, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse day %q: %w", day, err)
	}
	end := start.AddDate(0, 0, 1)

	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM closed_trades
		 WHERE closed_at >= $1 AND closed_at < $2
		 ORDER BY closed_at ASC`, start, end)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades %s: %w", day, err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades %s: %w", day, err)
	}
	return trades, nil
}

func scanTradeRows(rows pgx.Rows) ([]domain.ClosedTrade, error) {
	var trades []domain.ClosedTrade
	for rows.Next() {
		var t domain.ClosedTrade
		var strategy, reason string

		if err := rows.Scan(
			&t.ID, &t.Mint, &strategy, &t.SourceWallet,
			&t.EntryPrice, &t.ExitPrice, &t.SolAmount, &t.TokenAmount,
			&t.ExitValue, &t.PnL, &t.PnLPercent, &reason, &t.TxRef,
			&t.EntryTime, &t.ClosedAt,
		); err != nil {
			return nil, err
		}
		t.Strategy = domain.Strategy(strategy)
		t.Reason = domain.ExitReason(reason)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Compile-time interface checks.
var (
	_ domain.JournalSink   = (*JournalStore)(nil)
	_ domain.JournalReader = (*JournalStore)(nil)
)
