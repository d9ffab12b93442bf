package redisstore

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/snipebot/internal/domain"
)

func testStore(t *testing.T) *PositionStore {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewPositionStore(rdb)
}

func openPosition(mint string, entry float64) domain.Position {
	return domain.Position{
		Mint:        mint,
		Strategy:    domain.StrategySniper,
		EntryPrice:  entry,
		SolAmount:   0.5,
		TokenAmount: 100000,
		BuyTxRef:    "buy-" + mint,
		EntryTime:   time.Now().Add(-time.Minute),
		Status:      domain.PositionStatusOpen,
	}
}

func TestOpenRejectsDuplicateMint(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Open(ctx, openPosition("mintA", 1.0)); err != nil {
		t.Fatalf("first Open: %v", err)
	}

	dup := openPosition("mintA", 9.0)
	if err := s.Open(ctx, dup); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("second Open err = %v, want ErrAlreadyExists", err)
	}

	// The first record must survive the rejected insert untouched.
	got, err := s.Get(ctx, "mintA")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.EntryPrice != 1.0 {
		t.Errorf("EntryPrice = %v, want 1.0 from the first Open", got.EntryPrice)
	}

	open, err := s.GetOpen(ctx)
	if err != nil {
		t.Fatalf("GetOpen: %v", err)
	}
	if len(open) != 1 {
		t.Errorf("open positions = %d, want 1", len(open))
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Open(ctx, openPosition("mintB", 1.0)); err != nil {
		t.Fatalf("Open: %v", err)
	}

	req := domain.CloseRequest{
		ExitPrice: 2.0,
		ExitValue: 1.0,
		Reason:    domain.ExitReasonTakeProfit,
		TxRef:     "sell-tx",
	}
	trade, err := s.Close(ctx, "mintB", req)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if trade.PnL != 0.5 {
		t.Errorf("PnL = %v, want 0.5", trade.PnL)
	}

	// Second close of the same mint is the lost side of the race.
	if _, err := s.Close(ctx, "mintB", req); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second Close err = %v, want ErrNotFound", err)
	}

	open, err := s.GetOpen(ctx)
	if err != nil {
		t.Fatalf("GetOpen: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("open positions after close = %d, want 0", len(open))
	}

	// Exactly one journal entry, despite the double close.
	trades, err := s.ListDay(ctx, domain.JournalDay(trade.ClosedAt))
	if err != nil {
		t.Fatalf("ListDay: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("journal entries = %d, want 1", len(trades))
	}
	if trades[0].ID != trade.ID || trades[0].Reason != domain.ExitReasonTakeProfit {
		t.Errorf("journal entry = %+v", trades[0])
	}
}

func TestUpdateMaxPriceMonotonic(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Open(ctx, openPosition("mintC", 1.0)); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := s.UpdateMaxPrice(ctx, "mintC", 2.0); err != nil {
		t.Fatalf("UpdateMaxPrice: %v", err)
	}
	if got, _ := s.Get(ctx, "mintC"); got.MaxPrice != 2.0 {
		t.Fatalf("MaxPrice = %v, want 2.0", got.MaxPrice)
	}

	// A lower print never moves the mark back down.
	if err := s.UpdateMaxPrice(ctx, "mintC", 1.5); err != nil {
		t.Fatalf("UpdateMaxPrice: %v", err)
	}
	if got, _ := s.Get(ctx, "mintC"); got.MaxPrice != 2.0 {
		t.Errorf("MaxPrice after lower print = %v, want 2.0", got.MaxPrice)
	}

	// Closed positions keep their final mark.
	if _, err := s.Close(ctx, "mintC", domain.CloseRequest{ExitPrice: 1.8, Reason: domain.ExitReasonStopLoss}); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.UpdateMaxPrice(ctx, "mintC", 5.0); err != nil {
		t.Fatalf("UpdateMaxPrice after close: %v", err)
	}
	if got, _ := s.Get(ctx, "mintC"); got.MaxPrice != 2.0 {
		t.Errorf("MaxPrice after close = %v, want 2.0", got.MaxPrice)
	}

	// Unknown mints are a silent no-op.
	if err := s.UpdateMaxPrice(ctx, "mintUnknown", 5.0); err != nil {
		t.Errorf("UpdateMaxPrice unknown mint: %v", err)
	}
}

func TestParsePositionRoundTrip(t *testing.T) {
	entry := time.Date(2025, 6, 1, 14, 30, 15, 0, time.UTC)
	want := domain.Position{
		Mint:         "mintA",
		Strategy:     domain.StrategyCopy,
		EntryPrice:   0.000001234,
		SolAmount:    0.5,
		TokenAmount:  405186.234,
		MaxPrice:     0.000002468,
		SourceWallet: "walletA",
		BuyTxRef:     "tx123",
		EntryTime:    entry,
		Status:       domain.PositionStatusOpen,
	}

	// The same field layout Open writes into the per-mint hash.
	vals := map[string]string{
		"mint":          want.Mint,
		"strategy":      string(want.Strategy),
		"entry_price":   formatFloat(want.EntryPrice),
		"sol_amount":    formatFloat(want.SolAmount),
		"token_amount":  formatFloat(want.TokenAmount),
		"max_price":     formatFloat(want.MaxPrice),
		"source_wallet": want.SourceWallet,
		"buy_tx_ref":    want.BuyTxRef,
		"entry_time":    strconv.FormatInt(want.EntryTime.UnixMilli(), 10),
		"status":        string(want.Status),
	}

	got, err := parsePosition(vals)
	if err != nil {
		t.Fatalf("parsePosition: %v", err)
	}
	if !got.EntryTime.Equal(want.EntryTime) {
		t.Errorf("EntryTime = %v, want %v", got.EntryTime, want.EntryTime)
	}
	got.EntryTime = want.EntryTime
	if got != want {
		t.Errorf("parsePosition = %+v, want %+v", got, want)
	}
}

func TestParsePositionRejectsCorruptFields(t *testing.T) {
	vals := map[string]string{
		"mint":         "mintA",
		"strategy":     "sniper",
		"entry_price":  "not-a-float",
		"sol_amount":   "1",
		"token_amount": "1",
		"max_price":    "1",
		"entry_time":   "0",
		"status":       "open",
	}
	if _, err := parsePosition(vals); err == nil {
		t.Fatal("parsePosition accepted a corrupt entry_price")
	}
}

func TestFormatFloatPrecision(t *testing.T) {
	// Sub-lamport token prices must round-trip without loss; positions live
	// at the 1e-9 scale.
	for _, f := range []float64{0.000001234, 1e-12, 405186.234, 0} {
		got, err := strconv.ParseFloat(formatFloat(f), 64)
		if err != nil {
			t.Fatalf("ParseFloat(%q): %v", formatFloat(f), err)
		}
		if got != f {
			t.Errorf("round-trip %v -> %q -> %v", f, formatFloat(f), got)
		}
	}
}

func TestKeyLayout(t *testing.T) {
	if got := positionKey("mintA"); got != "position:mintA" {
		t.Errorf("positionKey = %q", got)
	}
	if got := journalKey("2025-06-01"); got != "journal:2025-06-01" {
		t.Errorf("journalKey = %q", got)
	}
}
