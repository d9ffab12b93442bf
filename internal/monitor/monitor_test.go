package monitor

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alanyoungcy/snipebot/internal/domain"
	"github.com/alanyoungcy/snipebot/internal/strategy"
)

type fakeStore struct {
	open            []domain.Position
	maxPriceUpdates map[string]float64
	closed          map[string]domain.CloseRequest
	closeErr        error
}

func newFakeStore(open ...domain.Position) *fakeStore {
	return &fakeStore{
		open:            open,
		maxPriceUpdates: make(map[string]float64),
		closed:          make(map[string]domain.CloseRequest),
	}
}

func (s *fakeStore) Open(context.Context, domain.Position) error { return nil }

func (s *fakeStore) UpdateMaxPrice(_ context.Context, mint string, price float64) error {
	s.maxPriceUpdates[mint] = price
	return nil
}

func (s *fakeStore) Close(_ context.Context, mint string, req domain.CloseRequest) (*domain.ClosedTrade, error) {
	if s.closeErr != nil {
		return nil, s.closeErr
	}
	s.closed[mint] = req
	for _, pos := range s.open {
		if pos.Mint == mint {
			return &domain.ClosedTrade{
				Mint:       mint,
				Strategy:   pos.Strategy,
				EntryPrice: pos.EntryPrice,
				ExitPrice:  req.ExitPrice,
				ExitValue:  req.ExitValue,
				Reason:     req.Reason,
				TxRef:      req.TxRef,
				ClosedAt:   time.Now().UTC(),
			}, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeStore) GetOpen(context.Context) ([]domain.Position, error) { return s.open, nil }

func (s *fakeStore) Get(context.Context, string) (domain.Position, error) {
	return domain.Position{}, domain.ErrNotFound
}

type fakeQuotes struct {
	quote     domain.Quote
	err       error
	forgotten []string
}

func (q *fakeQuotes) GetPrice(_ context.Context, mint string, _ bool) (*domain.Quote, error) {
	if q.err != nil {
		return nil, q.err
	}
	out := q.quote
	out.Mint = mint
	return &out, nil
}

func (q *fakeQuotes) Forget(mint string) { q.forgotten = append(q.forgotten, mint) }

type fakeExec struct {
	sellResult domain.SellResult
	sellErr    error
	sells      int
}

func (e *fakeExec) Buy(context.Context, string, float64) (domain.BuyResult, error) {
	return domain.BuyResult{}, nil
}

func (e *fakeExec) Sell(context.Context, string, float64) (domain.SellResult, error) {
	e.sells++
	return e.sellResult, e.sellErr
}

type fakeForce struct {
	reason string
	set    bool
}

func (f *fakeForce) Set(_ context.Context, _, reason string) error {
	f.reason, f.set = reason, true
	return nil
}

func (f *fakeForce) Consume(context.Context, string) (string, bool, error) {
	reason, was := f.reason, f.set
	f.reason, f.set = "", false
	return reason, was, nil
}

type fakeWallets struct {
	sales map[string]time.Time // "wallet:mint" -> sale time
}

func newFakeWallets() *fakeWallets {
	return &fakeWallets{sales: make(map[string]time.Time)}
}

func (w *fakeWallets) MarkSold(_ context.Context, wallet, mint string, at time.Time) error {
	w.sales[wallet+":"+mint] = at
	return nil
}

func (w *fakeWallets) SoldAt(_ context.Context, wallet, mint string) (time.Time, bool, error) {
	at, ok := w.sales[wallet+":"+mint]
	return at, ok, nil
}

type fakeCooldowns struct {
	ttls map[string]time.Duration
}

func (c *fakeCooldowns) Set(_ context.Context, mint string, ttl time.Duration) error {
	c.ttls[mint] = ttl
	return nil
}

func (c *fakeCooldowns) Active(context.Context, string) (bool, error) { return false, nil }

type fakeSink struct {
	appended []domain.ClosedTrade
}

func (s *fakeSink) Append(_ context.Context, trade domain.ClosedTrade) error {
	s.appended = append(s.appended, trade)
	return nil
}

type monitorHarness struct {
	m         *Monitor
	store     *fakeStore
	quotes    *fakeQuotes
	exec      *fakeExec
	force     *fakeForce
	wallets   *fakeWallets
	cooldowns *fakeCooldowns
	sink      *fakeSink
}

func newHarness(t *testing.T, open ...domain.Position) *monitorHarness {
	t.Helper()
	h := &monitorHarness{
		store:     newFakeStore(open...),
		quotes:    &fakeQuotes{},
		exec:      &fakeExec{sellResult: domain.SellResult{Success: true, SolReceived: 1, TxRef: "sell-tx"}},
		force:     &fakeForce{},
		wallets:   newFakeWallets(),
		cooldowns: &fakeCooldowns{ttls: make(map[string]time.Duration)},
		sink:      &fakeSink{},
	}
	sniper := strategy.NewSniperPolicy(strategy.ExitRules{
		TakeProfitEnabled:   true,
		TakeProfitPercent:   150,
		TrailingStopEnabled: true,
		TrailingStopPercent: 20,
		StopLossEnabled:     true,
		StopLossPercent:     30,
		MaxHoldEnabled:      true,
		MaxHold:             time.Hour,
	})
	copyPolicy := strategy.NewCopyPolicy(strategy.ExitRules{
		StopLossEnabled: true,
		StopLossPercent: 30,
	}, 3*time.Minute, 10*time.Minute)
	momentum := strategy.NewMomentumAnalyzer(strategy.DefaultWindows(5, 8, 10, 15, 25))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.m = New(
		Config{SniperCooldown: 5 * time.Minute, CopyCooldown: 10 * time.Minute},
		h.store, h.quotes, h.exec, h.force, h.wallets, h.cooldowns,
		sniper, copyPolicy, momentum,
		[]domain.JournalSink{h.sink}, nil, logger,
	)
	return h
}

func sniperPos(mint string, entry, maxPrice float64, held time.Duration) domain.Position {
	return domain.Position{
		Mint:        mint,
		Strategy:    domain.StrategySniper,
		EntryPrice:  entry,
		SolAmount:   0.5,
		TokenAmount: 100000,
		MaxPrice:    maxPrice,
		EntryTime:   time.Now().Add(-held),
		Status:      domain.PositionStatusOpen,
	}
}

func TestSweepClosesOnTakeProfit(t *testing.T) {
	pos := sniperPos("mintTP", 1e-5, 1e-5, time.Minute)
	h := newHarness(t, pos)
	h.quotes.quote = domain.Quote{Price: 2.6e-5, Source: domain.QuoteSourceCurve}

	h.m.sweep(context.Background())

	req, closed := h.store.closed["mintTP"]
	if !closed {
		t.Fatal("position was not closed at +160% PnL")
	}
	if req.Reason != domain.ExitReasonTakeProfit {
		t.Errorf("Reason = %q, want %q", req.Reason, domain.ExitReasonTakeProfit)
	}
	if req.ExitPrice != 2.6e-5 || req.ExitValue != 1 || req.TxRef != "sell-tx" {
		t.Errorf("close request = %+v", req)
	}
	if len(h.quotes.forgotten) != 1 || h.quotes.forgotten[0] != "mintTP" {
		t.Errorf("forgotten = %v, want [mintTP]", h.quotes.forgotten)
	}
	if ttl := h.cooldowns.ttls["mintTP"]; ttl != 5*time.Minute {
		t.Errorf("cooldown ttl = %v, want 5m", ttl)
	}
	if len(h.sink.appended) != 1 {
		t.Errorf("journal sink appends = %d, want 1", len(h.sink.appended))
	}
}

func TestSweepRaisesMaxPriceBeforeEvaluating(t *testing.T) {
	// New high this tick: the stored mark must be raised before the policy
	// runs so the trailing stop measures drawdown from the fresh peak.
	pos := sniperPos("mintTrail", 1.0, 1.0, time.Minute)
	h := newHarness(t, pos)
	h.quotes.quote = domain.Quote{Price: 2.0, Source: domain.QuoteSourceCurve}

	h.m.sweep(context.Background())

	if got := h.store.maxPriceUpdates["mintTrail"]; got != 2.0 {
		t.Errorf("max price update = %v, want 2.0", got)
	}
	// +100% is below the 150% take-profit and drawdown from the fresh peak
	// is zero, so nothing fires.
	if _, closed := h.store.closed["mintTrail"]; closed {
		t.Fatal("position closed at its own peak")
	}
}

func TestSweepSkipsTickWithoutValuation(t *testing.T) {
	h := newHarness(t, sniperPos("mintNoQuote", 1e-5, 1e-5, 2*time.Hour))
	h.quotes.err = domain.ErrNoQuote

	h.m.sweep(context.Background())

	// Max-hold expired, but no valuation means no decision this tick.
	if h.exec.sells != 0 {
		t.Errorf("sells = %d, want 0", h.exec.sells)
	}
	if len(h.store.closed) != 0 {
		t.Errorf("closed = %v, want none", h.store.closed)
	}
}

func TestSweepForceCloseOverridesPolicy(t *testing.T) {
	// Position is comfortably profitable and inside every threshold; only the
	// external flag should fire, carrying its free-form reason.
	pos := sniperPos("mintForce", 1.0, 1.1, time.Minute)
	h := newHarness(t, pos)
	h.quotes.quote = domain.Quote{Price: 1.1, Source: domain.QuoteSourceCurve}
	h.force.Set(context.Background(), "mintForce", "rug_suspected")

	h.m.sweep(context.Background())

	req, closed := h.store.closed["mintForce"]
	if !closed {
		t.Fatal("force-flagged position was not closed")
	}
	if req.Reason != domain.ExitReason("rug_suspected") {
		t.Errorf("Reason = %q, want rug_suspected", req.Reason)
	}
	if h.force.set {
		t.Error("force flag not consumed")
	}
}

func TestSweepFailedSellKeepsPositionOpen(t *testing.T) {
	pos := sniperPos("mintStuck", 1e-5, 1e-5, time.Minute)
	h := newHarness(t, pos)
	h.quotes.quote = domain.Quote{Price: 3e-5, Source: domain.QuoteSourceCurve}
	h.exec.sellResult = domain.SellResult{Success: false, Message: "slippage exceeded"}

	h.m.sweep(context.Background())

	if h.exec.sells != 1 {
		t.Errorf("sells = %d, want 1", h.exec.sells)
	}
	if len(h.store.closed) != 0 {
		t.Error("store close committed after a rejected sell")
	}
	if len(h.quotes.forgotten) != 0 || len(h.sink.appended) != 0 {
		t.Error("finalize ran for a position that stayed open")
	}
}

func TestSweepLostCloseRace(t *testing.T) {
	pos := sniperPos("mintRace", 1e-5, 1e-5, time.Minute)
	h := newHarness(t, pos)
	h.quotes.quote = domain.Quote{Price: 3e-5, Source: domain.QuoteSourceCurve}
	h.store.closeErr = domain.ErrNotFound

	h.m.sweep(context.Background())

	// The other closer journals and finalizes; this side must do neither.
	if len(h.sink.appended) != 0 {
		t.Errorf("journal sink appends = %d, want 0", len(h.sink.appended))
	}
	if len(h.cooldowns.ttls) != 0 {
		t.Errorf("cooldowns set = %v, want none", h.cooldowns.ttls)
	}
}

func TestSweepCopyMirrorOverride(t *testing.T) {
	pos := domain.Position{
		Mint:         "mintCopy",
		Strategy:     domain.StrategyCopy,
		EntryPrice:   1.0,
		SolAmount:    0.5,
		TokenAmount:  1000,
		MaxPrice:     1.2,
		SourceWallet: "walletA",
		EntryTime:    time.Now().Add(-90 * time.Second),
		Status:       domain.PositionStatusOpen,
	}
	h := newHarness(t, pos)
	h.quotes.quote = domain.Quote{Price: 1.1, Source: domain.QuoteSourceCurve}
	h.wallets.MarkSold(context.Background(), "walletA", "mintCopy", time.Now().Add(-10*time.Second))

	h.m.sweep(context.Background())

	req, closed := h.store.closed["mintCopy"]
	if !closed {
		t.Fatal("mirror window sale did not close the copy position")
	}
	if req.Reason != domain.ExitReasonWalletEarly {
		t.Errorf("Reason = %q, want %q", req.Reason, domain.ExitReasonWalletEarly)
	}
	if ttl := h.cooldowns.ttls["mintCopy"]; ttl != 10*time.Minute {
		t.Errorf("cooldown ttl = %v, want 10m", ttl)
	}
}

func TestSweepIgnoresOtherWalletSale(t *testing.T) {
	// Two tracked wallets can trade the same mint. A sale by a wallet other
	// than the one this position mirrors is not an exit signal.
	pos := domain.Position{
		Mint:         "mintShared",
		Strategy:     domain.StrategyCopy,
		EntryPrice:   1.0,
		SolAmount:    0.5,
		TokenAmount:  1000,
		MaxPrice:     1.2,
		SourceWallet: "walletA",
		EntryTime:    time.Now().Add(-90 * time.Second),
		Status:       domain.PositionStatusOpen,
	}
	h := newHarness(t, pos)
	h.quotes.quote = domain.Quote{Price: 1.1, Source: domain.QuoteSourceCurve}
	h.wallets.MarkSold(context.Background(), "walletB", "mintShared", time.Now().Add(-10*time.Second))

	h.m.sweep(context.Background())

	if _, closed := h.store.closed["mintShared"]; closed {
		t.Fatal("copy position closed on another wallet's sale")
	}
	if h.exec.sells != 0 {
		t.Errorf("sells = %d, want 0", h.exec.sells)
	}
}
