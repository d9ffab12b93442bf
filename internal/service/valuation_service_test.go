package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/alanyoungcy/snipebot/internal/domain"
	"github.com/alanyoungcy/snipebot/internal/platform/chainrpc"
)

type fakeCurveRegistry struct {
	accounts map[string]string
}

func (r *fakeCurveRegistry) SetCurveAccount(_ context.Context, mint, account string) error {
	r.accounts[mint] = account
	return nil
}

func (r *fakeCurveRegistry) CurveAccount(_ context.Context, mint string) (string, error) {
	account, ok := r.accounts[mint]
	if !ok {
		return "", domain.ErrUnknownCurve
	}
	return account, nil
}

type fakeCurveFetcher struct {
	state chainrpc.CurveState
	err   error
	calls int
}

func (f *fakeCurveFetcher) FetchCurve(context.Context, string) (chainrpc.CurveState, error) {
	f.calls++
	return f.state, f.err
}

type fakeDexPricer struct {
	price float64
	err   error
	calls int
}

func (f *fakeDexPricer) Price(context.Context, string) (float64, error) {
	f.calls++
	return f.price, f.err
}

type fakeQuoteCache struct {
	quotes map[string]domain.Quote
	sets   int
}

func (c *fakeQuoteCache) SetQuote(_ context.Context, q domain.Quote, _ time.Duration) error {
	c.quotes[q.Mint] = q
	c.sets++
	return nil
}

func (c *fakeQuoteCache) GetQuote(_ context.Context, mint string) (domain.Quote, error) {
	q, ok := c.quotes[mint]
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	return q, nil
}

type fakeEntrySource struct {
	price float64
	err   error
}

func (f *fakeEntrySource) LastEntryPrice(context.Context, string) (float64, error) {
	return f.price, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(fetcher *fakeCurveFetcher, dex *fakeDexPricer, entries domain.EntryPriceSource) (*ValuationService, *fakeQuoteCache) {
	registry := &fakeCurveRegistry{accounts: map[string]string{"mint1": "curve1"}}
	cache := &fakeQuoteCache{quotes: make(map[string]domain.Quote)}
	svc := NewValuationService(registry, fetcher, dex, cache, entries, 3*time.Second, 10*time.Second, testLogger())
	return svc, cache
}

func TestAnomalous(t *testing.T) {
	tests := []struct {
		name     string
		price    float64
		baseline float64
		want     bool
	}{
		{"far above band", 150, 1, true},
		{"within band high", 50, 1, false},
		{"within band low", 0.05, 1, false},
		{"far below band", 0.005, 1, true},
		{"no baseline", 5, 0, false},
		{"no price", 0, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Anomalous(tt.price, tt.baseline); got != tt.want {
				t.Errorf("Anomalous(%v, %v) = %v, want %v", tt.price, tt.baseline, got, tt.want)
			}
		})
	}
}

func TestGetPriceFromCurve(t *testing.T) {
	fetcher := &fakeCurveFetcher{state: chainrpc.CurveState{
		VirtualSolReserves:   2_000_000_000,
		VirtualTokenReserves: 4_000_000_000_000,
		RealSolReserves:      1_000_000_000,
		RealTokenReserves:    2_000_000_000_000,
	}}
	svc, cache := newTestService(fetcher, &fakeDexPricer{err: domain.ErrNoLiquidity}, nil)

	q, err := svc.GetPrice(context.Background(), "mint1", false)
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	if math.Abs(q.Price-5e-7) > 1e-15 {
		t.Errorf("Price = %v, want 5e-07", q.Price)
	}
	if q.Source != domain.QuoteSourceCurve {
		t.Errorf("Source = %q, want %q", q.Source, domain.QuoteSourceCurve)
	}
	if q.Graduated || q.Anomalous {
		t.Errorf("Graduated = %v, Anomalous = %v, want both false", q.Graduated, q.Anomalous)
	}
	if cache.sets != 1 {
		t.Errorf("shared cache sets = %d, want 1", cache.sets)
	}
}

func TestGetPriceUsesCacheChain(t *testing.T) {
	fetcher := &fakeCurveFetcher{state: chainrpc.CurveState{
		VirtualSolReserves:   2_000_000_000,
		VirtualTokenReserves: 4_000_000_000_000,
	}}
	svc, _ := newTestService(fetcher, &fakeDexPricer{err: domain.ErrNoLiquidity}, nil)

	if _, err := svc.GetPrice(context.Background(), "mint1", false); err != nil {
		t.Fatalf("first GetPrice: %v", err)
	}
	if _, err := svc.GetPrice(context.Background(), "mint1", false); err != nil {
		t.Fatalf("second GetPrice: %v", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("curve fetches = %d, want 1 (second call should hit cache)", fetcher.calls)
	}

	if _, err := svc.GetPrice(context.Background(), "mint1", true); err != nil {
		t.Fatalf("forceFresh GetPrice: %v", err)
	}
	if fetcher.calls != 2 {
		t.Errorf("curve fetches = %d after forceFresh, want 2", fetcher.calls)
	}
}

func TestGetPriceGraduatedEntryFallback(t *testing.T) {
	fetcher := &fakeCurveFetcher{state: chainrpc.CurveState{
		VirtualSolReserves:   2_000_000_000,
		VirtualTokenReserves: 4_000_000_000_000,
		Complete:             true,
	}}
	dex := &fakeDexPricer{err: domain.ErrNoLiquidity}
	entries := &fakeEntrySource{price: 5e-7}
	svc, _ := newTestService(fetcher, dex, entries)

	q, err := svc.GetPrice(context.Background(), "mint1", false)
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	if q.Source != domain.QuoteSourceFallbackEntry {
		t.Errorf("Source = %q, want %q", q.Source, domain.QuoteSourceFallbackEntry)
	}
	if !q.Graduated {
		t.Error("Graduated = false, want true")
	}
	if q.Price != 5e-7 {
		t.Errorf("Price = %v, want 5e-07", q.Price)
	}

	// Graduation is remembered: the next fresh read must skip the curve.
	dex.err = nil
	dex.price = 6e-7
	q, err = svc.GetPrice(context.Background(), "mint1", true)
	if err != nil {
		t.Fatalf("post-graduation GetPrice: %v", err)
	}
	if q.Source != domain.QuoteSourceDex {
		t.Errorf("Source = %q, want %q", q.Source, domain.QuoteSourceDex)
	}
	if fetcher.calls != 1 {
		t.Errorf("curve fetches = %d, want 1 after graduation", fetcher.calls)
	}
}

func TestGetPriceFlagsAnomaly(t *testing.T) {
	// Virtual reserves imply a price 150x the real reserve-ratio baseline.
	fetcher := &fakeCurveFetcher{state: chainrpc.CurveState{
		VirtualSolReserves:   150_000_000_000,
		VirtualTokenReserves: 1_000_000_000_000,
		RealSolReserves:      1_000_000_000,
		RealTokenReserves:    1_000_000_000_000,
	}}
	svc, _ := newTestService(fetcher, &fakeDexPricer{err: domain.ErrNoLiquidity}, nil)

	q, err := svc.GetPrice(context.Background(), "mint1", false)
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	if !q.Anomalous {
		t.Error("Anomalous = false, want true")
	}
	if q.Price <= 0 {
		t.Errorf("Price = %v, flagged quotes must still carry the price", q.Price)
	}
}

func TestGetPriceUnknownCurve(t *testing.T) {
	svc, _ := newTestService(&fakeCurveFetcher{}, &fakeDexPricer{}, nil)

	_, err := svc.GetPrice(context.Background(), "no-such-mint", false)
	if err == nil {
		t.Fatal("GetPrice succeeded for an unregistered mint")
	}
	if !errors.Is(err, domain.ErrNoQuote) {
		t.Errorf("error = %v, want wrapped %v", err, domain.ErrNoQuote)
	}
	if !errors.Is(err, domain.ErrUnknownCurve) {
		t.Errorf("error = %v, want wrapped %v", err, domain.ErrUnknownCurve)
	}
}

func TestForgetClearsGraduationState(t *testing.T) {
	fetcher := &fakeCurveFetcher{state: chainrpc.CurveState{
		VirtualSolReserves:   2_000_000_000,
		VirtualTokenReserves: 4_000_000_000_000,
		Complete:             true,
	}}
	svc, cache := newTestService(fetcher, &fakeDexPricer{price: 6e-7}, nil)

	if _, err := svc.GetPrice(context.Background(), "mint1", false); err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	svc.Forget("mint1")
	// Shared cache would otherwise serve the stale quote.
	delete(cache.quotes, "mint1")

	if _, err := svc.GetPrice(context.Background(), "mint1", false); err != nil {
		t.Fatalf("GetPrice after Forget: %v", err)
	}
	if fetcher.calls != 2 {
		t.Errorf("curve fetches = %d, want 2 (Forget drops graduation memory)", fetcher.calls)
	}
}
