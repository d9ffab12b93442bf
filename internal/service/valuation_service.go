// Package service holds the domain services that sit between the platform
// clients and the trading loops.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/snipebot/internal/domain"
	"github.com/alanyoungcy/snipebot/internal/platform/chainrpc"
)

// CurveFetcher reads bonding-curve account state from the chain. Implemented
// by chainrpc.Client, which owns the retry/fallback budget.
type CurveFetcher interface {
	FetchCurve(ctx context.Context, account string) (chainrpc.CurveState, error)
}

// DexPricer returns the open-market price for a graduated mint. Implemented
// by dexapi.Client. Returns domain.ErrNoLiquidity when the aggregator has no
// pool data for the mint yet.
type DexPricer interface {
	Price(ctx context.Context, mint string) (float64, error)
}

// anomalyFactor bounds plausible quotes to within 100x of the raw
// reserve-ratio baseline in either direction.
const anomalyFactor = 100

// Anomalous reports whether a computed price deviates more than 100x above
// or below the raw reserve-ratio baseline. A non-positive baseline cannot be
// judged and is never flagged.
func Anomalous(price, baseline float64) bool {
	if baseline <= 0 || price <= 0 {
		return false
	}
	return price > baseline*anomalyFactor || price < baseline/anomalyFactor
}

// localQuote is an in-process cache entry.
type localQuote struct {
	quote    domain.Quote
	cachedAt time.Time
}

// ValuationService resolves the current unit price of a mint through a cache
// chain: in-process cache, shared Redis cache, then the authoritative
// bonding-curve read with DEX fallback after graduation.
//
// Anomalous quotes are flagged on the Quote and logged, never discarded: the
// exit engine needs some price more than it needs a perfect one, and
// starving it during extreme volatility is the worse failure mode.
type ValuationService struct {
	curves  domain.CurveRegistry
	rpc     CurveFetcher
	dex     DexPricer
	shared  domain.QuoteCache
	entries domain.EntryPriceSource // may be nil

	localTTL  time.Duration
	sharedTTL time.Duration

	mu        sync.Mutex
	local     map[string]localQuote
	graduated map[string]bool // mints known to have left the curve

	logger *slog.Logger
}

// NewValuationService creates a ValuationService. entries may be nil, in
// which case the graduated-token entry-price fallback is unavailable and the
// curve-derived price is used instead.
func NewValuationService(
	curves domain.CurveRegistry,
	rpc CurveFetcher,
	dex DexPricer,
	shared domain.QuoteCache,
	entries domain.EntryPriceSource,
	localTTL, sharedTTL time.Duration,
	logger *slog.Logger,
) *ValuationService {
	if localTTL <= 0 {
		localTTL = 3 * time.Second
	}
	if sharedTTL <= 0 {
		sharedTTL = 10 * time.Second
	}
	return &ValuationService{
		curves:    curves,
		rpc:       rpc,
		dex:       dex,
		shared:    shared,
		entries:   entries,
		localTTL:  localTTL,
		sharedTTL: sharedTTL,
		local:     make(map[string]localQuote),
		graduated: make(map[string]bool),
		logger:    logger.With(slog.String("component", "valuation")),
	}
}

// GetPrice returns the current quote for a mint, or an error wrapping
// domain.ErrNoQuote when no valuation is available anywhere. Callers must
// treat that as "no valuation", never as a zero price. forceFresh bypasses
// both cache tiers.
func (s *ValuationService) GetPrice(ctx context.Context, mint string, forceFresh bool) (*domain.Quote, error) {
	if !forceFresh {
		if q, ok := s.fromLocal(mint); ok {
			return &q, nil
		}
		if s.shared != nil {
			q, err := s.shared.GetQuote(ctx, mint)
			if err == nil {
				s.storeLocal(q)
				return &q, nil
			}
			if !errors.Is(err, domain.ErrNotFound) {
				s.logger.Warn("shared quote cache read failed",
					slog.String("mint", mint),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	q, err := s.fetch(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("valuation: %s: %w: %w", mint, domain.ErrNoQuote, err)
	}

	s.storeLocal(*q)
	if s.shared != nil {
		if err := s.shared.SetQuote(ctx, *q, s.sharedTTL); err != nil {
			s.logger.Warn("shared quote cache write failed",
				slog.String("mint", mint),
				slog.String("error", err.Error()),
			)
		}
	}
	return q, nil
}

// CalculateValue returns the SOL value of a token holding at the current
// quote. A missing quote propagates as an error.
func (s *ValuationService) CalculateValue(ctx context.Context, mint string, tokenAmount float64) (*domain.Valuation, error) {
	q, err := s.GetPrice(ctx, mint, false)
	if err != nil {
		return nil, err
	}
	return &domain.Valuation{
		Mint:     mint,
		SolValue: tokenAmount * q.Price,
		Price:    q.Price,
		Source:   q.Source,
	}, nil
}

// fetch performs the authoritative read. Curve-priced mints read the
// bonding-curve account; graduated mints prefer the DEX aggregator, then the
// last-known entry price.
func (s *ValuationService) fetch(ctx context.Context, mint string) (*domain.Quote, error) {
	if s.isGraduated(mint) {
		return s.fetchGraduated(ctx, mint)
	}

	account, err := s.curves.CurveAccount(ctx, mint)
	if err != nil {
		return nil, err
	}

	state, err := s.rpc.FetchCurve(ctx, account)
	if err != nil {
		return nil, err
	}

	price, err := state.Price()
	if err != nil {
		return nil, err
	}

	// Raw reserve-ratio baseline for the anomaly guard, from the real
	// (not virtual) reserves.
	baseline := 0.0
	if state.RealTokenReserves > 0 {
		baseline = (float64(state.RealSolReserves) / 1e9) / (float64(state.RealTokenReserves) / 1e6)
	}

	if state.Complete {
		s.markGraduated(mint)
		q, err := s.fetchGraduated(ctx, mint)
		if err == nil {
			if Anomalous(q.Price, baseline) {
				q.Anomalous = true
				s.logAnomaly(mint, q.Price, baseline, q.Source)
			}
			return q, nil
		}
		s.logger.Warn("graduated fetch failed, using final curve price",
			slog.String("mint", mint),
			slog.String("error", err.Error()),
		)
		return s.curveQuote(mint, price, baseline, true), nil
	}

	return s.curveQuote(mint, price, baseline, false), nil
}

func (s *ValuationService) curveQuote(mint string, price, baseline float64, graduated bool) *domain.Quote {
	q := &domain.Quote{
		Mint:      mint,
		Price:     price,
		Source:    domain.QuoteSourceCurve,
		Graduated: graduated,
		FetchedAt: time.Now().UTC(),
	}
	if Anomalous(price, baseline) {
		q.Anomalous = true
		s.logAnomaly(mint, price, baseline, q.Source)
	}
	return q
}

// fetchGraduated resolves a post-graduation price: DEX aggregator first,
// last-known entry price when the aggregator has no liquidity data yet.
func (s *ValuationService) fetchGraduated(ctx context.Context, mint string) (*domain.Quote, error) {
	price, err := s.dex.Price(ctx, mint)
	if err == nil {
		return &domain.Quote{
			Mint:      mint,
			Price:     price,
			Source:    domain.QuoteSourceDex,
			Graduated: true,
			FetchedAt: time.Now().UTC(),
		}, nil
	}

	if errors.Is(err, domain.ErrNoLiquidity) && s.entries != nil {
		entry, entryErr := s.entries.LastEntryPrice(ctx, mint)
		if entryErr == nil && entry > 0 {
			s.logger.Info("no dex liquidity yet, quoting entry price",
				slog.String("mint", mint),
			)
			return &domain.Quote{
				Mint:      mint,
				Price:     entry,
				Source:    domain.QuoteSourceFallbackEntry,
				Graduated: true,
				FetchedAt: time.Now().UTC(),
			}, nil
		}
	}
	return nil, err
}

func (s *ValuationService) logAnomaly(mint string, price, baseline float64, source domain.QuoteSource) {
	s.logger.Warn("anomalous quote flagged",
		slog.String("mint", mint),
		slog.Float64("price", price),
		slog.Float64("baseline", baseline),
		slog.String("source", string(source)),
	)
}

func (s *ValuationService) fromLocal(mint string) (domain.Quote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.local[mint]
	if !ok || time.Since(entry.cachedAt) > s.localTTL {
		return domain.Quote{}, false
	}
	return entry.quote, true
}

func (s *ValuationService) storeLocal(q domain.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.local[q.Mint] = localQuote{quote: q, cachedAt: time.Now()}
	if q.Graduated {
		s.graduated[q.Mint] = true
	}
}

func (s *ValuationService) isGraduated(mint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graduated[mint]
}

func (s *ValuationService) markGraduated(mint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graduated[mint] = true
}

// Forget drops a mint's in-process cache state. Called when a position
// closes so a later re-entry starts from a clean slate.
func (s *ValuationService) Forget(mint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.local, mint)
	delete(s.graduated, mint)
}
