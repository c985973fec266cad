// Package scanner composes the caches, normalizer and enricher into the
// two externally visible operations: a full cross-market scan and a
// single-item reference lookup.
package scanner

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"skinarb/cache"
	"skinarb/config"
	"skinarb/errs"
	"skinarb/logger"
	"skinarb/metrics"
	"skinarb/models"
	"skinarb/processor"
)

// ListingSource is the authenticated "fetch listings page" capability.
type ListingSource interface {
	GoodsList(ctx context.Context, q models.ListingQuery) ([]models.RawListing, error)
}

// PriceSource is the "fetch full price table" capability.
type PriceSource interface {
	PriceList(ctx context.Context) (*models.PriceTable, error)
}

// ScanRequest carries the caller's query. Limit is clamped to 1..100;
// zero price bounds mean no bound. Bounds are in USD and converted to
// CNY fen for the listings source.
type ScanRequest struct {
	Search      string
	Limit       int
	MinPriceUsd decimal.Decimal
	MaxPriceUsd decimal.Decimal
}

// Scanner orchestrates one scan: listings (through the listing cache),
// normalization, then bounded enrichment against the price-table cache.
type Scanner struct {
	cfg      *config.Config
	listings ListingSource
	prices   PriceSource

	listingCache *cache.ListingCache
	priceCache   *cache.PriceTableCache
	enricher     *processor.Enricher

	// fillMu single-flights the expensive bulk price-table fetch so a
	// thundering-herd miss issues one upstream call, not one per worker.
	fillMu sync.Mutex

	log *logger.Log
}

// New wires a scanner. The caches are injected so callers (and tests)
// control their clocks; they must be constructed once per process.
func New(cfg *config.Config, listings ListingSource, prices PriceSource, listingCache *cache.ListingCache, priceCache *cache.PriceTableCache) *Scanner {
	s := &Scanner{
		cfg:          cfg,
		listings:     listings,
		prices:       prices,
		listingCache: listingCache,
		priceCache:   priceCache,
		log:          logger.GetLogger(),
	}
	s.enricher = processor.NewEnricher(s.referencePrice, cfg.Scanner.Concurrency, cfg.Scanner.LookupTimeout())
	return s
}

// Scan produces enriched rows plus the FX rate used. A listings fetch
// failure is fatal to the whole call; per-row reference failures are
// isolated inside the enricher.
func (s *Scanner) Scan(ctx context.Context, req ScanRequest) (*models.ScanResult, error) {
	start := time.Now()
	fx := s.cfg.Scanner.Fx

	q := models.ListingQuery{
		Search:      strings.TrimSpace(req.Search),
		PageNum:     1,
		PageSize:    clampLimit(req.Limit),
		MinPriceFen: usdToFen(req.MinPriceUsd, fx),
		MaxPriceFen: usdToFen(req.MaxPriceUsd, fx),
	}

	log := s.log.WithComponent("scanner").WithFields(logger.Fields{
		"scan_id": uuid.New().String(),
		"search":  q.Search,
		"limit":   q.PageSize,
	})

	key := q.CacheKey()
	rawItems, hit := s.listingCache.Get(key)
	if hit {
		metrics.RecordCacheHit("listings")
	} else {
		metrics.RecordCacheMiss("listings")
		fetched, err := s.listings.GoodsList(ctx, q)
		if err != nil {
			log.WithError(err).Error("listings fetch failed")
			return nil, err
		}
		s.listingCache.Put(key, fetched)
		rawItems = fetched
	}

	rows := processor.NormalizeAll(rawItems, fx)
	if dropped := len(rawItems) - len(rows); dropped > 0 {
		log.WithFields(logger.Fields{"dropped": dropped}).Debug("dropped rows with no trade name")
	}

	enriched := s.enricher.Enrich(ctx, rows)

	elapsed := time.Since(start)
	metrics.RecordScan(elapsed)
	s.log.LogMetric("scanner", "scan_rows", len(enriched), "gauge", logger.Fields{})
	s.log.LogMetric("scanner", "scan_duration_ms", float64(elapsed.Nanoseconds())/1e6, "timer", logger.Fields{})
	logger.LogPerformanceEntry(log, "scanner", "scan", elapsed, logger.Fields{
		"rows":      len(enriched),
		"cache_hit": hit,
	})

	return &models.ScanResult{FxRate: fx, Rows: enriched}, nil
}

// LookupReference answers an on-demand single-item detail query from the
// shared price-table cache. "Not found" is a zero-count success, never
// an error; only a failed bulk fetch fails the call.
func (s *Scanner) LookupReference(ctx context.Context, tradeName string) (*models.ReferenceQuote, error) {
	if strings.TrimSpace(tradeName) == "" {
		return nil, &errs.ParseError{Field: "tradeName", Reason: "must not be empty"}
	}

	table, err := s.priceTable(ctx)
	if err != nil {
		return nil, err
	}

	best := table.HighestBuyPrice(tradeName)
	count := 0
	if best.IsPositive() {
		count = 1
	}
	return &models.ReferenceQuote{TotalCount: count, BestPriceUsd: best}, nil
}

// referencePrice is the enricher's lookup: it resolves the highest buy
// price for a trade name, filling the price-table cache when stale.
func (s *Scanner) referencePrice(ctx context.Context, tradeName string) (decimal.Decimal, error) {
	table, err := s.priceTable(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return table.HighestBuyPrice(tradeName), nil
}

func (s *Scanner) priceTable(ctx context.Context) (*models.PriceTable, error) {
	if table, ok := s.priceCache.Get(); ok {
		metrics.RecordCacheHit("price_table")
		return table, nil
	}
	metrics.RecordCacheMiss("price_table")

	s.fillMu.Lock()
	defer s.fillMu.Unlock()

	// Another caller may have refilled while we waited for the lock.
	if table, ok := s.priceCache.Get(); ok {
		metrics.RecordCacheHit("price_table")
		return table, nil
	}

	table, err := s.prices.PriceList(ctx)
	if err != nil {
		// The stale entry stays in place; the next read past a
		// successful refresh will see fresh data.
		return nil, err
	}
	s.priceCache.Put(table)
	return table, nil
}

// clampLimit bounds the page size to 1..100, defaulting to 20.
func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

// usdToFen converts a USD bound to CNY fen (integer, 100 fen = 1 CNY)
// using the scan's FX rate. Non-positive bounds mean "unset".
func usdToFen(usd, fx decimal.Decimal) int64 {
	if !usd.IsPositive() || !fx.IsPositive() {
		return 0
	}
	return usd.Div(fx).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
