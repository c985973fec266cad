package processor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"skinarb/logger"
	"skinarb/metrics"
	"skinarb/models"
)

// PriceLookup resolves the reference buy price for a trade name. It may
// block on a price-table refresh; failures apply to the single row being
// enriched, never the batch.
type PriceLookup func(ctx context.Context, tradeName string) (decimal.Decimal, error)

// Enricher joins canonical rows with reference buy prices under a fixed
// concurrency ceiling. Workers claim row indices from a shared cursor
// and write into the slot they claimed, so output order always matches
// input order regardless of completion order.
type Enricher struct {
	lookup        PriceLookup
	concurrency   int
	lookupTimeout time.Duration
	log           *logger.Log
}

// NewEnricher creates an enricher. concurrency values below 1 are
// raised to 1; a zero lookupTimeout disables the per-row deadline.
func NewEnricher(lookup PriceLookup, concurrency int, lookupTimeout time.Duration) *Enricher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Enricher{
		lookup:        lookup,
		concurrency:   concurrency,
		lookupTimeout: lookupTimeout,
		log:           logger.GetLogger(),
	}
}

// Enrich computes the reference price, spread and profit for every row.
// The result slice is index-aligned with rows. A failed or timed-out
// lookup degrades that row to a zero reference; it never fails the call.
func (e *Enricher) Enrich(ctx context.Context, rows []models.CanonicalRow) []models.EnrichedRow {
	results := make([]models.EnrichedRow, len(rows))
	if len(rows) == 0 {
		return results
	}

	workers := e.concurrency
	if workers > len(rows) {
		workers = len(rows)
	}

	// next holds the index of the next unclaimed row. Each Add claims
	// exactly one row for the calling worker.
	var next int64 = -1
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				idx := int(atomic.AddInt64(&next, 1))
				if idx >= len(rows) {
					return
				}
				results[idx] = e.enrichRow(ctx, rows[idx])
			}
		}()
	}
	wg.Wait()

	return results
}

func (e *Enricher) enrichRow(ctx context.Context, row models.CanonicalRow) models.EnrichedRow {
	lookupCtx := ctx
	if e.lookupTimeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, e.lookupTimeout)
		defer cancel()
	}

	refPrice, err := e.lookup(lookupCtx, row.TradeName)
	if err != nil {
		metrics.RecordDegradedRow()
		e.log.LogMetric("enricher", "degraded_rows", 1, "counter", logger.Fields{"trade_name": row.TradeName})
		e.log.WithComponent("enricher").WithError(err).WithFields(logger.Fields{
			"trade_name": row.TradeName,
		}).Warn("reference lookup failed, degrading row")
		return degradedRow(row)
	}

	orderCount := 0
	if refPrice.IsPositive() {
		orderCount = 1
	}

	return models.EnrichedRow{
		CanonicalRow:        row,
		ReferencePriceUsd:   refPrice,
		ReferenceOrderCount: orderCount,
		SpreadPct:           SpreadPct(row.PriceUsd, refPrice),
		ProfitUsd:           refPrice.Sub(row.PriceUsd).Round(2),
	}
}

func degradedRow(row models.CanonicalRow) models.EnrichedRow {
	return models.EnrichedRow{
		CanonicalRow:        row,
		ReferencePriceUsd:   decimal.Zero,
		ReferenceOrderCount: 0,
		SpreadPct:           decimal.Zero,
		ProfitUsd:           decimal.Zero,
	}
}

// SpreadPct is the percentage difference between the reference buy price
// and the source sell price, relative to the source price. A zero source
// price yields zero by convention, never a division error.
func SpreadPct(sourceUsd, referenceUsd decimal.Decimal) decimal.Decimal {
	if !sourceUsd.IsPositive() {
		return decimal.Zero
	}
	one := decimal.NewFromInt(1)
	hundred := decimal.NewFromInt(100)
	return referenceUsd.Div(sourceUsd).Sub(one).Mul(hundred).Round(2)
}
