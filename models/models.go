package models

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// RawListing is a single untyped listing record from the Buff goods API.
// Field names vary across response variants, so it is kept as a raw map
// and accessed through the normalizer's extractor tables.
type RawListing map[string]interface{}

// ListingQuery describes one page request against the Buff goods API.
// MinPriceFen and MaxPriceFen are in CNY fen (100 fen = 1 CNY); zero
// means the bound is not set.
type ListingQuery struct {
	Search      string
	PageNum     int
	PageSize    int
	MinPriceFen int64
	MaxPriceFen int64
}

// CacheKey is the listing cache identity for this query. Unset price
// bounds stay empty so "no bound" and "bound of zero" never collide.
func (q ListingQuery) CacheKey() string {
	min, max := "", ""
	if q.MinPriceFen > 0 {
		min = strconv.FormatInt(q.MinPriceFen, 10)
	}
	if q.MaxPriceFen > 0 {
		max = strconv.FormatInt(q.MaxPriceFen, 10)
	}
	return fmt.Sprintf("%s|%d|%s|%s", q.Search, q.PageSize, min, max)
}

// PriceTableEntry is one row of the market.csgo.com bulk price dump.
// Multiple entries may share a trade name (item variants).
type PriceTableEntry struct {
	TradeName     string
	BuyOrderPrice decimal.Decimal
}

// PriceTable is an indexed snapshot of the full reference price dump.
// The index keeps only the highest buy-order price per trade name and is
// built once when the table is constructed, so lookups are O(1) instead
// of a linear scan over thousands of entries.
type PriceTable struct {
	size   int
	maxBuy map[string]decimal.Decimal
}

// NewPriceTable builds the indexed table from raw entries. Entries with
// an empty trade name are unindexable and skipped.
func NewPriceTable(entries []PriceTableEntry) *PriceTable {
	t := &PriceTable{maxBuy: make(map[string]decimal.Decimal, len(entries))}
	for _, e := range entries {
		if e.TradeName == "" {
			continue
		}
		t.size++
		if best, ok := t.maxBuy[e.TradeName]; !ok || e.BuyOrderPrice.GreaterThan(best) {
			t.maxBuy[e.TradeName] = e.BuyOrderPrice
		}
	}
	return t
}

// HighestBuyPrice returns the best buy-order price posted for the exact
// trade name, or zero when no entry matches.
func (t *PriceTable) HighestBuyPrice(tradeName string) decimal.Decimal {
	if t == nil {
		return decimal.Zero
	}
	if best, ok := t.maxBuy[tradeName]; ok {
		return best
	}
	return decimal.Zero
}

// Size reports the number of indexed entries.
func (t *PriceTable) Size() int {
	if t == nil {
		return 0
	}
	return t.size
}

// CanonicalRow is a normalized Buff listing. TradeName is the join key
// against the reference price table and is never empty; rows whose name
// cannot be resolved are dropped before enrichment.
type CanonicalRow struct {
	ID        int64           `json:"id"`
	TradeName string          `json:"name"`
	ImageURL  string          `json:"image"`
	PriceCny  decimal.Decimal `json:"buffPriceCny"`
	PriceUsd  decimal.Decimal `json:"buffPriceUsd"`
	Quantity  int             `json:"buffQuantity"`
}

// EnrichedRow is a canonical row joined with the reference buy price.
// SpreadPct and ProfitUsd are always defined: a zero source or reference
// price yields zero spread by convention, never NaN and never an error.
type EnrichedRow struct {
	CanonicalRow

	ReferencePriceUsd   decimal.Decimal `json:"wmBuyOrderUsd"`
	ReferenceOrderCount int             `json:"wmOrderCount"`
	SpreadPct           decimal.Decimal `json:"spreadPct"`
	ProfitUsd           decimal.Decimal `json:"profitUsd"`
}

// ScanResult is the composed output of one scan call.
type ScanResult struct {
	FxRate decimal.Decimal `json:"fx"`
	Rows   []EnrichedRow   `json:"items"`
}

// ReferenceQuote answers a single-item reference lookup. The upstream
// only exposes a best price, so TotalCount is 0 or 1.
type ReferenceQuote struct {
	TotalCount   int             `json:"totalCount"`
	BestPriceUsd decimal.Decimal `json:"bestPriceUsd"`
}
