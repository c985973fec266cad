package models

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMain(m *testing.M) {
	// Mirrors the process setup in main: the frontend contract wants
	// bare JSON numbers for money fields.
	decimal.MarshalJSONWithoutQuotes = true
	os.Exit(m.Run())
}

func TestPriceTableHighestBuyPrice(t *testing.T) {
	table := NewPriceTable([]PriceTableEntry{
		{TradeName: "A", BuyOrderPrice: decimal.NewFromInt(10)},
		{TradeName: "A", BuyOrderPrice: decimal.NewFromInt(25)},
		{TradeName: "B", BuyOrderPrice: decimal.NewFromInt(5)},
	})

	if got := table.HighestBuyPrice("A"); !got.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("HighestBuyPrice(A) = %s, want 25", got)
	}
	if got := table.HighestBuyPrice("B"); !got.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("HighestBuyPrice(B) = %s, want 5", got)
	}
	if got := table.HighestBuyPrice("C"); !got.IsZero() {
		t.Fatalf("HighestBuyPrice(C) = %s, want 0", got)
	}
	if table.Size() != 3 {
		t.Fatalf("Size = %d, want 3", table.Size())
	}
}

func TestPriceTableSkipsUnnamedEntries(t *testing.T) {
	table := NewPriceTable([]PriceTableEntry{
		{TradeName: "", BuyOrderPrice: decimal.NewFromInt(99)},
		{TradeName: "A", BuyOrderPrice: decimal.NewFromInt(1)},
	})
	if table.Size() != 1 {
		t.Fatalf("Size = %d, want 1", table.Size())
	}
}

func TestListingQueryCacheKey(t *testing.T) {
	q := ListingQuery{Search: "ak-47", PageSize: 20, MinPriceFen: 700, MaxPriceFen: 3500}
	if got := q.CacheKey(); got != "ak-47|20|700|3500" {
		t.Fatalf("CacheKey = %q", got)
	}

	// Unset bounds stay empty, matching the "no bound" identity.
	q = ListingQuery{Search: "", PageSize: 50}
	if got := q.CacheKey(); got != "|50||" {
		t.Fatalf("CacheKey = %q", got)
	}
}

func TestEnrichedRowJSONShape(t *testing.T) {
	row := EnrichedRow{
		CanonicalRow: CanonicalRow{
			ID:        42,
			TradeName: "AWP | Asiimov (Field-Tested)",
			PriceCny:  decimal.NewFromFloat(191.5),
			PriceUsd:  decimal.NewFromFloat(26.81),
			Quantity:  7,
		},
		ReferencePriceUsd:   decimal.NewFromFloat(30.5),
		ReferenceOrderCount: 1,
		SpreadPct:           decimal.NewFromFloat(13.76),
		ProfitUsd:           decimal.NewFromFloat(3.69),
	}

	data, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(data)

	// Frontend contract: legacy field names with bare JSON numbers.
	for _, want := range []string{
		`"name":"AWP | Asiimov (Field-Tested)"`,
		`"buffPriceUsd":26.81`,
		`"wmBuyOrderUsd":30.5`,
		`"wmOrderCount":1`,
		`"spreadPct":13.76`,
		`"profitUsd":3.69`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("envelope missing %s in %s", want, body)
		}
	}
}
