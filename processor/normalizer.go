package processor

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"skinarb/models"
)

// Raw listing records arrive in several shapes depending on which Buff
// response variant served them. Each semantic field therefore has an
// ordered table of candidate paths; the first present value wins. Paths
// use "." for nesting.
var (
	tradeNamePaths = []string{"market_hash_name", "name", "short_name"}
	priceCnyPaths  = []string{"sell_min_price", "sell_min_price_cny"}
	quantityPaths  = []string{"sell_num", "sell_count", "goods_info.sell_num"}
	imagePaths     = []string{"goods_info.icon_url", "icon_url", "img"}
)

// Normalize maps one raw listing into a canonical row. It returns false
// when no trade name can be resolved: such a row has no join key and is
// dropped. Everything else degrades to zero values rather than failing.
// index is the zero-based position in the page, used as the id fallback.
func Normalize(raw models.RawListing, index int, fx decimal.Decimal) (models.CanonicalRow, bool) {
	tradeName := firstString(raw, tradeNamePaths)
	if tradeName == "" {
		return models.CanonicalRow{}, false
	}

	priceCny := firstDecimal(raw, priceCnyPaths)
	priceUsd := priceCny.Mul(fx).Round(2)

	id := asInt64(lookupPath(raw, "id"))
	if id <= 0 {
		id = int64(index) + 1
	}

	return models.CanonicalRow{
		ID:        id,
		TradeName: tradeName,
		ImageURL:  normalizeImageURL(firstString(raw, imagePaths)),
		PriceCny:  priceCny,
		PriceUsd:  priceUsd,
		Quantity:  int(asInt64(firstPresent(raw, quantityPaths))),
	}, true
}

// NormalizeAll maps a raw page, dropping unresolvable rows and keeping
// the surviving order.
func NormalizeAll(rawItems []models.RawListing, fx decimal.Decimal) []models.CanonicalRow {
	rows := make([]models.CanonicalRow, 0, len(rawItems))
	for i, raw := range rawItems {
		if row, ok := Normalize(raw, i, fx); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

// normalizeImageURL rewrites protocol-relative URLs to explicit https.
func normalizeImageURL(u string) string {
	if u == "" {
		return ""
	}
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}

// lookupPath resolves a possibly nested path against the raw record.
func lookupPath(raw models.RawListing, path string) interface{} {
	var cur interface{} = map[string]interface{}(raw)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur, ok = m[part]
		if !ok {
			return nil
		}
	}
	return cur
}

// firstPresent returns the first non-nil value among the candidate paths.
func firstPresent(raw models.RawListing, paths []string) interface{} {
	for _, p := range paths {
		if v := lookupPath(raw, p); v != nil {
			return v
		}
	}
	return nil
}

// firstString returns the first non-empty string among the candidates.
func firstString(raw models.RawListing, paths []string) string {
	for _, p := range paths {
		if s, ok := lookupPath(raw, p).(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// firstDecimal returns the first present candidate as a decimal; a
// present but unparsable value counts as zero, matching the upstream's
// loose typing.
func firstDecimal(raw models.RawListing, paths []string) decimal.Decimal {
	return asDecimal(firstPresent(raw, paths))
}

func asDecimal(v interface{}) decimal.Decimal {
	switch x := v.(type) {
	case float64:
		return decimal.NewFromFloat(x)
	case string:
		if d, err := decimal.NewFromString(x); err == nil {
			return d
		}
	case json.Number:
		if d, err := decimal.NewFromString(x.String()); err == nil {
			return d
		}
	case int:
		return decimal.NewFromInt(int64(x))
	case int64:
		return decimal.NewFromInt(x)
	}
	return decimal.Zero
}

func asInt64(v interface{}) int64 {
	return asDecimal(v).IntPart()
}
