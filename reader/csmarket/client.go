// Package csmarket implements the reference price source: the
// market.csgo.com bulk price dump. The upstream has no per-item query
// endpoint, so the only operation is fetching the entire table.
package csmarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"skinarb/config"
	"skinarb/errs"
	"skinarb/logger"
	"skinarb/metrics"
	"skinarb/models"
)

const sourceName = "csmarket"

// Client fetches the full buy-order price table from market.csgo.com.
type Client struct {
	cfg        config.CsmarketSourceConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logger.Log
}

// NewClient creates a market.csgo.com client from the source configuration.
func NewClient(cfg config.CsmarketSourceConfig) *Client {
	rl := cfg.RateLimit
	rps := rl.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := rl.BurstSize
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		log:        logger.GetLogger(),
	}
}

// priceEnvelope is the bulk dump wrapper. Items are keyed by
// "classid_instanceid"; the key itself carries no information we use.
type priceEnvelope struct {
	Success bool                      `json:"success"`
	Error   string                    `json:"error"`
	Items   map[string]priceWireEntry `json:"items"`
}

// priceWireEntry tolerates buy_order arriving as a quoted string, a bare
// number or garbage; bad values degrade to zero instead of failing the
// whole table.
type priceWireEntry struct {
	MarketHashName string          `json:"market_hash_name"`
	BuyOrder       json.RawMessage `json:"buy_order"`
}

// PriceList fetches and indexes the entire reference price table. An
// invalid API key surfaces as an AuthError, everything else as an
// UpstreamError.
func (c *Client) PriceList(ctx context.Context) (*models.PriceTable, error) {
	if c.cfg.APIKey == "" {
		return nil, &errs.AuthError{Source: sourceName, Reason: "CSGOMARKET_API_KEY is not set"}
	}

	log := c.log.WithComponent("csmarket_client")

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &errs.UpstreamError{Source: sourceName, Reason: "rate limiter wait cancelled", Err: err}
	}

	reqURL := fmt.Sprintf("%s/prices/%s.json?key=%s", c.cfg.BaseURL, c.cfg.Currency, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &errs.UpstreamError{Source: sourceName, Reason: "building request", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamError(sourceName)
		log.WithError(err).Warn("price list request failed")
		return nil, &errs.UpstreamError{Source: sourceName, Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &errs.AuthError{Source: sourceName, Reason: fmt.Sprintf("API key rejected (HTTP %d)", resp.StatusCode)}
	default:
		metrics.RecordUpstreamError(sourceName)
		return nil, &errs.UpstreamError{Source: sourceName, Status: resp.StatusCode, Reason: "price list fetch failed"}
	}

	var env priceEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		metrics.RecordUpstreamError(sourceName)
		return nil, &errs.UpstreamError{Source: sourceName, Reason: "decoding response", Err: err}
	}

	if !env.Success {
		if isKeyError(env.Error) {
			return nil, &errs.AuthError{Source: sourceName, Reason: env.Error}
		}
		metrics.RecordUpstreamError(sourceName)
		reason := env.Error
		if reason == "" {
			reason = "unknown error"
		}
		return nil, &errs.UpstreamError{Source: sourceName, Reason: reason}
	}

	entries := make([]models.PriceTableEntry, 0, len(env.Items))
	for _, item := range env.Items {
		if item.MarketHashName == "" {
			continue
		}
		entries = append(entries, models.PriceTableEntry{
			TradeName:     item.MarketHashName,
			BuyOrderPrice: parseBuyOrder(item.BuyOrder),
		})
	}

	table := models.NewPriceTable(entries)
	log.WithFields(logger.Fields{"entries": table.Size()}).Info("price list loaded")
	return table, nil
}

// parseBuyOrder accepts "12.34", 12.34 or absent/garbage, degrading to
// zero the way the dump has historically behaved.
func parseBuyOrder(raw json.RawMessage) decimal.Decimal {
	if len(raw) == 0 {
		return decimal.Zero
	}
	s := strings.Trim(string(raw), `"`)
	if s == "" || s == "null" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// isKeyError recognizes the upstream's "Bad KEY" style auth failures.
func isKeyError(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "key")
}
