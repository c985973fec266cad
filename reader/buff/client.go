// Package buff implements the listings source: the Buff163 goods API.
// It is a thin fetch-and-parse client; caching and enrichment live with
// the scanner.
package buff

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/time/rate"

	"skinarb/config"
	"skinarb/errs"
	"skinarb/logger"
	"skinarb/metrics"
	"skinarb/models"
)

const sourceName = "buff"

// Client fetches sell listing pages from Buff163.
type Client struct {
	cfg        config.BuffSourceConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logger.Log
}

// NewClient creates a Buff client from the source configuration.
func NewClient(cfg config.BuffSourceConfig) *Client {
	rl := cfg.RateLimit
	rps := rl.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := rl.BurstSize
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout(),
			Transport: userAgentTransport{agent: browserUA, base: http.DefaultTransport},
		},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     logger.GetLogger(),
	}
}

// goodsEnvelope is the Buff response wrapper. A non-"OK" code signals a
// logical failure even on HTTP 200.
type goodsEnvelope struct {
	Code  string `json:"code"`
	Error string `json:"error"`
	Data  struct {
		Items []models.RawListing `json:"items"`
	} `json:"data"`
}

// GoodsList fetches one page of sell listings. The cookie credential is
// mandatory; a missing or expired cookie surfaces as an AuthError.
func (c *Client) GoodsList(ctx context.Context, q models.ListingQuery) ([]models.RawListing, error) {
	if c.cfg.Cookie == "" {
		return nil, &errs.AuthError{Source: sourceName, Reason: "BUFF_COOKIE is not set"}
	}

	log := c.log.WithComponent("buff_client").WithFields(logger.Fields{
		"search":    q.Search,
		"page_size": q.PageSize,
	})

	params := url.Values{}
	params.Set("game", c.cfg.Game)
	params.Set("page_num", strconv.Itoa(q.PageNum))
	params.Set("page_size", strconv.Itoa(q.PageSize))
	params.Set("sort_by", c.cfg.SortBy)
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.MinPriceFen > 0 {
		params.Set("price_min", strconv.FormatInt(q.MinPriceFen, 10))
	}
	if q.MaxPriceFen > 0 {
		params.Set("price_max", strconv.FormatInt(q.MaxPriceFen, 10))
	}

	reqURL := fmt.Sprintf("%s/api/market/goods?%s", c.cfg.BaseURL, params.Encode())

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &errs.UpstreamError{Source: sourceName, Reason: "rate limiter wait cancelled", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &errs.UpstreamError{Source: sourceName, Reason: "building request", Err: err}
	}
	req.Header.Set("Cookie", c.cfg.Cookie)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamError(sourceName)
		log.WithError(err).Warn("goods list request failed")
		return nil, &errs.UpstreamError{Source: sourceName, Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordUpstreamError(sourceName)
		snippet := bodySnippet(resp.Body)
		log.WithFields(logger.Fields{"status": resp.StatusCode, "body": snippet}).Warn("goods list returned non-200")
		return nil, &errs.UpstreamError{Source: sourceName, Status: resp.StatusCode, Reason: snippet}
	}

	var env goodsEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		metrics.RecordUpstreamError(sourceName)
		return nil, &errs.UpstreamError{Source: sourceName, Reason: "decoding response", Err: err}
	}

	if env.Code == "Login Required" {
		log.Warn("buff cookie rejected")
		return nil, &errs.AuthError{Source: sourceName, Reason: "login required (cookie expired)"}
	}
	if env.Code != "" && env.Code != "OK" {
		metrics.RecordUpstreamError(sourceName)
		return nil, &errs.UpstreamError{Source: sourceName, Reason: fmt.Sprintf("code %s %s", env.Code, env.Error)}
	}

	log.WithFields(logger.Fields{"items": len(env.Data.Items)}).Debug("goods list fetched")
	return env.Data.Items, nil
}

// bodySnippet reads at most 200 bytes of an error body for diagnostics.
func bodySnippet(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 200))
	if err != nil {
		return ""
	}
	return string(b)
}
