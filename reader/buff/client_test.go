package buff

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"skinarb/config"
	"skinarb/errs"
	"skinarb/models"
)

func testConfig(baseURL string) config.BuffSourceConfig {
	return config.BuffSourceConfig{
		BaseURL:   baseURL,
		Game:      "csgo",
		SortBy:    "sell_num.desc",
		TimeoutMs: 2000,
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 100, BurstSize: 10},
		Cookie:    "session=abc",
	}
}

func TestGoodsListQueryParams(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		if r.Header.Get("Cookie") != "session=abc" {
			t.Errorf("missing cookie header")
		}
		if r.Header.Get("User-Agent") != browserUA {
			t.Errorf("missing browser user agent")
		}
		w.Write([]byte(`{"code":"OK","data":{"items":[{"market_hash_name":"X"}]}}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	items, err := c.GoodsList(context.Background(), models.ListingQuery{
		Search:      "ak",
		PageNum:     1,
		PageSize:    20,
		MinPriceFen: 700,
		MaxPriceFen: 3500,
	})
	if err != nil {
		t.Fatalf("GoodsList: %v", err)
	}
	if len(items) != 1 || items[0]["market_hash_name"] != "X" {
		t.Fatalf("unexpected items: %+v", items)
	}

	want := map[string]string{
		"game":      "csgo",
		"page_num":  "1",
		"page_size": "20",
		"search":    "ak",
		"sort_by":   "sell_num.desc",
		"price_min": "700",
		"price_max": "3500",
	}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Fatalf("query %s = %q, want %q", k, gotQuery[k], v)
		}
	}
}

func TestGoodsListOmitsUnsetBounds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("price_min") || r.URL.Query().Has("price_max") || r.URL.Query().Has("search") {
			t.Errorf("unset parameters must be omitted: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"code":"OK","data":{"items":[]}}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	if _, err := c.GoodsList(context.Background(), models.ListingQuery{PageNum: 1, PageSize: 20}); err != nil {
		t.Fatalf("GoodsList: %v", err)
	}
}

func TestGoodsListMissingCookie(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:0")
	cfg.Cookie = ""
	c := NewClient(cfg)

	_, err := c.GoodsList(context.Background(), models.ListingQuery{PageNum: 1, PageSize: 20})
	var authErr *errs.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("err = %v, want AuthError", err)
	}
}

func TestGoodsListLoginRequired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"Login Required"}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	_, err := c.GoodsList(context.Background(), models.ListingQuery{PageNum: 1, PageSize: 20})
	var authErr *errs.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("err = %v, want AuthError", err)
	}
}

func TestGoodsListUpstreamErrors(t *testing.T) {
	t.Run("http status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gateway exploded", http.StatusBadGateway)
		}))
		defer srv.Close()

		c := NewClient(testConfig(srv.URL))
		_, err := c.GoodsList(context.Background(), models.ListingQuery{PageNum: 1, PageSize: 20})
		var upErr *errs.UpstreamError
		if !errors.As(err, &upErr) {
			t.Fatalf("err = %v, want UpstreamError", err)
		}
		if upErr.Status != http.StatusBadGateway {
			t.Fatalf("Status = %d", upErr.Status)
		}
	})

	t.Run("logical code", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"code":"Market Closed","error":"maintenance"}`))
		}))
		defer srv.Close()

		c := NewClient(testConfig(srv.URL))
		_, err := c.GoodsList(context.Background(), models.ListingQuery{PageNum: 1, PageSize: 20})
		var upErr *errs.UpstreamError
		if !errors.As(err, &upErr) {
			t.Fatalf("err = %v, want UpstreamError", err)
		}
	})

	t.Run("malformed payload", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not json`))
		}))
		defer srv.Close()

		c := NewClient(testConfig(srv.URL))
		_, err := c.GoodsList(context.Background(), models.ListingQuery{PageNum: 1, PageSize: 20})
		var upErr *errs.UpstreamError
		if !errors.As(err, &upErr) {
			t.Fatalf("err = %v, want UpstreamError", err)
		}
	})
}
