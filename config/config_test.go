package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"skinarb/errs"
)

const validYAML = `
skinarb:
  name: skinarb
  version: 0.2.0
source:
  buff:
    base_url: https://buff.163.com
    game: csgo
    sort_by: sell_num.desc
    timeout_ms: 15000
  csmarket:
    base_url: https://market.csgo.com/api/v2
    currency: USD
    timeout_ms: 30000
cache:
  listing_ttl_seconds: 60
  price_table_ttl_seconds: 300
scanner:
  concurrency: 4
  fx_cny_usd: "0.14"
logging:
  level: info
  format: json
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.SkinArb.Name != "skinarb" {
		t.Fatalf("Name = %q", cfg.SkinArb.Name)
	}
	if cfg.Cache.ListingTTL().Seconds() != 60 {
		t.Fatalf("ListingTTL = %s", cfg.Cache.ListingTTL())
	}
	if cfg.Cache.PriceTableTTL().Seconds() != 300 {
		t.Fatalf("PriceTableTTL = %s", cfg.Cache.PriceTableTTL())
	}
	if !cfg.Scanner.Fx.Equal(decimal.RequireFromString("0.14")) {
		t.Fatalf("Fx = %s", cfg.Scanner.Fx)
	}
	// Defaults survive when the file omits the section.
	if cfg.Server.Address != ":8080" {
		t.Fatalf("Address = %q", cfg.Server.Address)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("BUFF_COOKIE", " session=abc ")
	t.Setenv("CSGOMARKET_API_KEY", "k-123")
	t.Setenv("FX_CNYUSD", "0.139")

	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Source.Buff.Cookie != "session=abc" {
		t.Fatalf("Cookie = %q", cfg.Source.Buff.Cookie)
	}
	if cfg.Source.Csmarket.APIKey != "k-123" {
		t.Fatalf("APIKey = %q", cfg.Source.Csmarket.APIKey)
	}
	if !cfg.Scanner.Fx.Equal(decimal.RequireFromString("0.139")) {
		t.Fatalf("Fx = %s, want env override", cfg.Scanner.Fx)
	}
}

func TestLoadConfigMissingFxIsConfigError(t *testing.T) {
	body := `
skinarb:
  name: skinarb
  version: 0.2.0
source:
  buff:
    base_url: https://buff.163.com
  csmarket:
    base_url: https://market.csgo.com/api/v2
`
	t.Setenv("FX_CNYUSD", "")

	_, err := LoadConfig(writeConfig(t, body))
	var cfgErr *errs.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
}

func TestLoadConfigRejectsBadFx(t *testing.T) {
	for _, fx := range []string{"zero", "0", "-1"} {
		t.Setenv("FX_CNYUSD", fx)
		_, err := LoadConfig(writeConfig(t, validYAML))
		var cfgErr *errs.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("fx %q: err = %v, want ConfigError", fx, err)
		}
	}
}

func TestLoadConfigValidation(t *testing.T) {
	body := `
skinarb:
  name: skinarb
  version: 0.2.0
source:
  buff:
    base_url: https://buff.163.com
  csmarket:
    base_url: https://market.csgo.com/api/v2
scanner:
  fx_cny_usd: "0.14"
cache:
  listing_ttl_seconds: -1
`
	_, err := LoadConfig(writeConfig(t, body))
	if err == nil {
		t.Fatal("expected validation failure for a negative TTL")
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Fatal("expected error for a missing file")
	}
}
