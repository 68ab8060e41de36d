// Package coingecko fetches spot prices from the CoinGecko simple-price API
// and derives a secondary USD→ARS rate from tether's dual quotation.
package coingecko

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/httpx"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/market"
)

const defaultBaseURL = "https://api.coingecko.com"

type Config struct {
	Name    string
	BaseURL string
}

type Source struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Source {
	if cfg.Name == "" {
		cfg.Name = "COINGECKO"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Source{cfg: cfg, client: hc}
}

func (s *Source) Name() string { return s.cfg.Name }

// AssetPrice is one asset's dual quotation. Nil means CoinGecko did not
// report that currency.
type AssetPrice struct {
	USD *float64 `json:"usd,omitempty"`
	ARS *float64 `json:"ars,omitempty"`
}

// FetchPrices returns USD and ARS spot prices for CoinGecko asset ids
// ("bitcoin", "ethereum", "tether").
func (s *Source) FetchPrices(ctx context.Context, assets []string) (map[string]AssetPrice, error) {
	ids := make([]string, 0, len(assets))
	for _, a := range assets {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" {
			ids = append(ids, a)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no assets requested", market.ErrMalformed)
	}
	url := fmt.Sprintf("%s/api/v3/simple/price?ids=%s&vs_currencies=usd,ars", s.cfg.BaseURL, strings.Join(ids, ","))
	var body map[string]struct {
		USD *float64 `json:"usd"`
		ARS *float64 `json:"ars"`
	}
	if err := s.client.GetJSON(ctx, url, &body); err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: %s: empty price response", market.ErrMalformed, s.cfg.Name)
	}
	out := make(map[string]AssetPrice, len(body))
	for id, p := range body {
		ap := AssetPrice{}
		if p.USD != nil {
			ap.USD = market.Price(*p.USD)
		}
		if p.ARS != nil {
			ap.ARS = market.Price(*p.ARS)
		}
		out[id] = ap
	}
	return out, nil
}

// FetchRate derives USD→ARS as tether's ARS price over its USD price.
func (s *Source) FetchRate(ctx context.Context, from, to string) (market.ReferenceRate, error) {
	if !strings.EqualFold(from, "USD") && !strings.EqualFold(from, "USDT") {
		return market.ReferenceRate{}, fmt.Errorf("%w: %s does not quote %s", market.ErrRateUnavailable, s.cfg.Name, from)
	}
	if !strings.EqualFold(to, "ARS") {
		return market.ReferenceRate{}, fmt.Errorf("%w: %s does not quote %s", market.ErrRateUnavailable, s.cfg.Name, to)
	}
	prices, err := s.FetchPrices(ctx, []string{"tether"})
	if err != nil {
		return market.ReferenceRate{}, err
	}
	t, ok := prices["tether"]
	if !ok || t.USD == nil || t.ARS == nil {
		return market.ReferenceRate{}, fmt.Errorf("%w: tether quotation incomplete", market.ErrRateUnavailable)
	}
	rate := *t.ARS / *t.USD
	if market.Price(rate) == nil {
		return market.ReferenceRate{}, fmt.Errorf("%w: derived rate not finite", market.ErrRateUnavailable)
	}
	return market.ReferenceRate{
		From:      strings.ToUpper(from),
		To:        "ARS",
		Rate:      rate,
		Source:    s.cfg.Name + ":tether",
		FetchedAt: time.Now().UTC(),
	}, nil
}
