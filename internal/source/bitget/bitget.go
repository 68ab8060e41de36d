// Package bitget fetches spot tickers from the Bitget public API. Spot
// symbols sometimes require the _SPBL suffix, so both spellings are tried as
// ordered candidates.
package bitget

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/httpx"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/market"
)

const defaultBaseURL = "https://api.bitget.com"

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
		cfg.Name = "BITGET"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Source{cfg: cfg, client: hc}
}

func (s *Source) Name() string { return s.cfg.Name }

type tickerResponse struct {
	Data []struct {
		Symbol string `json:"symbol"`
		BuyPr  string `json:"buyOne"`
		SellPr string `json:"sellOne"`
		BuyAlt string `json:"buyPr"`
		SellAl string `json:"sellPr"`
	} `json:"data"`
}

func (s *Source) FetchQuote(ctx context.Context, inst market.Instrument) (market.Quote, error) {
	sym := inst.Symbol()
	urls := []string{
		fmt.Sprintf("%s/api/spot/v1/market/tickers?symbol=%s", s.cfg.BaseURL, sym),
		fmt.Sprintf("%s/api/spot/v1/market/tickers?symbol=%s_SPBL", s.cfg.BaseURL, sym),
	}
	var body tickerResponse
	err := s.client.FirstJSON(ctx, urls, &body, func() bool { return len(body.Data) > 0 })
	if err != nil {
		return market.Quote{}, err
	}
	d := body.Data[0]
	bid := parsePrice(d.BuyPr)
	if bid == nil {
		bid = parsePrice(d.BuyAlt)
	}
	ask := parsePrice(d.SellPr)
	if ask == nil {
		ask = parsePrice(d.SellAl)
	}
	q := market.Quote{
		Source:     s.cfg.Name,
		Instrument: inst,
		Bid:        bid,
		Ask:        ask,
		FetchedAt:  time.Now().UTC(),
	}
	if !q.Valid() {
		return market.Quote{}, fmt.Errorf("%w: %s: no usable bid/ask for %s", market.ErrMalformed, s.cfg.Name, sym)
	}
	return q, nil
}

func parsePrice(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return market.Price(v)
}
