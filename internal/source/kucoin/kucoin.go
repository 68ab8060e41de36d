// Package kucoin fetches level-1 orderbook quotes from the KuCoin public API.
package kucoin

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/httpx"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/market"
)

const defaultBaseURL = "https://api.kucoin.com"

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
		cfg.Name = "KUCOIN"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Source{cfg: cfg, client: hc}
}

func (s *Source) Name() string { return s.cfg.Name }

type level1Response struct {
	Data struct {
		BestBid string `json:"bestBid"`
		BestAsk string `json:"bestAsk"`
		Price   string `json:"price"`
	} `json:"data"`
}

func (s *Source) FetchQuote(ctx context.Context, inst market.Instrument) (market.Quote, error) {
	url := fmt.Sprintf("%s/api/v1/market/orderbook/level1?symbol=%s", s.cfg.BaseURL, inst.DashSymbol())
	var body level1Response
	if err := s.client.GetJSON(ctx, url, &body); err != nil {
		return market.Quote{}, err
	}
	q := market.Quote{
		Source:     s.cfg.Name,
		Instrument: inst,
		Bid:        parsePrice(body.Data.BestBid),
		Ask:        parsePrice(body.Data.BestAsk),
		FetchedAt:  time.Now().UTC(),
	}
	if !q.Valid() {
		return market.Quote{}, fmt.Errorf("%w: %s: no usable bid/ask for %s", market.ErrMalformed, s.cfg.Name, inst.DashSymbol())
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
