// Package mexc fetches book tickers from the MEXC public API, which mirrors
// the Binance v3 wire format.
package mexc

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/httpx"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/market"
)

const defaultBaseURL = "https://api.mexc.com"

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
		cfg.Name = "MEXC"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Source{cfg: cfg, client: hc}
}

func (s *Source) Name() string { return s.cfg.Name }

type bookTicker struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	AskPrice string `json:"askPrice"`
}

func (s *Source) FetchQuote(ctx context.Context, inst market.Instrument) (market.Quote, error) {
	url := fmt.Sprintf("%s/api/v3/ticker/bookTicker?symbol=%s", s.cfg.BaseURL, inst.Symbol())
	var body bookTicker
	if err := s.client.GetJSON(ctx, url, &body); err != nil {
		return market.Quote{}, err
	}
	q := market.Quote{
		Source:     s.cfg.Name,
		Instrument: inst,
		Bid:        parsePrice(body.BidPrice),
		Ask:        parsePrice(body.AskPrice),
		FetchedAt:  time.Now().UTC(),
	}
	if !q.Valid() {
		return market.Quote{}, fmt.Errorf("%w: %s: no usable bid/ask for %s", market.ErrMalformed, s.cfg.Name, inst.Symbol())
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
