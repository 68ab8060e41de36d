// Package okx fetches spot tickers and candles from the OKX v5 API.
// OKX identifies instruments with dash-form instIds ("BTC-USDT").
package okx

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/httpx"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/market"
)

const defaultBaseURL = "https://www.okx.com"

var barMap = map[string]string{
	"1m": "1m", "5m": "5m", "15m": "15m", "30m": "30m",
	"1h": "1H", "4h": "4H", "1d": "1D",
}

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
		cfg.Name = "OKX"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Source{cfg: cfg, client: hc}
}

func (s *Source) Name() string { return s.cfg.Name }

type tickerResponse struct {
	Data []struct {
		InstID string `json:"instId"`
		BidPx  string `json:"bidPx"`
		AskPx  string `json:"askPx"`
	} `json:"data"`
}

func (s *Source) FetchQuote(ctx context.Context, inst market.Instrument) (market.Quote, error) {
	url := fmt.Sprintf("%s/api/v5/market/ticker?instId=%s", s.cfg.BaseURL, inst.DashSymbol())
	var body tickerResponse
	if err := s.client.GetJSON(ctx, url, &body); err != nil {
		return market.Quote{}, err
	}
	if len(body.Data) == 0 {
		return market.Quote{}, fmt.Errorf("%w: %s: empty data for %s", market.ErrMalformed, s.cfg.Name, inst.DashSymbol())
	}
	d := body.Data[0]
	q := market.Quote{
		Source:     s.cfg.Name,
		Instrument: inst,
		Bid:        parsePrice(d.BidPx),
		Ask:        parsePrice(d.AskPx),
		FetchedAt:  time.Now().UTC(),
	}
	if !q.Valid() {
		return market.Quote{}, fmt.Errorf("%w: %s: no usable bid/ask for %s", market.ErrMalformed, s.cfg.Name, inst.DashSymbol())
	}
	return q, nil
}

type candlesResponse struct {
	Data [][]string `json:"data"`
}

// FetchCandles returns bars ascending by open time; OKX delivers newest
// first.
func (s *Source) FetchCandles(ctx context.Context, inst market.Instrument, interval string, limit int) (market.CandleSeries, error) {
	bar, ok := barMap[interval]
	if !ok {
		bar = "1H"
	}
	url := fmt.Sprintf("%s/api/v5/market/candles?instId=%s&bar=%s&limit=%d", s.cfg.BaseURL, inst.DashSymbol(), bar, limit)
	var body candlesResponse
	if err := s.client.GetJSON(ctx, url, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, fmt.Errorf("%w: %s: empty candle data for %s", market.ErrMalformed, s.cfg.Name, inst.DashSymbol())
	}
	out := make(market.CandleSeries, 0, len(body.Data))
	for i, row := range body.Data {
		if len(row) < 6 {
			return nil, fmt.Errorf("%w: candle[%d] has %d fields, want >=6", market.ErrMalformed, i, len(row))
		}
		openTime, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: candle[%d] open time: %v", market.ErrMalformed, i, err)
		}
		vals := make([]float64, 5)
		for j := 1; j <= 5; j++ {
			v, err := strconv.ParseFloat(row[j], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: candle[%d][%d]: %v", market.ErrMalformed, i, j, err)
			}
			vals[j-1] = v
		}
		out = append(out, market.Candle{
			OpenTime: openTime,
			Open:     vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime < out[j].OpenTime })
	if !out.Sorted() {
		return nil, fmt.Errorf("%w: duplicate candle open times", market.ErrMalformed)
	}
	return out, nil
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
