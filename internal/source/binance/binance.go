// Package binance fetches spot book tickers and klines from the Binance
// public REST API. Binance serves several equivalent hostnames; the adapter
// walks them in order because individual mirrors get blocked regionally
// (HTTP 451).
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/httpx"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/market"
)

var defaultMirrors = []string{
	"https://api1.binance.com",
	"https://api2.binance.com",
	"https://api3.binance.com",
	"https://data-api.binance.vision",
}

type Config struct {
	Name    string
	Mirrors []string
}

type Source struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Source {
	if cfg.Name == "" {
		cfg.Name = "BINANCE"
	}
	if len(cfg.Mirrors) == 0 {
		cfg.Mirrors = defaultMirrors
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
	urls := make([]string, len(s.cfg.Mirrors))
	for i, base := range s.cfg.Mirrors {
		urls[i] = fmt.Sprintf("%s/api/v3/ticker/bookTicker?symbol=%s", base, inst.Symbol())
	}
	var body bookTicker
	err := s.client.FirstJSON(ctx, urls, &body, func() bool { return body.BidPrice != "" || body.AskPrice != "" })
	if err != nil {
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

// FetchCandles requests up to limit klines, newest last. Binance already
// returns bars in ascending open-time order.
func (s *Source) FetchCandles(ctx context.Context, inst market.Instrument, interval string, limit int) (market.CandleSeries, error) {
	urls := make([]string, len(s.cfg.Mirrors))
	for i, base := range s.cfg.Mirrors {
		urls[i] = fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d", base, inst.Symbol(), interval, limit)
	}
	var raw [][]json.RawMessage
	err := s.client.FirstJSON(ctx, urls, &raw, func() bool { return len(raw) > 0 })
	if err != nil {
		return nil, err
	}
	return parseKlines(raw)
}

// Binance kline array layout: [0] open time (ms), [1] open, [2] high,
// [3] low, [4] close, [5] volume; remaining fields unused.
func parseKlines(raw [][]json.RawMessage) (market.CandleSeries, error) {
	out := make(market.CandleSeries, 0, len(raw))
	for i, r := range raw {
		if len(r) < 6 {
			return nil, fmt.Errorf("%w: kline[%d] has %d fields, want >=6", market.ErrMalformed, i, len(r))
		}
		var openTime int64
		if err := json.Unmarshal(r[0], &openTime); err != nil {
			return nil, fmt.Errorf("%w: kline[%d] open time: %v", market.ErrMalformed, i, err)
		}
		vals := make([]float64, 5)
		for j := 1; j <= 5; j++ {
			var str string
			if err := json.Unmarshal(r[j], &str); err != nil {
				return nil, fmt.Errorf("%w: kline[%d][%d]: %v", market.ErrMalformed, i, j, err)
			}
			v, err := strconv.ParseFloat(str, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: kline[%d][%d]: %v", market.ErrMalformed, i, j, err)
			}
			vals[j-1] = v
		}
		out = append(out, market.Candle{
			OpenTime: openTime,
			Open:     vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4],
		})
	}
	if !out.Sorted() {
		return nil, fmt.Errorf("%w: klines not in ascending time order", market.ErrMalformed)
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
