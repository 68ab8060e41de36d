// Package bybit fetches spot tickers and klines from the Bybit v5 API.
package bybit

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/httpx"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/market"
)

const defaultBaseURL = "https://api.bybit.com"

// Bybit kline intervals differ from the common notation.
var intervalMap = map[string]string{
	"1m": "1", "5m": "5", "15m": "15", "30m": "30",
	"1h": "60", "4h": "240", "1d": "D",
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
		cfg.Name = "BYBIT"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Source{cfg: cfg, client: hc}
}

func (s *Source) Name() string { return s.cfg.Name }

type tickersResponse struct {
	Result struct {
		List []struct {
			Symbol    string `json:"symbol"`
			Bid1Price string `json:"bid1Price"`
			Ask1Price string `json:"ask1Price"`
		} `json:"list"`
	} `json:"result"`
}

func (s *Source) FetchQuote(ctx context.Context, inst market.Instrument) (market.Quote, error) {
	url := fmt.Sprintf("%s/v5/market/tickers?category=spot&symbol=%s", s.cfg.BaseURL, inst.Symbol())
	var body tickersResponse
	if err := s.client.GetJSON(ctx, url, &body); err != nil {
		return market.Quote{}, err
	}
	if len(body.Result.List) == 0 {
		return market.Quote{}, fmt.Errorf("%w: %s: empty ticker list for %s", market.ErrMalformed, s.cfg.Name, inst.Symbol())
	}
	it := body.Result.List[0]
	q := market.Quote{
		Source:     s.cfg.Name,
		Instrument: inst,
		Bid:        parsePrice(it.Bid1Price),
		Ask:        parsePrice(it.Ask1Price),
		FetchedAt:  time.Now().UTC(),
	}
	if !q.Valid() {
		return market.Quote{}, fmt.Errorf("%w: %s: no usable bid/ask for %s", market.ErrMalformed, s.cfg.Name, inst.Symbol())
	}
	return q, nil
}

type klineResponse struct {
	Result struct {
		List [][]string `json:"list"`
	} `json:"result"`
}

// FetchCandles returns klines in ascending open-time order. Bybit delivers
// newest first, so the list is reversed after parsing.
func (s *Source) FetchCandles(ctx context.Context, inst market.Instrument, interval string, limit int) (market.CandleSeries, error) {
	iv, ok := intervalMap[interval]
	if !ok {
		iv = "60"
	}
	url := fmt.Sprintf("%s/v5/market/kline?category=spot&symbol=%s&interval=%s&limit=%d", s.cfg.BaseURL, inst.Symbol(), iv, limit)
	var body klineResponse
	if err := s.client.GetJSON(ctx, url, &body); err != nil {
		return nil, err
	}
	if len(body.Result.List) == 0 {
		return nil, fmt.Errorf("%w: %s: empty kline list for %s", market.ErrMalformed, s.cfg.Name, inst.Symbol())
	}
	out := make(market.CandleSeries, 0, len(body.Result.List))
	for i, row := range body.Result.List {
		if len(row) < 6 {
			return nil, fmt.Errorf("%w: kline[%d] has %d fields, want >=6", market.ErrMalformed, i, len(row))
		}
		openTime, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: kline[%d] open time: %v", market.ErrMalformed, i, err)
		}
		vals := make([]float64, 5)
		for j := 1; j <= 5; j++ {
			v, err := strconv.ParseFloat(row[j], 64)
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
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime < out[j].OpenTime })
	if !out.Sorted() {
		return nil, fmt.Errorf("%w: duplicate kline open times", market.ErrMalformed)
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
