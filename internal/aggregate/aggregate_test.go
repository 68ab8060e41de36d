package aggregate

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/cache"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/market"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/refrate"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/source"
)

var btcusdt = market.Instrument{Base: "BTC", Quote: "USDT"}

type stubSource struct {
	name  string
	bid   *float64
	ask   *float64
	err   error
	slow  time.Duration
	calls atomic.Int64
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) FetchQuote(ctx context.Context, inst market.Instrument) (market.Quote, error) {
	s.calls.Add(1)
	if s.slow > 0 {
		select {
		case <-ctx.Done():
			return market.Quote{}, fmt.Errorf("%w: %v", market.ErrUpstream, ctx.Err())
		case <-time.After(s.slow):
		}
	}
	if s.err != nil {
		return market.Quote{}, s.err
	}
	return market.Quote{
		Source: s.name, Instrument: inst,
		Bid: s.bid, Ask: s.ask,
		FetchedAt: time.Now().UTC(),
	}, nil
}

type stubRate struct {
	rate float64
	err  error
}

func (s *stubRate) Name() string { return "STUBRATE" }

func (s *stubRate) FetchRate(_ context.Context, from, to string) (market.ReferenceRate, error) {
	if s.err != nil {
		return market.ReferenceRate{}, s.err
	}
	return market.ReferenceRate{From: from, To: to, Rate: s.rate, Source: "STUBRATE", FetchedAt: time.Now()}, nil
}

func f(v float64) *float64 { return &v }

func newAggregator(c *cache.Cache, rp source.RateProvider, srcs ...source.Source) *Aggregator {
	var rates *refrate.Resolver
	if rp != nil {
		rates = refrate.NewResolver(0, rp)
	}
	if c == nil {
		c = cache.New(0, 0)
	}
	return New(source.NewRegistry(srcs...), rates, c, 2*time.Second)
}

func TestAggregate_AllSourcesSucceed_SortedByAsk(t *testing.T) {
	a := newAggregator(nil, nil,
		&stubSource{name: "OKX", bid: f(99), ask: f(101)},
		&stubSource{name: "BINANCE", bid: f(100), ask: f(100.5)},
		&stubSource{name: "BYBIT", bid: f(98), ask: f(103)},
	)
	res := a.Aggregate(context.Background(), btcusdt, Options{})

	if len(res.FailedSources) != 0 {
		t.Fatalf("unexpected failures: %+v", res.FailedSources)
	}
	if len(res.Rows) != 3 {
		t.Fatalf("want 3 rows, got %d", len(res.Rows))
	}
	wantOrder := []string{"BINANCE", "OKX", "BYBIT"}
	for i, w := range wantOrder {
		if res.Rows[i].Source != w {
			t.Fatalf("row %d source=%s want %s (rows %+v)", i, res.Rows[i].Source, w, res.Rows)
		}
	}
}

func TestAggregate_RankByBid(t *testing.T) {
	a := newAggregator(nil, nil,
		&stubSource{name: "OKX", bid: f(99), ask: f(101)},
		&stubSource{name: "BINANCE", bid: f(100), ask: f(100.5)},
	)
	res := a.Aggregate(context.Background(), btcusdt, Options{RankBy: RankByBid})
	if res.Rows[0].Source != "OKX" || res.Rows[1].Source != "BINANCE" {
		t.Fatalf("bid ranking wrong: %+v", res.Rows)
	}
}

func TestAggregate_TieBrokenBySourceId(t *testing.T) {
	a := newAggregator(nil, nil,
		&stubSource{name: "OKX", bid: f(99), ask: f(100)},
		&stubSource{name: "BINANCE", bid: f(99), ask: f(100)},
		&stubSource{name: "KUCOIN", bid: f(99), ask: f(100)},
	)
	res := a.Aggregate(context.Background(), btcusdt, Options{})
	wantOrder := []string{"BINANCE", "KUCOIN", "OKX"}
	for i, w := range wantOrder {
		if res.Rows[i].Source != w {
			t.Fatalf("tie-break order wrong at %d: %+v", i, res.Rows)
		}
	}
}

func TestAggregate_OneSourceFails_OthersSurvive(t *testing.T) {
	a := newAggregator(nil, nil,
		&stubSource{name: "BINANCE", bid: f(100), ask: f(100.5)},
		&stubSource{name: "OKX", err: fmt.Errorf("%w: 451", market.ErrUpstream)},
		&stubSource{name: "BYBIT", bid: f(98), ask: f(103)},
	)
	res := a.Aggregate(context.Background(), btcusdt, Options{})

	if len(res.Rows) != 2 {
		t.Fatalf("want 2 rows, got %+v", res.Rows)
	}
	if res.Rows[0].Source != "BINANCE" || res.Rows[1].Source != "BYBIT" {
		t.Fatalf("surviving rows out of order: %+v", res.Rows)
	}
	if len(res.FailedSources) != 1 || res.FailedSources[0].Source != "OKX" {
		t.Fatalf("want OKX in failed sources: %+v", res.FailedSources)
	}
	if res.FailedSources[0].Kind != "upstream_error" {
		t.Fatalf("want upstream_error kind, got %q", res.FailedSources[0].Kind)
	}
}

func TestAggregate_SlowSourceTimesOutIndependently(t *testing.T) {
	a := newAggregator(nil, nil,
		&stubSource{name: "BINANCE", bid: f(100), ask: f(100.5)},
		&stubSource{name: "OKX", bid: f(99), ask: f(101), slow: 10 * time.Second},
	)
	a.Timeout = 50 * time.Millisecond

	start := time.Now()
	res := a.Aggregate(context.Background(), btcusdt, Options{})
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("aggregate blocked on slow source for %v", elapsed)
	}
	if len(res.Rows) != 1 || res.Rows[0].Source != "BINANCE" {
		t.Fatalf("want only BINANCE row: %+v", res.Rows)
	}
	if len(res.FailedSources) != 1 || res.FailedSources[0].Source != "OKX" {
		t.Fatalf("want OKX timed out: %+v", res.FailedSources)
	}
}

func TestAggregate_AllSourcesFail_StructuredNotRaised(t *testing.T) {
	a := newAggregator(nil, nil,
		&stubSource{name: "BINANCE", err: market.ErrUpstream},
		&stubSource{name: "OKX", err: fmt.Errorf("%w: bad json", market.ErrMalformed)},
	)
	res := a.Aggregate(context.Background(), btcusdt, Options{})

	if len(res.Rows) != 0 {
		t.Fatalf("want no rows, got %+v", res.Rows)
	}
	if len(res.FailedSources) != 2 {
		t.Fatalf("want full failed set, got %+v", res.FailedSources)
	}
	if !res.AllFailed() {
		t.Fatalf("AllFailed must report true")
	}
	if res.FailedSources[1].Kind != "malformed_response" {
		t.Fatalf("want malformed_response for OKX, got %+v", res.FailedSources[1])
	}
}

func TestAggregate_ConversionApplied(t *testing.T) {
	a := newAggregator(nil, &stubRate{rate: 1000},
		&stubSource{name: "BINANCE", bid: f(100), ask: f(101)},
	)
	res := a.Aggregate(context.Background(), btcusdt, Options{Convert: "ARS"})

	if res.ReferenceRate == nil || res.ReferenceRate.Rate != 1000 {
		t.Fatalf("reference rate missing: %+v", res.ReferenceRate)
	}
	row := res.Rows[0]
	if row.Converted == nil || *row.Converted != 101*1000 {
		t.Fatalf("converted price wrong: %+v", row)
	}
	if row.ConvertedCurrency != "ARS" {
		t.Fatalf("converted currency=%q want ARS", row.ConvertedCurrency)
	}
}

func TestAggregate_RateUnavailable_ConversionOmitted(t *testing.T) {
	a := newAggregator(nil, &stubRate{err: market.ErrRateUnavailable},
		&stubSource{name: "BINANCE", bid: f(100), ask: f(101)},
	)
	res := a.Aggregate(context.Background(), btcusdt, Options{Convert: "ARS"})

	if res.ReferenceRate != nil {
		t.Fatalf("rate must be nil when unavailable: %+v", res.ReferenceRate)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("quote rows must survive rate failure: %+v", res.Rows)
	}
	if res.Rows[0].Converted != nil || res.Rows[0].ConvertedCurrency != "" {
		t.Fatalf("converted fields must be omitted, got %+v", res.Rows[0])
	}
}

func TestAggregate_SourceSubset(t *testing.T) {
	binance := &stubSource{name: "BINANCE", bid: f(100), ask: f(100.5)}
	okx := &stubSource{name: "OKX", bid: f(99), ask: f(101)}
	a := newAggregator(nil, nil, binance, okx)

	res := a.Aggregate(context.Background(), btcusdt, Options{Sources: []string{"OKX"}})
	if len(res.Rows) != 1 || res.Rows[0].Source != "OKX" {
		t.Fatalf("subset ignored: %+v", res.Rows)
	}
	if binance.calls.Load() != 0 {
		t.Fatalf("excluded source must not be called")
	}
}

func TestAggregate_CacheRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := cache.New(15*time.Second, 100)
	c.Now = func() time.Time { return now }

	binance := &stubSource{name: "BINANCE", bid: f(100), ask: f(100.5)}
	okx := &stubSource{name: "OKX", bid: f(99), ask: f(101)}
	a := newAggregator(c, nil, binance, okx)

	a.Aggregate(context.Background(), btcusdt, Options{})
	a.Aggregate(context.Background(), btcusdt, Options{})
	if binance.calls.Load() != 1 || okx.calls.Load() != 1 {
		t.Fatalf("second call within TTL must be a cache hit: binance=%d okx=%d",
			binance.calls.Load(), okx.calls.Load())
	}

	now = now.Add(16 * time.Second)
	a.Aggregate(context.Background(), btcusdt, Options{})
	if binance.calls.Load() != 2 || okx.calls.Load() != 2 {
		t.Fatalf("call after TTL must refetch: binance=%d okx=%d",
			binance.calls.Load(), okx.calls.Load())
	}
}

func TestAggregate_CacheKeyedByOptions(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := cache.New(time.Minute, 100)
	c.Now = func() time.Time { return now }

	binance := &stubSource{name: "BINANCE", bid: f(100), ask: f(100.5)}
	a := newAggregator(c, nil, binance)

	a.Aggregate(context.Background(), btcusdt, Options{RankBy: RankByAsk})
	a.Aggregate(context.Background(), btcusdt, Options{RankBy: RankByBid})
	if binance.calls.Load() != 2 {
		t.Fatalf("different options must not alias in cache: calls=%d", binance.calls.Load())
	}
}

func TestAggregate_QuoteMissingRankingSideReported(t *testing.T) {
	a := newAggregator(nil, nil,
		&stubSource{name: "BINANCE", bid: f(100)}, // bid only
		&stubSource{name: "OKX", bid: f(99), ask: f(101)},
	)
	res := a.Aggregate(context.Background(), btcusdt, Options{RankBy: RankByAsk})

	if len(res.Rows) != 1 || res.Rows[0].Source != "OKX" {
		t.Fatalf("only OKX can rank by ask: %+v", res.Rows)
	}
	if len(res.FailedSources) != 1 || res.FailedSources[0].Source != "BINANCE" {
		t.Fatalf("BINANCE must be reported unrankable: %+v", res.FailedSources)
	}
}
