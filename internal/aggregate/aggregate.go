// Package aggregate fans a quote request out to every configured source
// concurrently, merges the survivors into a ranked table and memoizes the
// result for a short TTL.
package aggregate

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/cache"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/market"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/refrate"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/source"
)

// Side selects which price ranks the rows.
type Side string

const (
	// RankByAsk orders by best place to buy (lowest ask first).
	RankByAsk Side = "ask"
	// RankByBid orders by best place to sell (lowest bid first).
	RankByBid Side = "bid"
)

// Options shape one aggregate call.
type Options struct {
	// RankBy defaults to RankByAsk.
	RankBy Side
	// Sources restricts the fan-out to a subset of the registry; empty means
	// every configured source.
	Sources []string
	// Convert names a target currency; rows gain converted prices when a
	// reference rate from the instrument's quote currency resolves.
	Convert string
}

// Aggregator owns the registry, the rate resolver and the result cache.
type Aggregator struct {
	registry *source.Registry
	rates    *refrate.Resolver
	cache    *cache.Cache
	// Timeout bounds each source call independently.
	Timeout time.Duration
}

func New(registry *source.Registry, rates *refrate.Resolver, c *cache.Cache, timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Aggregator{registry: registry, rates: rates, cache: c, Timeout: timeout}
}

// Sources returns the configured source ids.
func (a *Aggregator) Sources() []string { return a.registry.Names() }

// Aggregate produces the ranked quote table for one instrument. A failing
// source never fails the call; when every source fails the result simply has
// no rows and lists all sources in FailedSources.
func (a *Aggregator) Aggregate(ctx context.Context, inst market.Instrument, opts Options) market.AggregateResult {
	if opts.RankBy != RankByBid {
		opts.RankBy = RankByAsk
	}
	sources := a.registry.Select(opts.Sources)
	key := cacheKey(inst, sources, opts)

	if cached, ok := a.cache.Get(key); ok {
		return cached
	}

	type outcome struct {
		name  string
		quote market.Quote
		err   error
	}
	results := make(chan outcome, len(sources))
	for _, s := range sources {
		s := s
		go func() {
			callCtx, cancel := context.WithTimeout(ctx, a.Timeout)
			defer cancel()
			q, err := s.FetchQuote(callCtx, inst)
			results <- outcome{name: s.Name(), quote: q, err: err}
		}()
	}

	// Resolve the conversion rate concurrently with the quote fan-out.
	var rate *market.ReferenceRate
	rateDone := make(chan struct{})
	if opts.Convert != "" && !strings.EqualFold(opts.Convert, inst.Quote) && a.rates != nil {
		go func() {
			defer close(rateDone)
			rateCtx, cancel := context.WithTimeout(ctx, a.Timeout)
			defer cancel()
			rate = a.rates.Resolve(rateCtx, inst.Quote, strings.ToUpper(opts.Convert))
		}()
	} else {
		close(rateDone)
	}

	res := market.AggregateResult{Instrument: inst, FetchedAt: time.Now().UTC()}
	for range sources {
		o := <-results
		if o.err != nil {
			res.FailedSources = append(res.FailedSources, market.SourceError{
				Source: o.name,
				Kind:   market.ErrorKind(o.err),
				Detail: o.err.Error(),
			})
			continue
		}
		if !o.quote.Valid() {
			res.FailedSources = append(res.FailedSources, market.SourceError{
				Source: o.name,
				Kind:   "malformed_response",
				Detail: "no usable bid/ask",
			})
			continue
		}
		res.Rows = append(res.Rows, market.Row{Quote: o.quote})
	}
	<-rateDone
	res.ReferenceRate = rate

	if rate != nil {
		for i := range res.Rows {
			if p := rankingPrice(res.Rows[i], opts.RankBy); p != nil {
				res.Rows[i].Converted = market.Price(*p * rate.Rate)
				res.Rows[i].ConvertedCurrency = rate.To
			}
		}
	}

	// Rows without the ranking side cannot be ordered meaningfully; they are
	// reported as failures rather than ranked on the wrong price.
	ranked := res.Rows[:0]
	for _, row := range res.Rows {
		if rankingPrice(row, opts.RankBy) == nil {
			res.FailedSources = append(res.FailedSources, market.SourceError{
				Source: row.Source,
				Kind:   "malformed_response",
				Detail: "missing " + string(opts.RankBy) + " price",
			})
			continue
		}
		ranked = append(ranked, row)
	}
	res.Rows = ranked

	sort.Slice(res.Rows, func(i, j int) bool {
		pi := *rankingPrice(res.Rows[i], opts.RankBy)
		pj := *rankingPrice(res.Rows[j], opts.RankBy)
		if pi != pj {
			return pi < pj
		}
		return res.Rows[i].Source < res.Rows[j].Source
	})
	sort.Slice(res.FailedSources, func(i, j int) bool {
		return res.FailedSources[i].Source < res.FailedSources[j].Source
	})

	a.cache.Put(key, res)
	return res
}

func rankingPrice(r market.Row, side Side) *float64 {
	if side == RankByBid {
		return r.Bid
	}
	return r.Ask
}

func cacheKey(inst market.Instrument, sources []source.Source, opts Options) string {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name()
	}
	sort.Strings(names)
	return inst.Symbol() + "|" + strings.Join(names, ",") + "|" + string(opts.RankBy) + "|" + strings.ToUpper(opts.Convert)
}
