package source

import (
	"context"
	"sort"

	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/market"
)

// Source is one upstream price provider, normalized to the common quote
// shape. Implementations never panic; failures come back as tagged errors so
// the aggregator can continue with partial results.
type Source interface {
	Name() string
	FetchQuote(ctx context.Context, inst market.Instrument) (market.Quote, error)
}

// CandleSource is implemented by sources that also expose historical bars.
type CandleSource interface {
	FetchCandles(ctx context.Context, inst market.Instrument, interval string, limit int) (market.CandleSeries, error)
}

// RateProvider yields an FX conversion rate between two currencies.
type RateProvider interface {
	Name() string
	FetchRate(ctx context.Context, from, to string) (market.ReferenceRate, error)
}

// Registry holds the fixed set of configured sources keyed by name.
// The set is established at wiring time, not discovered at runtime.
type Registry struct {
	byName map[string]Source
	order  []string
}

func NewRegistry(sources ...Source) *Registry {
	r := &Registry{byName: make(map[string]Source, len(sources))}
	for _, s := range sources {
		if _, dup := r.byName[s.Name()]; dup {
			continue
		}
		r.byName[s.Name()] = s
		r.order = append(r.order, s.Name())
	}
	sort.Strings(r.order)
	return r
}

// Names returns the configured source ids in lexical order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Lookup returns the named source, or false when not configured.
func (r *Registry) Lookup(name string) (Source, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// Select resolves a requested subset, skipping unknown names. An empty
// request means the full configured set.
func (r *Registry) Select(names []string) []Source {
	if len(names) == 0 {
		names = r.order
	}
	out := make([]Source, 0, len(names))
	for _, n := range names {
		if s, ok := r.byName[n]; ok {
			out = append(out, s)
		}
	}
	return out
}
