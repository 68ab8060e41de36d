// Package refrate resolves an FX conversion rate from a prioritized chain of
// providers, with a short-lived memo so every aggregate call does not hit the
// rate upstreams again.
package refrate

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/market"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/source"
)

type memoEntry struct {
	rate    market.ReferenceRate
	expires time.Time
}

// Resolver tries providers in declared order and returns the first finite,
// positive rate. All-fail resolves to nil, never zero; callers must omit
// converted fields in that case.
type Resolver struct {
	chain []source.RateProvider
	ttl   time.Duration
	now   func() time.Time

	mu   sync.RWMutex
	memo map[string]memoEntry
	sf   singleflight.Group
}

func NewResolver(ttl time.Duration, chain ...source.RateProvider) *Resolver {
	return &Resolver{
		chain: chain,
		ttl:   ttl,
		now:   time.Now,
		memo:  make(map[string]memoEntry),
	}
}

// WithClock replaces the time source. For tests.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Resolve returns the first provider's usable rate for from→to, memoized for
// the configured TTL. Concurrent misses for the same pair are coalesced.
func (r *Resolver) Resolve(ctx context.Context, from, to string) *market.ReferenceRate {
	if len(r.chain) == 0 || from == "" || to == "" {
		return nil
	}
	key := from + "/" + to

	if r.ttl > 0 {
		r.mu.RLock()
		e, ok := r.memo[key]
		r.mu.RUnlock()
		if ok && r.now().Before(e.expires) {
			rate := e.rate
			return &rate
		}
	}

	v, err, _ := r.sf.Do(key, func() (any, error) {
		return r.resolveFresh(ctx, from, to)
	})
	if err != nil {
		return nil
	}
	rate := v.(market.ReferenceRate)

	if r.ttl > 0 {
		r.mu.Lock()
		r.memo[key] = memoEntry{rate: rate, expires: r.now().Add(r.ttl)}
		r.mu.Unlock()
	}
	return &rate
}

func (r *Resolver) resolveFresh(ctx context.Context, from, to string) (market.ReferenceRate, error) {
	var lastErr error
	for _, p := range r.chain {
		rate, err := p.FetchRate(ctx, from, to)
		if err != nil {
			log.Printf("refrate: %s %s/%s: %v", p.Name(), from, to, err)
			lastErr = err
			continue
		}
		if market.Price(rate.Rate) == nil {
			log.Printf("refrate: %s %s/%s: non-finite rate discarded", p.Name(), from, to)
			continue
		}
		return rate, nil
	}
	if lastErr == nil {
		lastErr = market.ErrRateUnavailable
	}
	return market.ReferenceRate{}, lastErr
}
