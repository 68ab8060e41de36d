package market

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Error taxonomy shared by adapters and the aggregator. Adapters wrap these
// with %w so callers can classify failures with errors.Is.
var (
	// ErrUpstream covers non-2xx responses, network failures and timeouts.
	ErrUpstream = errors.New("upstream error")
	// ErrMalformed covers structurally valid responses with missing or
	// non-numeric price fields.
	ErrMalformed = errors.New("malformed response")
	// ErrRateUnavailable means no rate provider yielded a usable rate.
	ErrRateUnavailable = errors.New("reference rate unavailable")
	// ErrAllSourcesFailed marks an aggregate where every source failed.
	ErrAllSourcesFailed = errors.New("all sources failed")
)

// Instrument is a base/quote asset pair. Immutable; used in cache keys.
type Instrument struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

// ParseInstrument accepts "BTC/USDT", "BTC-USDT" or "BTCUSDT". The compact
// form is split on a known quote-currency suffix.
func ParseInstrument(s string) (Instrument, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Instrument{}, fmt.Errorf("empty instrument")
	}
	for _, sep := range []string{"/", "-"} {
		if b, q, ok := strings.Cut(s, sep); ok {
			if b == "" || q == "" {
				return Instrument{}, fmt.Errorf("invalid instrument %q", s)
			}
			return Instrument{Base: b, Quote: q}, nil
		}
	}
	for _, q := range []string{"USDT", "USDC", "TUSD", "BUSD", "USD", "ARS", "EUR", "BTC", "ETH"} {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return Instrument{Base: strings.TrimSuffix(s, q), Quote: q}, nil
		}
	}
	return Instrument{}, fmt.Errorf("cannot split instrument %q", s)
}

// Symbol renders the compact exchange form, e.g. "BTCUSDT".
func (i Instrument) Symbol() string { return i.Base + i.Quote }

// DashSymbol renders the dash form used by OKX and KuCoin, e.g. "BTC-USDT".
func (i Instrument) DashSymbol() string { return i.Base + "-" + i.Quote }

func (i Instrument) String() string { return i.Base + "/" + i.Quote }

// Quote is one adapter result for one instrument. Bid/Ask are nil when the
// venue did not report that side; a quote with both sides nil is invalid and
// must carry an error at the adapter boundary instead.
type Quote struct {
	Source     string     `json:"source"`
	Instrument Instrument `json:"instrument"`
	Bid        *float64   `json:"bid,omitempty"`
	Ask        *float64   `json:"ask,omitempty"`
	FetchedAt  time.Time  `json:"fetched_at"`
}

// Valid reports whether at least one side holds a finite positive price.
func (q Quote) Valid() bool {
	return finitePtr(q.Bid) || finitePtr(q.Ask)
}

func finitePtr(p *float64) bool {
	return p != nil && !math.IsNaN(*p) && !math.IsInf(*p, 0) && *p > 0
}

// Price returns a pointer for a finite positive value, nil otherwise.
// Adapters use it so that zero never leaks through as a real price.
func Price(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return nil
	}
	return &v
}

// ReferenceRate converts prices into a secondary currency. Always tagged with
// its origin and fetch time.
type ReferenceRate struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Rate      float64   `json:"rate"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Row is a valid quote with an optional converted ranking price.
type Row struct {
	Quote
	Converted         *float64 `json:"converted,omitempty"`
	ConvertedCurrency string   `json:"converted_currency,omitempty"`
}

// SourceError records why a source was excluded from the ranked rows.
type SourceError struct {
	Source string `json:"source"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

// AggregateResult is the merged, ranked outcome of one fan-out.
type AggregateResult struct {
	Instrument    Instrument     `json:"instrument"`
	Rows          []Row          `json:"rows"`
	FailedSources []SourceError  `json:"failed_sources"`
	ReferenceRate *ReferenceRate `json:"reference_rate,omitempty"`
	FetchedAt     time.Time      `json:"fetched_at"`
}

// AllFailed reports whether every configured source failed.
func (r AggregateResult) AllFailed() bool {
	return len(r.Rows) == 0 && len(r.FailedSources) > 0
}

// ErrorKind maps an adapter error onto the wire taxonomy.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrMalformed):
		return "malformed_response"
	case errors.Is(err, ErrRateUnavailable):
		return "reference_rate_unavailable"
	default:
		return "upstream_error"
	}
}
