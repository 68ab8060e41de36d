package criptoya

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/market"
)

// Adapter exposes CriptoYa as a quote source for fiat-quoted instruments.
// The board lists many local venues; the adapter's quote is the best side
// across them (lowest total ask, highest total bid), so CRIPTOYA ranks
// against the global exchanges as a single source.
type Adapter struct {
	name   string
	volume int
	client *CriptoyaAPIClient
}

func NewAdapter(name string, volume int, client *CriptoyaAPIClient) *Adapter {
	if name == "" {
		name = "CRIPTOYA"
	}
	return &Adapter{name: name, volume: volume, client: client}
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) FetchQuote(ctx context.Context, inst market.Instrument) (market.Quote, error) {
	board, err := a.client.GetBoard(ctx, inst.Base, inst.Quote, a.volume)
	if err != nil {
		return market.Quote{}, err
	}

	var bestAsk, bestBid *float64
	for _, e := range board {
		if ask := effective(e.TotalAsk, e.Ask); ask != nil && (bestAsk == nil || *ask < *bestAsk) {
			bestAsk = ask
		}
		if bid := effective(e.TotalBid, e.Bid); bid != nil && (bestBid == nil || *bid > *bestBid) {
			bestBid = bid
		}
	}

	q := market.Quote{
		Source:     a.name,
		Instrument: inst,
		Bid:        bestBid,
		Ask:        bestAsk,
		FetchedAt:  time.Now().UTC(),
	}
	if !q.Valid() {
		return market.Quote{}, fmt.Errorf("%w: %s: board has no usable prices for %s", market.ErrMalformed, a.name, inst)
	}
	return q, nil
}

// BoardRow is one venue row for the board endpoint, sorted best sell first.
type BoardRow struct {
	Venue string   `json:"venue"`
	Pair  string   `json:"pair"`
	Buy   *float64 `json:"buy,omitempty"`
	Sell  *float64 `json:"sell,omitempty"`
}

// FetchBoard returns the full per-venue board, rows with no usable price
// dropped, remaining rows sorted ascending by sell price (venues without a
// sell price last, then by venue name).
func (a *Adapter) FetchBoard(ctx context.Context, inst market.Instrument) ([]BoardRow, error) {
	board, err := a.client.GetBoard(ctx, inst.Base, inst.Quote, a.volume)
	if err != nil {
		return nil, err
	}
	rows := make([]BoardRow, 0, len(board))
	for venue, e := range board {
		row := BoardRow{
			Venue: venue,
			Pair:  inst.String(),
			Buy:   effective(e.TotalAsk, e.Ask),
			Sell:  effective(e.TotalBid, e.Bid),
		}
		if row.Buy == nil && row.Sell == nil {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		si, sj := rows[i].Sell, rows[j].Sell
		switch {
		case si != nil && sj != nil && *si != *sj:
			return *si < *sj
		case si != nil && sj == nil:
			return true
		case si == nil && sj != nil:
			return false
		}
		return rows[i].Venue < rows[j].Venue
	})
	return rows, nil
}

// effective prefers the fee-inclusive total over the raw book price.
func effective(total, raw *float64) *float64 {
	if total != nil {
		if p := market.Price(*total); p != nil {
			return p
		}
	}
	if raw != nil {
		return market.Price(*raw)
	}
	return nil
}
