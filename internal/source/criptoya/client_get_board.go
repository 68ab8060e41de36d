package criptoya

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/market"
)

// Entry is one venue row on a CriptoYa board. Total* prices include venue
// fees; plain ask/bid do not. Nil means the venue did not publish that side.
type Entry struct {
	Ask      *float64 `json:"ask"`
	TotalAsk *float64 `json:"totalAsk"`
	Bid      *float64 `json:"bid"`
	TotalBid *float64 `json:"totalBid"`
	Time     int64    `json:"time"`
}

// Board maps venue name to its entry for one asset/fiat pair.
type Board map[string]Entry

// GetBoard retrieves the per-venue board for asset priced in fiat, e.g.
// BTC/ARS. Volume selects the depth tier ("1" in the upstream path).
func (c *CriptoyaAPIClient) GetBoard(ctx context.Context, asset, fiat string, volume int, opts ...CriptoyaAPIClientOption) (Board, error) {
	var override = &CriptoyaAPIClient{
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		header:     c.header.Clone(),
		query:      c.query,
	}
	for _, opt := range opts {
		opt(override)
	}

	if volume <= 0 {
		volume = 1
	}
	url := fmt.Sprintf("%s/%s/%s/%d", override.baseURL, strings.ToLower(asset), strings.ToLower(fiat), volume)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = override.header

	res, err := override.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: performing request: %v", market.ErrUpstream, err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		break
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: rate limited", market.ErrUpstream)
	default:
		return nil, fmt.Errorf("%w: unexpected status code: %d", market.ErrUpstream, res.StatusCode)
	}

	var board Board
	if err := json.NewDecoder(res.Body).Decode(&board); err != nil {
		return nil, fmt.Errorf("%w: decoding board response: %v", market.ErrMalformed, err)
	}
	if len(board) == 0 {
		return nil, fmt.Errorf("%w: empty board for %s/%s", market.ErrMalformed, asset, fiat)
	}
	return board, nil
}
