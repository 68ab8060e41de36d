package criptoya_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/market"
	criptoya "github.com/CharlyCriptoya/criptoya-like-mvp/internal/source/criptoya"
)

var btcars = market.Instrument{Base: "BTC", Quote: "ARS"}

func boardClient(t *testing.T, board map[string]any) *criptoya.CriptoyaAPIClient {
	t.Helper()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			buffer := &bytes.Buffer{}
			require.NoError(t, json.NewEncoder(buffer).Encode(board))

			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(buffer),
			}, nil
		}).
		AnyTimes()

	client, err := criptoya.NewCriptoyaAPIClient(criptoya.WithHTTPClient(httpClient))
	require.NoError(t, err)
	return client
}

func TestAdapterFetchQuote_BestSideAcrossVenues(t *testing.T) {
	t.Parallel()

	// Venue A sells cheaper, venue B pays more.
	client := boardClient(t, map[string]any{
		"venueA": map[string]any{"ask": 100.0, "totalAsk": 101.0, "bid": 95.0, "totalBid": 94.0},
		"venueB": map[string]any{"ask": 103.0, "totalAsk": 104.0, "bid": 97.0, "totalBid": 96.5},
	})
	a := criptoya.NewAdapter("", 1, client)
	require.Equal(t, "CRIPTOYA", a.Name())

	q, err := a.FetchQuote(context.Background(), btcars)
	require.NoError(t, err)
	require.NotNil(t, q.Ask)
	require.InEpsilon(t, 101.0, *q.Ask, 1e-9)
	require.NotNil(t, q.Bid)
	require.InEpsilon(t, 96.5, *q.Bid, 1e-9)
	require.Equal(t, "CRIPTOYA", q.Source)
}

func TestAdapterFetchQuote_FallsBackToRawPriceWhenTotalMissing(t *testing.T) {
	t.Parallel()

	client := boardClient(t, map[string]any{
		"venueA": map[string]any{"ask": 100.0, "bid": 95.0},
	})
	a := criptoya.NewAdapter("", 1, client)

	q, err := a.FetchQuote(context.Background(), btcars)
	require.NoError(t, err)
	require.NotNil(t, q.Ask)
	require.InEpsilon(t, 100.0, *q.Ask, 1e-9)
	require.NotNil(t, q.Bid)
	require.InEpsilon(t, 95.0, *q.Bid, 1e-9)
}

func TestAdapterFetchQuote_BoardWithoutPrices(t *testing.T) {
	t.Parallel()

	// Zero prices count as unpublished, the quote has no usable side.
	client := boardClient(t, map[string]any{
		"venueA": map[string]any{"ask": 0.0, "bid": 0.0},
	})
	a := criptoya.NewAdapter("", 1, client)

	_, err := a.FetchQuote(context.Background(), btcars)
	require.Error(t, err)
	require.ErrorIs(t, err, market.ErrMalformed)
}

func TestAdapterFetchBoard_SortedBySellAscending(t *testing.T) {
	t.Parallel()

	client := boardClient(t, map[string]any{
		"venueA": map[string]any{"ask": 100.0, "totalAsk": 101.0, "bid": 95.0, "totalBid": 94.0},
		"venueB": map[string]any{"ask": 103.0, "totalAsk": 104.0, "bid": 97.0, "totalBid": 96.5},
		"venueC": map[string]any{"ask": 102.0, "totalAsk": 102.5},
	})
	a := criptoya.NewAdapter("", 1, client)

	rows, err := a.FetchBoard(context.Background(), btcars)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// Rows with a sell price first, ascending; sell-less venueC last.
	require.Equal(t, "venueA", rows[0].Venue)
	require.Equal(t, "venueB", rows[1].Venue)
	require.Equal(t, "venueC", rows[2].Venue)
	require.Nil(t, rows[2].Sell)
	require.NotNil(t, rows[2].Buy)
	require.Equal(t, "BTC/ARS", rows[0].Pair)
}

func TestAdapterFetchBoard_DropsVenuesWithoutAnyPrice(t *testing.T) {
	t.Parallel()

	client := boardClient(t, map[string]any{
		"venueA": map[string]any{"ask": 100.0, "bid": 95.0},
		"dead":   map[string]any{"ask": 0.0, "bid": 0.0},
	})
	a := criptoya.NewAdapter("", 1, client)

	rows, err := a.FetchBoard(context.Background(), btcars)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "venueA", rows[0].Venue)
}
