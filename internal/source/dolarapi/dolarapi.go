// Package dolarapi fetches the Argentine FX board from dolarapi.com and
// derives the USD→ARS reference rate from it.
package dolarapi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/httpx"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/market"
)

const defaultBaseURL = "https://dolarapi.com"

// Preferred rate kinds, tried in order: the crypto dollar tracks what the
// exchanges actually settle at, blue is the street fallback.
var ratePreference = []string{"cripto", "blue"}

var displayNames = map[string]string{
	"oficial":         "OFICIAL",
	"blue":            "BLUE",
	"bolsa":           "BOLSA",
	"contadoconliqui": "CONTADO CON LIQUIDACION",
	"cripto":          "CRIPTO",
	"tarjeta":         "TARJETA",
	"mayorista":       "MAYORISTA",
	"ccl":             "CCL",
	"mep":             "MEP",
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
		cfg.Name = "DOLARAPI"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Source{cfg: cfg, client: hc}
}

func (s *Source) Name() string { return s.cfg.Name }

type wireRow struct {
	Casa   string   `json:"casa"`
	Nombre string   `json:"nombre"`
	Compra *float64 `json:"compra"`
	Venta  *float64 `json:"venta"`
}

// Row is one normalized FX board entry. Nil sides stay nil.
type Row struct {
	Name string   `json:"name"`
	Buy  *float64 `json:"buy,omitempty"`
	Sell *float64 `json:"sell,omitempty"`
}

func (s *Source) fetchBoard(ctx context.Context) ([]wireRow, error) {
	var rows []wireRow
	url := s.cfg.BaseURL + "/v1/dolares"
	if err := s.client.GetJSON(ctx, url, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s: empty board", market.ErrMalformed, s.cfg.Name)
	}
	return rows, nil
}

// FetchBoard returns the full board with display-name normalization.
func (s *Source) FetchBoard(ctx context.Context) ([]Row, error) {
	raw, err := s.fetchBoard(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Row, 0, len(raw))
	for _, r := range raw {
		out = append(out, Row{
			Name: displayName(kindOf(r)),
			Buy:  priceOrNil(r.Compra),
			Sell: priceOrNil(r.Venta),
		})
	}
	return out, nil
}

// FetchRate derives USD→ARS from the preferred board rows. A board where no
// preferred row carries a finite positive sell price is an error, never a
// zero rate.
func (s *Source) FetchRate(ctx context.Context, from, to string) (market.ReferenceRate, error) {
	if !strings.EqualFold(from, "USD") && !strings.EqualFold(from, "USDT") {
		return market.ReferenceRate{}, fmt.Errorf("%w: %s does not quote %s", market.ErrRateUnavailable, s.cfg.Name, from)
	}
	if !strings.EqualFold(to, "ARS") {
		return market.ReferenceRate{}, fmt.Errorf("%w: %s does not quote %s", market.ErrRateUnavailable, s.cfg.Name, to)
	}
	rows, err := s.fetchBoard(ctx)
	if err != nil {
		return market.ReferenceRate{}, err
	}
	for _, kind := range ratePreference {
		for _, r := range rows {
			if !strings.Contains(strings.ToLower(kindOf(r)), kind) {
				continue
			}
			if p := priceOrNil(r.Venta); p != nil {
				return market.ReferenceRate{
					From:      strings.ToUpper(from),
					To:        "ARS",
					Rate:      *p,
					Source:    fmt.Sprintf("%s:%s", s.cfg.Name, kind),
					FetchedAt: time.Now().UTC(),
				}, nil
			}
		}
	}
	return market.ReferenceRate{}, fmt.Errorf("%w: no usable cripto/blue sell rate", market.ErrRateUnavailable)
}

func kindOf(r wireRow) string {
	if r.Casa != "" {
		return r.Casa
	}
	return r.Nombre
}

func displayName(kind string) string {
	k := strings.ToLower(strings.TrimSpace(kind))
	if n, ok := displayNames[k]; ok {
		return n
	}
	return strings.ToUpper(kind)
}

func priceOrNil(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return market.Price(*p)
}
