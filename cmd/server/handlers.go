package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/aggregate"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/market"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/source"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/source/coingecko"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/source/criptoya"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/source/dolarapi"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/ta"
)

const (
	minCandles = 50
	maxCandles = 1000
)

func handleQuotes(w http.ResponseWriter, r *http.Request, agg *aggregate.Aggregator, defaultConvert string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	inst, err := market.ParseInstrument(orDefault(r.URL.Query().Get("symbol"), "BTCUSDT"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	opts := aggregate.Options{
		Sources: splitCSV(strings.ToUpper(r.URL.Query().Get("sources"))),
		Convert: orDefault(strings.ToUpper(r.URL.Query().Get("convert")), defaultConvert),
	}
	switch strings.ToLower(r.URL.Query().Get("rank")) {
	case "bid":
		opts.RankBy = aggregate.RankByBid
	case "", "ask":
		opts.RankBy = aggregate.RankByAsk
	default:
		http.Error(w, "rank must be bid or ask", http.StatusBadRequest)
		return
	}

	res := agg.Aggregate(r.Context(), inst, opts)
	status := http.StatusOK
	if res.AllFailed() {
		// Still a structured body; the status signals that nothing answered.
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}

func handleCandles(w http.ResponseWriter, r *http.Request, cs source.CandleSource) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	inst, err := market.ParseInstrument(orDefault(r.URL.Query().Get("symbol"), "BTCUSDT"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	interval := orDefault(r.URL.Query().Get("interval"), "1h")
	limit := clampLimit(r.URL.Query().Get("limit"), 500)

	series, err := cs.FetchCandles(r.Context(), inst, interval, limit)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

func handleTA(w http.ResponseWriter, r *http.Request, cs source.CandleSource) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	inst, err := market.ParseInstrument(orDefault(r.URL.Query().Get("symbol"), "BTCUSDT"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	interval := orDefault(r.URL.Query().Get("interval"), "1h")
	limit := clampLimit(r.URL.Query().Get("limit"), 300)

	series, err := cs.FetchCandles(r.Context(), inst, interval, limit)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	report, err := ta.BuildReport(series)
	if err != nil {
		if errors.Is(err, ta.ErrInsufficientData) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":     inst.Symbol(),
		"interval":   interval,
		"indicators": report,
	})
}

func handleDolar(w http.ResponseWriter, r *http.Request, d *dolarapi.Source) {
	rows, err := d.FetchBoard(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func handleARSBoard(w http.ResponseWriter, r *http.Request, cy *criptoya.Adapter) {
	asset := strings.ToUpper(orDefault(r.URL.Query().Get("asset"), "BTC"))
	inst := market.Instrument{Base: asset, Quote: "ARS"}
	rows, err := cy.FetchBoard(r.Context(), inst)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"asset": asset, "rows": rows})
}

func handleCrypto(w http.ResponseWriter, r *http.Request, g *coingecko.Source) {
	assets := splitCSV(orDefault(r.URL.Query().Get("assets"), "bitcoin,ethereum,tether"))
	prices, err := g.FetchPrices(r.Context(), assets)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prices)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// Upstream and malformed-payload failures both surface as 502: the proxy is
// fine, the provider is not.
func writeUpstreamError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusBadGateway)
}

func clampLimit(s string, def int) int {
	n := def
	if s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			n = v
		}
	}
	if n < minCandles {
		n = minCandles
	}
	if n > maxCandles {
		n = maxCandles
	}
	return n
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
