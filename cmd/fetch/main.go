// Command fetch runs one aggregation (or candle dump) from the terminal and
// prints the JSON result. Useful for poking at upstreams without the server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/aggregate"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/cache"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/config"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/httpx"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/market"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/refrate"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/source"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/source/binance"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/source/bitget"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/source/bybit"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/source/coingecko"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/source/dolarapi"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/source/kucoin"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/source/mexc"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/source/okx"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/ta"
)

func main() {
	_ = godotenv.Load()

	var (
		symbol     string
		sourcesCSV string
		convert    string
		rank       string
		candles    bool
		indicators bool
		interval   string
		limit      int
		timeout    int
		configPath string
	)
	flag.StringVar(&symbol, "symbol", "BTCUSDT", "instrument, e.g. BTCUSDT or BTC/USDT")
	flag.StringVar(&sourcesCSV, "sources", "", "restrict to a source subset, CSV")
	flag.StringVar(&convert, "convert", "ARS", "conversion currency, empty to disable")
	flag.StringVar(&rank, "rank", "ask", "ranking side: ask (best buy) or bid (best sell)")
	flag.BoolVar(&candles, "candles", false, "dump candles instead of quotes")
	flag.BoolVar(&indicators, "ta", false, "print indicator report instead of quotes")
	flag.StringVar(&interval, "interval", "1h", "candle interval")
	flag.IntVar(&limit, "limit", 300, "candle count")
	flag.IntVar(&timeout, "timeout", 15, "request timeout seconds")
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json (optional)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if timeout > 0 {
		cfg.Server.RequestTimeoutSec = timeout
	}

	inst, err := market.ParseInstrument(symbol)
	if err != nil {
		log.Fatalf("symbol: %v", err)
	}

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.RequestTimeoutSec+5)*time.Second)
	defer cancel()

	bn := binance.New(binance.Config{Mirrors: cfg.Binance.Mirrors}, httpClient)

	if candles || indicators {
		series, err := bn.FetchCandles(ctx, inst, interval, limit)
		if err != nil {
			log.Fatalf("candles: %v", err)
		}
		if indicators {
			report, err := ta.BuildReport(series)
			if err != nil {
				log.Fatalf("ta: %v", err)
			}
			printJSON(report)
			return
		}
		printJSON(series)
		return
	}

	registry := source.NewRegistry(
		bn,
		bybit.New(bybit.Config{}, httpClient),
		okx.New(okx.Config{}, httpClient),
		kucoin.New(kucoin.Config{}, httpClient),
		mexc.New(mexc.Config{}, httpClient),
		bitget.New(bitget.Config{}, httpClient),
	)
	rates := refrate.NewResolver(
		time.Duration(cfg.Aggregate.RateMemoTTLSec)*time.Second,
		dolarapi.New(dolarapi.Config{}, httpClient),
		coingecko.New(coingecko.Config{}, httpClient),
	)
	agg := aggregate.New(registry, rates, cache.New(0, 0), time.Duration(cfg.Aggregate.SourceTimeoutSec)*time.Second)

	opts := aggregate.Options{Convert: strings.ToUpper(convert)}
	if rank == "bid" {
		opts.RankBy = aggregate.RankByBid
	}
	if sourcesCSV != "" {
		for _, s := range strings.Split(sourcesCSV, ",") {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				opts.Sources = append(opts.Sources, s)
			}
		}
	}

	printJSON(agg.Aggregate(ctx, inst, opts))
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
