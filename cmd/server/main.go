package main

import (
	"compress/gzip"
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/aggregate"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/cache"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/config"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/httpx"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/refrate"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/source"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/source/binance"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/source/bitget"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/source/bybit"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/source/coingecko"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/source/criptoya"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/source/dolarapi"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/source/kucoin"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/source/mexc"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/source/okx"
	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/source/ratelimit"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)

	var sources []source.Source
	binanceSrc := binance.New(binance.Config{Mirrors: cfg.Binance.Mirrors}, httpClient)
	if cfg.Binance.Enabled {
		sources = append(sources, limited(binanceSrc, cfg.Binance.Exchange))
	}
	if cfg.Bybit.Enabled {
		sources = append(sources, limited(bybit.New(bybit.Config{}, httpClient), cfg.Bybit))
	}
	if cfg.Okx.Enabled {
		sources = append(sources, limited(okx.New(okx.Config{}, httpClient), cfg.Okx))
	}
	if cfg.Kucoin.Enabled {
		sources = append(sources, limited(kucoin.New(kucoin.Config{}, httpClient), cfg.Kucoin))
	}
	if cfg.Mexc.Enabled {
		sources = append(sources, limited(mexc.New(mexc.Config{}, httpClient), cfg.Mexc))
	}
	if cfg.Bitget.Enabled {
		sources = append(sources, limited(bitget.New(bitget.Config{}, httpClient), cfg.Bitget))
	}

	cyClient, err := criptoya.NewCriptoyaAPIClient(criptoya.WithHTTPClient(httpClient.HTTP))
	if err != nil {
		log.Fatalf("criptoya client: %v", err)
	}
	cyAdapter := criptoya.NewAdapter("CRIPTOYA", cfg.Criptoya.Volume, cyClient)
	if cfg.Criptoya.Enabled {
		sources = append(sources, limited(cyAdapter, cfg.Criptoya.Exchange))
	}
	if len(sources) == 0 {
		log.Println("warning: no quote sources enabled")
	}

	dolar := dolarapi.New(dolarapi.Config{}, httpClient)
	gecko := coingecko.New(coingecko.Config{}, httpClient)
	rates := refrate.NewResolver(
		time.Duration(cfg.Aggregate.RateMemoTTLSec)*time.Second,
		dolar, gecko,
	)

	resultCache := cache.New(
		time.Duration(cfg.Aggregate.CacheTTLSec)*time.Second,
		cfg.Aggregate.CacheMaxItems,
	)
	agg := aggregate.New(
		source.NewRegistry(sources...),
		rates,
		resultCache,
		time.Duration(cfg.Aggregate.SourceTimeoutSec)*time.Second,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("/api/sources", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"sources": agg.Sources()})
	})
	mux.HandleFunc("/api/quotes", func(w http.ResponseWriter, r *http.Request) {
		handleQuotes(w, r, agg, cfg.Aggregate.ConvertCurrency)
	})
	mux.HandleFunc("/api/candles", func(w http.ResponseWriter, r *http.Request) {
		handleCandles(w, r, binanceSrc)
	})
	mux.HandleFunc("/api/ta", func(w http.ResponseWriter, r *http.Request) {
		handleTA(w, r, binanceSrc)
	})
	mux.HandleFunc("/api/dolar", func(w http.ResponseWriter, r *http.Request) {
		handleDolar(w, r, dolar)
	})
	mux.HandleFunc("/api/ars", func(w http.ResponseWriter, r *http.Request) {
		handleARSBoard(w, r, cyAdapter)
	})
	mux.HandleFunc("/api/crypto", func(w http.ResponseWriter, r *http.Request) {
		handleCrypto(w, r, gecko)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           withJSONHeaders(withGzip(recoverPanic(mux))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// limited stacks the configured rate-limit decorator over a source.
// Token bucket with burst wins over min-interval when both are set.
func limited(s source.Source, e config.Exchange) source.Source {
	if e.MaxRequestsPerMinute > 0 {
		burst := e.Burst
		if burst <= 0 {
			burst = 1
		}
		return &ratelimit.TokenBucketSource{S: s, TB: ratelimit.NewTokenBucket(float64(e.MaxRequestsPerMinute)/60.0, burst)}
	}
	if e.MinRequestIntervalSec > 0 {
		return &ratelimit.MinInterval{S: s, Interval: time.Duration(e.MinRequestIntervalSec) * time.Second}
	}
	return s
}

func withJSONHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		// Basic CORS for browser usage; adjust as needed.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withGzip compresses the response when the client supports gzip.
func withGzip(next http.Handler) http.Handler {
	var gzPool = sync.Pool{New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gz := gzPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			gzPool.Put(gz)
		}()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		next.ServeHTTP(gzipResponseWriter{ResponseWriter: w, Writer: gz}, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
	return g.Writer.Write(b)
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("panic: %v", rec)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
