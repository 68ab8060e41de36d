package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

type Server struct {
	Port              string `json:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
}

type Aggregate struct {
	CacheTTLSec      int    `json:"cache_ttl_sec"`
	CacheMaxItems    int    `json:"cache_max_items"`
	SourceTimeoutSec int    `json:"source_timeout_sec"`
	RateMemoTTLSec   int    `json:"rate_memo_ttl_sec"`
	ConvertCurrency  string `json:"convert_currency"`
}

// Exchange is the common per-source knob set. Rate limits follow the same
// precedence everywhere: RPM+burst when set, otherwise min interval.
type Exchange struct {
	Enabled               bool `json:"enabled"`
	MaxRequestsPerMinute  int  `json:"max_requests_per_minute"`
	Burst                 int  `json:"burst"`
	MinRequestIntervalSec int  `json:"min_request_interval_sec"`
}

type Binance struct {
	Exchange
	Mirrors []string `json:"mirrors"`
}

type Criptoya struct {
	Exchange
	Volume int `json:"volume"`
}

type Config struct {
	Server    Server    `json:"server"`
	Aggregate Aggregate `json:"aggregate"`
	Binance   Binance   `json:"binance"`
	Bybit     Exchange  `json:"bybit"`
	Okx       Exchange  `json:"okx"`
	Kucoin    Exchange  `json:"kucoin"`
	Mexc      Exchange  `json:"mexc"`
	Bitget    Exchange  `json:"bitget"`
	Criptoya  Criptoya  `json:"criptoya"`
}

func Default() Config {
	on := Exchange{Enabled: true}
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 12},
		Aggregate: Aggregate{
			CacheTTLSec:      15,
			CacheMaxItems:    1000,
			SourceTimeoutSec: 8,
			RateMemoTTLSec:   30,
			ConvertCurrency:  "ARS",
		},
		Binance:  Binance{Exchange: on},
		Bybit:    on,
		Okx:      on,
		Kucoin:   on,
		Mexc:     on,
		Bitget:   on,
		Criptoya: Criptoya{Exchange: Exchange{Enabled: false}, Volume: 1},
	}
}

// Load reads JSON config from path. If path is empty or the file does not
// exist, it returns defaults. Environment variables override select fields.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	envInt("REQUEST_TIMEOUT_SEC", &cfg.Server.RequestTimeoutSec)
	envInt("CACHE_TTL_SEC", &cfg.Aggregate.CacheTTLSec)
	envInt("CACHE_MAX_ITEMS", &cfg.Aggregate.CacheMaxItems)
	envInt("SOURCE_TIMEOUT_SEC", &cfg.Aggregate.SourceTimeoutSec)
	envInt("RATE_MEMO_TTL_SEC", &cfg.Aggregate.RateMemoTTLSec)
	if v := os.Getenv("CONVERT_CURRENCY"); v != "" {
		cfg.Aggregate.ConvertCurrency = strings.ToUpper(v)
	}

	envExchange("BINANCE", &cfg.Binance.Exchange)
	if v := os.Getenv("BINANCE_MIRRORS"); v != "" {
		cfg.Binance.Mirrors = splitCSV(v)
	}
	envExchange("BYBIT", &cfg.Bybit)
	envExchange("OKX", &cfg.Okx)
	envExchange("KUCOIN", &cfg.Kucoin)
	envExchange("MEXC", &cfg.Mexc)
	envExchange("BITGET", &cfg.Bitget)
	envExchange("CRIPTOYA", &cfg.Criptoya.Exchange)
	envInt("CRIPTOYA_VOLUME", &cfg.Criptoya.Volume)
}

func envExchange(prefix string, e *Exchange) {
	envBool(prefix+"_ENABLED", &e.Enabled)
	envInt(prefix+"_MAX_RPM", &e.MaxRequestsPerMinute)
	envInt(prefix+"_BURST", &e.Burst)
	envInt(prefix+"_MIN_INTERVAL_SEC", &e.MinRequestIntervalSec)
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		var x int
		if _, err := fmt.Sscanf(v, "%d", &x); err == nil && x >= 0 {
			*dst = x
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "y":
			*dst = true
		case "0", "false", "no", "n":
			*dst = false
		}
	}
}

func splitCSV(s string) []string {
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
