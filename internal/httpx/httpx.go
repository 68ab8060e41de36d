package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/CharlyCriptoya/criptoya-like-mvp/internal/market"
)

// Client is a small wrapper around http.Client with sane defaults.
type Client struct {
	HTTP      *http.Client
	UserAgent string
	Headers   map[string]string
}

func New(timeout time.Duration) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          200,
		MaxIdleConnsPerHost:   100,
		MaxConnsPerHost:       100,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   3 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
	}
	return &Client{HTTP: &http.Client{Timeout: timeout, Transport: transport}, UserAgent: "criptoya-mvp/1.0"}
}

func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range c.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return c.HTTP.Do(req.WithContext(ctx))
}

// GetJSON fetches url and decodes the body into out. Non-2xx statuses,
// network failures and timeouts map to market.ErrUpstream; decode failures to
// market.ErrMalformed.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", market.ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %v", market.ErrUpstream, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return fmt.Errorf("%w: GET %s -> %d: %s", market.ErrUpstream, url, resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", market.ErrMalformed, url, err)
	}
	return nil
}

// FirstJSON tries candidate URLs in declared order and returns on the first
// whose payload decodes and passes valid (valid may be nil). Mirrors exist to
// route around regional blocking, so a per-URL failure just advances to the
// next candidate.
func (c *Client) FirstJSON(ctx context.Context, urls []string, out any, valid func() bool) error {
	var lastErr error
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", market.ErrUpstream, err)
		}
		if err := c.GetJSON(ctx, u, out); err != nil {
			lastErr = err
			continue
		}
		if valid != nil && !valid() {
			lastErr = fmt.Errorf("%w: GET %s: payload failed validation", market.ErrMalformed, u)
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no candidate urls", market.ErrUpstream)
	}
	return lastErr
}
