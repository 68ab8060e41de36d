package criptoya

import (
	"net/http"
	"net/url"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=criptoya_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const baseURL = "https://criptoya.com/api"

// CriptoyaAPIClient is a client for the CriptoYa public API.
type CriptoyaAPIClient struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient is the HTTP httpClient.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// query contains additional query parameters to be sent with each request.
	query url.Values
}

// CriptoyaAPIClientOption is a configuration option for the CriptoYa API client.
type CriptoyaAPIClientOption func(*CriptoyaAPIClient)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) CriptoyaAPIClientOption {
	return func(c *CriptoyaAPIClient) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) CriptoyaAPIClientOption {
	return func(c *CriptoyaAPIClient) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) CriptoyaAPIClientOption {
	return func(c *CriptoyaAPIClient) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// NewCriptoyaAPIClient creates a new CriptoYa API client. The API needs no
// key; options cover the HTTP client and base URL.
func NewCriptoyaAPIClient(options ...CriptoyaAPIClientOption) (*CriptoyaAPIClient, error) {
	var criptoyaAPIClient = &CriptoyaAPIClient{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		query:      url.Values{},
	}
	for _, option := range options {
		option(criptoyaAPIClient)
	}
	return criptoyaAPIClient, nil
}
