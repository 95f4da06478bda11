package collector

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"WatchSentinel/internal/model"
)

// Source fetches current quotes for a set of instrument codes. It may return
// fewer quotes than requested when some codes fail.
type Source interface {
	FetchQuotes(ctx context.Context, codes []string) ([]model.Quote, error)
	Name() string
}

// newHTTPClient builds a client with optional proxy support.
func newHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// changeOf derives change and change percent from price and previous close.
func changeOf(price, prevClose float64) (float64, float64) {
	change := price - prevClose
	if prevClose == 0 {
		return change, 0
	}
	return change, change / prevClose * 100
}
