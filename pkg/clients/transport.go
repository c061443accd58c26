package clients

import (
	"net"
	"net/http"
	"sync"
	"time"
)

var (
	transportOnce   sync.Once
	sharedTransport *http.Transport
)

// DefaultTransport returns the shared HTTP transport for all outbound
// clients. Connections per host are capped so a stalled downstream cannot
// pile up sockets.
func DefaultTransport() *http.Transport {
	transportOnce.Do(func() {
		sharedTransport = &http.Transport{
			MaxConnsPerHost:     100,
			MaxIdleConnsPerHost: 10,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
	})
	return sharedTransport
}

// NewHTTPClient returns an HTTP client on the shared transport with the
// given overall request timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: DefaultTransport(),
	}
}
