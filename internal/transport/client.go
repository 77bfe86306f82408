package transport

import (
	"net"
	"net/http"
	"time"
)

// NewPooledTransport returns a keep-alive transport tuned for a single
// upstream host.
func NewPooledTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: dialer.DialContext,

		// Connection pooling settings
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,

		// TLS and response timeouts
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		ForceAttemptHTTP2: true,
	}
}

// NewHTTPClient builds the client used for every backend call: pooled
// transport with the authorizer in front. timeout bounds each request; there
// is no other cancellation.
func NewHTTPClient(tokens TokenSource, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: NewAuthorizer(tokens, NewPooledTransport()),
		Timeout:   timeout,
	}
}
