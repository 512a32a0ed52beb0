package httputil

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout bounds a single object-store request.
const DefaultTimeout = 60 * time.Second

// NewClient returns an HTTP client for object-store traffic. An empty
// proxyURL falls back to the environment's proxy settings.
func NewClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid proxy url %q", proxyURL)
		}
		transport.Proxy = http.ProxyURL(u)
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}
