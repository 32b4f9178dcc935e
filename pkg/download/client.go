// pkg/download/client.go
package download

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

const (
	defaultConnectTimeout = 30 * time.Second
	defaultReadTimeout    = 60 * time.Second
	defaultMaxAttempts    = 3
	defaultBackoff        = 500 * time.Millisecond
)

// ErrHTTP indicates a request that reached the server but failed.
var ErrHTTP = errors.New("http request failed")

// HTTPStatusError reports a non-2xx response. Status errors are not retried.
type HTTPStatusError struct {
	Status int
	URL    string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.Status, e.URL)
}

func (e *HTTPStatusError) Unwrap() error { return ErrHTTP }

// Client handles archive HTTP requests. Redirects are followed; transient
// transport failures are retried by the Downloader using maxAttempts and
// backoff.
type Client struct {
	httpClient  *http.Client
	userAgent   string
	readTimeout time.Duration
	maxAttempts int
	backoff     time.Duration
}

// NewClient creates a client with the default timeouts.
func NewClient() *Client {
	return NewClientWithTimeouts(defaultConnectTimeout, defaultReadTimeout)
}

// NewClientWithTimeouts creates a client with a custom connect timeout and
// per-chunk read timeout.
func NewClientWithTimeouts(connect, read time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   connect,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				ResponseHeaderTimeout: read,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
			},
		},
		userAgent:   "poks/1.0",
		readTimeout: read,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
	}
}

// Get performs an HTTP GET request. A non-2xx response is closed and
// returned as *HTTPStatusError.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &HTTPStatusError{Status: resp.StatusCode, URL: url}
	}
	return resp, nil
}
