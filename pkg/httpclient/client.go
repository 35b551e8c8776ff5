package httpclient

import (
	"net/http"
	"time"
)

const (
	// DefaultTimeout bounds every outbound call unless configured otherwise
	DefaultTimeout = 30 * time.Second

	// UserAgent is sent with every outbound request that does not set its own
	UserAgent = "dealer-review/1.0"
)

// Client sends prepared requests. Callers build requests with a context so
// tracing headers and cancellation travel with them.
type Client interface {
	Do(req *http.Request) (*http.Response, error)
}

// StandardHTTPClient wraps the standard http.Client
type StandardHTTPClient struct {
	client *http.Client
}

// NewStandardClient creates a client with DefaultTimeout
func NewStandardClient() Client {
	return NewClientWithTimeout(DefaultTimeout)
}

// NewClientWithTimeout creates a client whose requests give up after timeout.
// A non-positive timeout falls back to DefaultTimeout.
func NewClientWithTimeout(timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 20

	return &StandardHTTPClient{
		client: &http.Client{Timeout: timeout, Transport: transport},
	}
}

// Do executes an HTTP request
func (c *StandardHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent)
	}
	return c.client.Do(req)
}
