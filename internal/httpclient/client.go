// Package httpclient provides shared HTTP client construction for the
// outbound API clients.
package httpclient

import (
	"net/http"
	"time"
)

// DefaultTimeout is the timeout outbound clients use unless they override
// it.
const DefaultTimeout = 30 * time.Second

// NewDefaultHTTPClient creates a simple HTTP client with a timeout
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
	}
}
