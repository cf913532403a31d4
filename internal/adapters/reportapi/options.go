package reportapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/okian/careconnect/pkg/logger"
)

// Option applies a configuration option to the Fetcher.
type Option func(*Fetcher)

// WithBaseURL sets the collaborator API root, e.g. "http://reports.internal:5000".
func WithBaseURL(baseURL string) Option {
	return func(f *Fetcher) {
		f.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

// WithTimeout bounds each request. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithMaxBodyBytes caps response bodies. Non-positive values are ignored.
func WithMaxBodyBytes(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBodyBytes = n
		}
	}
}

// WithLogger sets a custom logger for the fetcher.
func WithLogger(l logger.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}
