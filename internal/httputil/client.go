package httputil

import (
	"context"
	"net/http"
	"time"
)

const DefaultTimeout = 30 * time.Second

// UserAgent identifies the service to public APIs. Nominatim rejects
// requests without one.
const UserAgent = "rainseason/1.0"

// NewClient returns an HTTP client with standard timeout configuration.
func NewClient() *http.Client {
	return NewClientWithTimeout(DefaultTimeout)
}

func NewClientWithTimeout(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// NewGet builds a GET request bound to ctx with the given User-Agent, or
// UserAgent when userAgent is empty.
func NewGet(ctx context.Context, url, userAgent string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if userAgent == "" {
		userAgent = UserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	return req, nil
}
