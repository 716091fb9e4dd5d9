package httputil

import (
	"context"
	"testing"
)

func TestNewGet(t *testing.T) {
	req, err := NewGet(context.Background(), "https://example.com/search?q=Tamale", "")
	if err != nil {
		t.Fatalf("NewGet: %v", err)
	}
	if got := req.Header.Get("User-Agent"); got != UserAgent {
		t.Errorf("User-Agent = %q, want %q", got, UserAgent)
	}

	req, err = NewGet(context.Background(), "https://example.com/", "custom/2.0")
	if err != nil {
		t.Fatalf("NewGet: %v", err)
	}
	if got := req.Header.Get("User-Agent"); got != "custom/2.0" {
		t.Errorf("User-Agent = %q, want custom/2.0", got)
	}
}

func TestNewClient(t *testing.T) {
	if c := NewClient(); c.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", c.Timeout, DefaultTimeout)
	}
}
