package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// Document is a multipart document served over HTTP. Body must be closed by
// the caller.
type Document struct {
	ContentType string
	Body        io.ReadCloser
}

// getHTTPClient returns a singleton HTTP client
var (
	httpClient     *http.Client
	httpClientOnce sync.Once
	defaultTimeout = 60 * time.Second
)

func getHTTPClient(ctx context.Context, timeout time.Duration) *http.Client {
	httpClientOnce.Do(func() {
		transport := &http.Transport{
			MaxIdleConns:       100,
			IdleConnTimeout:    90 * time.Second,
			DisableCompression: false,
			DisableKeepAlives:  false,
			ForceAttemptHTTP2:  true,
		}

		// Add context-aware dial options
		transport.DialContext = (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext

		httpClient = &http.Client{
			Transport: transport,
		}
	})

	// Check if there's a timeout in the context
	if deadline, ok := ctx.Deadline(); ok {
		clientCopy := *httpClient
		clientCopy.Timeout = time.Until(deadline)
		return &clientCopy
	}

	if timeout <= 0 {
		timeout = defaultTimeout
	}
	clientCopy := *httpClient
	clientCopy.Timeout = timeout
	return &clientCopy
}

// Fetch requests url and returns the response body unread, so that the
// document can be decoded while it is still arriving.
func Fetch(ctx context.Context, url string, timeout time.Duration) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "multipart/*")

	resp, err := getHTTPClient(ctx, timeout).Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer func() {
			_ = resp.Body.Close()
		}()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return &Document{
		ContentType: resp.Header.Get("Content-Type"),
		Body:        resp.Body,
	}, nil
}
