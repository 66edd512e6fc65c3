// Package portal talks to the carbon portal's ingestion, upload and
// authentication endpoints.
//
// Requests go through a small retrying HTTP client. Idempotent requests are
// retried with exponential backoff on transport errors, 429 and 5xx. A POST
// may already have been committed when its answer is lost, so it is only
// retried on 429 and 503. The last answer is returned to the caller even when
// it is still a failure, so diagnostics can show the portal's response body.
package portal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// HTTPConfig configures the retrying client. Zero values get defaults:
// Timeout 10m, MaxRetries 2, InitialBackoff 500ms, MaxBackoff 10s.
type HTTPConfig struct {
	Timeout        time.Duration     `yaml:"timeout"`
	MaxRetries     int               `yaml:"max_retries"`
	InitialBackoff time.Duration     `yaml:"initial_backoff"`
	MaxBackoff     time.Duration     `yaml:"max_backoff"`
	UserAgent      string            `yaml:"user_agent"`
	Transport      http.RoundTripper `yaml:"-"`
}

// Body produces a fresh request body for every attempt.
type Body func() (io.ReadCloser, int64, error)

// BytesBody re-sends b on every attempt.
func BytesBody(b []byte) Body {
	return func() (io.ReadCloser, int64, error) {
		return io.NopCloser(bytes.NewReader(b)), int64(len(b)), nil
	}
}

// FileBody streams the file at path, reopening it for every attempt.
func FileBody(path string) Body {
	return func() (io.ReadCloser, int64, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, 0, err
		}
		st, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, 0, err
		}
		return f, st.Size(), nil
	}
}

type httpClient struct {
	client         *http.Client
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	userAgent      string
	sleep          func(context.Context, time.Duration) error
}

func newHTTPClient(cfg HTTPConfig) *httpClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "zupload"
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &httpClient{
		client:         &http.Client{Timeout: cfg.Timeout, Transport: transport},
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		userAgent:      cfg.UserAgent,
		sleep:          sleepContext,
	}
}

// do sends the request, retrying transient failures. The caller closes the
// response body.
func (c *httpClient) do(ctx context.Context, method, url string, body Body, headers http.Header) (*http.Response, error) {
	attempts := c.maxRetries + 1
	idempotent := isIdempotent(method)
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req, err := c.newRequest(ctx, method, url, body, headers)
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(req)
		switch {
		case err != nil && !idempotent:
			return nil, fmt.Errorf("%s %s: %w", method, url, err)
		case err != nil:
			lastErr = err
		case !isRetryableStatus(resp.StatusCode, idempotent) || attempt+1 >= attempts:
			return resp, nil
		default:
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("retryable status %d from %s %s", resp.StatusCode, method, url)
		}
		if attempt+1 >= attempts {
			break
		}
		if err := c.sleep(ctx, backoffDuration(c.initialBackoff, attempt, c.maxBackoff)); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%s %s: %w", method, url, lastErr)
}

func (c *httpClient) newRequest(ctx context.Context, method, url string, body Body, headers http.Header) (*http.Request, error) {
	var (
		rc   io.ReadCloser
		size int64
	)
	if body != nil {
		var err error
		rc, size, err = body()
		if err != nil {
			return nil, fmt.Errorf("open request body: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rc)
	if err != nil {
		if rc != nil {
			_ = rc.Close()
		}
		return nil, fmt.Errorf("build request: %w", err)
	}
	if rc != nil {
		req.ContentLength = size
	}
	req.Header.Set("User-Agent", c.userAgent)
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	return req, nil
}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}

func isRetryableStatus(code int, idempotent bool) bool {
	switch {
	case code == http.StatusTooManyRequests, code == http.StatusServiceUnavailable:
		return true
	case idempotent:
		return code >= 500 && code <= 599
	}
	return false
}

func backoffDuration(initial time.Duration, attempt int, ceiling time.Duration) time.Duration {
	d := initial << attempt
	if d <= 0 || d > ceiling {
		return ceiling
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Response is a portal answer with its body read to a string.
type Response struct {
	StatusCode int
	Body       string
}

// OK reports a 2xx status.
func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func readResponse(resp *http.Response) (Response, error) {
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{StatusCode: resp.StatusCode}, fmt.Errorf("read response: %w", err)
	}
	return Response{StatusCode: resp.StatusCode, Body: string(b)}, nil
}
