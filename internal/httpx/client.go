package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"time"

	routererr "github.com/solswap/router/internal/errors"
)

// Client is a shared JSON HTTP client with bounded retries. Every provider
// adapter issues its outbound calls through it so timeouts and status mapping
// are uniform.
type Client struct {
	httpClient *http.Client
	retries    int
	userAgent  string
}

func New(timeout time.Duration, retries int) *Client {
	if retries < 0 {
		retries = 0
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		retries:    retries,
		userAgent:  "swap-router/1.0",
	}
}

// DoJSON performs the request and decodes a JSON body into out. Non-2xx
// statuses are mapped to typed errors; the raw body is returned alongside so
// adapters can translate provider error payloads into domain messages.
func (c *Client) DoJSON(ctx context.Context, req *http.Request, out any) ([]byte, error) {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	var lastErr error
	var lastBody []byte
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, routererr.Wrap(routererr.CodeUnavailable, "request cancelled", ctx.Err())
			case <-time.After(backoff(attempt)):
			}
		}

		cloneReq := req.Clone(ctx)
		if req.Body != nil && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, routererr.Wrap(routererr.CodeInternal, "clone request body", err)
			}
			cloneReq.Body = body
		}

		resp, err := c.httpClient.Do(cloneReq)
		if err != nil {
			lastErr = mapNetError(err)
			if attempt < c.retries {
				continue
			}
			return nil, lastErr
		}

		buf, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, routererr.Wrap(routererr.CodeUnavailable, "read provider response", readErr)
		}
		lastBody = buf

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = routererr.New(routererr.CodeRateLimited, "provider rate limited request")
			if attempt < c.retries {
				continue
			}
			return lastBody, lastErr
		}

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return lastBody, routererr.New(routererr.CodeAuth, "provider authentication failed")
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			lastErr = routererr.New(routererr.CodeUnavailable, fmt.Sprintf("provider unavailable (status %d)", resp.StatusCode))
			if attempt < c.retries {
				continue
			}
			return lastBody, lastErr
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			// 4xx carries a provider error payload worth translating upstream.
			return lastBody, routererr.New(routererr.CodeProvider, fmt.Sprintf("provider returned status %d", resp.StatusCode))
		}

		if out == nil {
			return lastBody, nil
		}
		if len(bytes.TrimSpace(buf)) == 0 {
			return lastBody, routererr.New(routererr.CodeUnavailable, "provider returned empty response")
		}
		if err := json.Unmarshal(buf, out); err != nil {
			return lastBody, routererr.Wrap(routererr.CodeUnavailable, "decode provider JSON", err)
		}
		return lastBody, nil
	}

	if lastErr != nil {
		return lastBody, lastErr
	}
	return lastBody, routererr.New(routererr.CodeUnavailable, "request failed")
}

// GetJSON is a convenience wrapper for bare GET requests.
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string, out any) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, routererr.Wrap(routererr.CodeInternal, "build request", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.DoJSON(ctx, req, out)
}

// PostJSON marshals body and POSTs it as application/json.
func (c *Client) PostJSON(ctx context.Context, url string, body any, headers map[string]string, out any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, routererr.Wrap(routererr.CodeInternal, "encode request body", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, routererr.Wrap(routererr.CodeInternal, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.DoJSON(ctx, req, out)
}

func mapNetError(err error) error {
	if nerr, ok := err.(net.Error); ok {
		if nerr.Timeout() {
			return routererr.Wrap(routererr.CodeUnavailable, "provider timeout", err)
		}
	}
	return routererr.Wrap(routererr.CodeUnavailable, "provider request failed", err)
}

func backoff(attempt int) time.Duration {
	base := 120 * time.Millisecond
	d := base * time.Duration(1<<uint(attempt-1))
	if d > 2*time.Second {
		d = 2 * time.Second
	}
	jitter := time.Duration(rand.Intn(75)) * time.Millisecond
	return d + jitter
}
