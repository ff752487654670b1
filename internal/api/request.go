package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"
)

// FetchError is returned when the API answers with a non-200 status.
type FetchError struct {
	StatusCode int
	URL        string
	Body       []byte
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("coingecko api error %d: %s (%s)", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// RateLimited returns true if the API rejected the call for exceeding its quota.
func (e *FetchError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Fetch performs one rate-limited GET and returns the raw JSON body.
// Only 429 responses are retried; any other non-200 status is returned as
// a *FetchError.
func (c *Client) Fetch(ctx context.Context, endpoint string, query url.Values) (json.RawMessage, error) {
	body, err := c.doWithRetry(ctx, http.MethodGet, endpoint, query)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// buildURL joins the base URL, endpoint and encoded query.
func (c *Client) buildURL(path string, query url.Values) string {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	return fullURL
}

// doRequest waits for a rate-limit slot and performs a single HTTP request.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	fullURL := c.buildURL(path, query)

	waited, err := c.limiter.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	if waited > 0 {
		c.logger.Info("rate limit reached, request delayed",
			"path", path,
			"waited", waited,
		)
		c.observer.ObserveRateLimitWait(waited)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	c.observer.ObserveRequest(resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			StatusCode: resp.StatusCode,
			URL:        fullURL,
			Body:       body,
		}
	}

	return body, nil
}

// doWithRetry performs a request, backing off and retrying while the API
// reports 429. Each retry takes a fresh rate-limit slot.
func (c *Client) doWithRetry(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int63n(int64(backoff)+1))
			c.logger.Warn("retrying rate-limited request",
				"attempt", attempt,
				"backoff", jitter,
				"path", path,
			)

			if err := sleepContext(ctx, jitter); err != nil {
				return nil, err
			}

			backoff *= 2
		}

		body, err := c.doRequest(ctx, method, path, query)
		if err == nil {
			return body, nil
		}

		lastErr = err

		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) || !fetchErr.RateLimited() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
