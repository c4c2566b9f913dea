package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// doJSON issues one API request through the retry policy and returns the
// final status and body. Non-2xx statuses are returned to the caller, not
// turned into errors here; each endpoint interprets them itself.
func (c *Client) doJSON(ctx context.Context, method, url string, payload any) (int, []byte, error) {
	var reqBody []byte
	if payload != nil {
		var err error
		reqBody, err = json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(reqBody))
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", defaultAPIVersion)
		if reqBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err == nil {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				err = readErr
			} else if !transientStatus(resp.StatusCode) || attempt >= c.cfg.MaxRetries {
				// Final answer: either a non-transient status, or we are out
				// of attempts and return the last response as-is.
				return resp.StatusCode, body, nil
			} else {
				lastErr = fmt.Errorf("transient status %d", resp.StatusCode)
			}
		}
		if err != nil {
			if attempt >= c.cfg.MaxRetries {
				return 0, nil, err
			}
			lastErr = err
		}

		if serr := c.sleep(ctx, backoffDelay(c.cfg.RetryBaseDelay, attempt)); serr != nil {
			if lastErr != nil {
				return 0, nil, fmt.Errorf("%v (after: %w)", serr, lastErr)
			}
			return 0, nil, serr
		}
	}
}

// transientStatus reports whether a response should be retried: the abuse
// rate limiter answers 429, and 5xx covers host-side hiccups.
func transientStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// backoffDelay is base * 2^(attempt-1) plus up to half the base of jitter.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	delay := base << (attempt - 1)
	jitter := time.Duration(rand.Int63n(int64(base)/2 + 1))
	return delay + jitter
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// writeGate enforces the global minimum interval between mutating calls.
// GitHub rate-limits aggressive writes per caller identity, not per file, so
// the gate is a single mutex-guarded timestamp shared by all writers of one
// client instance; holding the mutex through the wait also serializes the
// start of concurrent mutating calls.
type writeGate struct {
	mu        sync.Mutex
	interval  time.Duration
	lastWrite time.Time
}

func newWriteGate(interval time.Duration) *writeGate {
	return &writeGate{interval: interval}
}

func (g *writeGate) wait(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.lastWrite.IsZero() {
		if remaining := g.interval - time.Since(g.lastWrite); remaining > 0 {
			timer := time.NewTimer(remaining)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	g.lastWrite = time.Now()
	return nil
}
