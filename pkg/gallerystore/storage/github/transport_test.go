package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoJSONRetriesTransientStatus(t *testing.T) {
	calls := 0
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))

	slept := 0
	client.sleep = func(ctx context.Context, d time.Duration) error {
		slept++
		assert.Greater(t, d, time.Duration(0))
		return nil
	}

	status, body, err := client.doJSON(context.Background(), http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, slept)
}

func TestDoJSONReturnsFinalAttemptAsIs(t *testing.T) {
	calls := 0
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	status, _, err := client.doJSON(context.Background(), http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, client.cfg.MaxRetries, calls)
}

func TestDoJSONDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))

	status, _, err := client.doJSON(context.Background(), http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 1, calls)
}

func TestDoJSONRetriesNetworkErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close() // every request now fails to connect

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	slept := 0
	client.sleep = func(ctx context.Context, d time.Duration) error {
		slept++
		return nil
	}

	_, _, err := client.doJSON(context.Background(), http.MethodGet, url, nil)
	require.Error(t, err)
	assert.Equal(t, client.cfg.MaxRetries-1, slept)
}

func TestBackoffDelay(t *testing.T) {
	base := 100 * time.Millisecond
	for attempt := 1; attempt <= 4; attempt++ {
		d := backoffDelay(base, attempt)
		min := base << (attempt - 1)
		max := min + base/2
		assert.GreaterOrEqual(t, d, min, "attempt %d", attempt)
		assert.LessOrEqual(t, d, max, "attempt %d", attempt)
	}
}

func TestTransientStatus(t *testing.T) {
	assert.True(t, transientStatus(http.StatusTooManyRequests))
	assert.True(t, transientStatus(http.StatusInternalServerError))
	assert.True(t, transientStatus(http.StatusBadGateway))
	assert.False(t, transientStatus(http.StatusOK))
	assert.False(t, transientStatus(http.StatusNotFound))
	assert.False(t, transientStatus(http.StatusConflict))
}

func TestWriteGateSpacesWrites(t *testing.T) {
	const interval = 50 * time.Millisecond
	gate := newWriteGate(interval)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, gate.wait(ctx)) // first write passes immediately
	require.NoError(t, gate.wait(ctx))
	require.NoError(t, gate.wait(ctx))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 2*interval-5*time.Millisecond)
}

func TestWriteGateSerializesConcurrentWriters(t *testing.T) {
	const interval = 20 * time.Millisecond
	gate := newWriteGate(interval)

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, gate.wait(context.Background()))
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, time.Since(start), 3*interval-5*time.Millisecond)
}

func TestWriteGateHonorsContext(t *testing.T) {
	gate := newWriteGate(time.Hour)
	require.NoError(t, gate.wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := gate.wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
