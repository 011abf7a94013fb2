package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestNewDefaults(t *testing.T) {
	client := New(nil)
	assert.Equal(t, DefaultTimeout, client.defaultTimeout)
	assert.Equal(t, defaultUserAgent, client.userAgent)

	client = New(&Config{DefaultTimeout: 5 * time.Second, UserAgent: "TestAgent/1.0"})
	assert.Equal(t, 5*time.Second, client.defaultTimeout)
	assert.Equal(t, "TestAgent/1.0", client.userAgent)
}

func TestGetSetsHeaders(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "fieldlog-test/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.WriteHeader(http.StatusOK)
	})

	client := New(&Config{UserAgent: "fieldlog-test/1.0", Accept: "application/json"})
	t.Cleanup(client.Close)

	resp, cancel, err := client.Get(t.Context(), server.URL)
	require.NoError(t, err)
	defer cancel()
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestExplicitHeaderWins(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Custom/2.0", r.Header.Get("User-Agent"))
	})

	client := New(&Config{UserAgent: "Default/1.0"})
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "Custom/2.0")

	resp, cancel, err := client.Do(t.Context(), req)
	require.NoError(t, err)
	defer cancel()
	_ = resp.Body.Close()
}

func TestDefaultTimeout(t *testing.T) {
	release := make(chan struct{})
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	t.Cleanup(func() { close(release) })

	client := New(&Config{DefaultTimeout: 50 * time.Millisecond})
	start := time.Now()
	_, cancel, err := client.Get(context.Background(), server.URL)
	defer cancel()
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestContextDeadlineWins(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
	})

	client := New(&Config{DefaultTimeout: 10 * time.Millisecond})
	ctx, cancelCtx := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancelCtx()

	resp, cancel, err := client.Get(ctx, server.URL)
	require.NoError(t, err, "the caller's deadline replaces the default timeout")
	defer cancel()
	_ = resp.Body.Close()
}

func TestAfterResponseHook(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	client := New(nil)
	var calls atomic.Int32
	var status atomic.Int32
	client.SetAfterResponseHook(func(_ *http.Request, resp *http.Response, err error, d time.Duration) {
		calls.Add(1)
		if err == nil {
			status.Store(int32(resp.StatusCode))
		}
		assert.Positive(t, d)
	})

	resp, cancel, err := client.Get(t.Context(), server.URL)
	require.NoError(t, err)
	defer cancel()
	_ = resp.Body.Close()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(http.StatusTeapot), status.Load())
}

func TestNilRequest(t *testing.T) {
	_, cancel, err := New(nil).Do(t.Context(), nil)
	defer cancel()
	assert.Error(t, err)
}
