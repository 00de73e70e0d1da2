package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestFetcher(retries int) *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent:  "test-agent",
		Timeout:    5 * time.Second,
		MaxRetries: retries,
		RetryDelay: time.Millisecond,
	})
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte("DOS ID,Current Entity Name\n1,ACME\n"))
	}))
	defer srv.Close()

	body, err := newTestFetcher(3).Download(context.Background(), srv.URL+"/rows.csv")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "DOS ID,Current Entity Name\n1,ACME\n", string(data))
}

func TestDownloadToFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("1,ACME WIDGETS LLC"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "registry.csv")
	n, err := newTestFetcher(3).DownloadToFile(context.Background(), srv.URL+"/registry.csv", path)
	require.NoError(t, err)
	assert.Equal(t, int64(18), n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1,ACME WIDGETS LLC", string(data))
	assert.NoFileExists(t, path+partSuffix)
}

func TestDownloadToFile_FailureLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "registry.csv")
	_, err := newTestFetcher(1).DownloadToFile(context.Background(), srv.URL+"/missing.csv", path)
	require.Error(t, err)
	assert.NoFileExists(t, path)
	assert.NoFileExists(t, path+partSuffix)
}

func TestDownload_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestFetcher(3).Download(context.Background(), srv.URL+"/forbidden")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 403")
}

func TestDownload_RetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("success"))
	}))
	defer srv.Close()

	body, err := newTestFetcher(3).Download(context.Background(), srv.URL+"/retry")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "success", string(data))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestDownload_HonorsRetryAfter(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{MaxRetries: 2, RetryDelay: time.Hour})
	start := time.Now()
	body, err := f.Download(context.Background(), srv.URL+"/busy")
	require.NoError(t, err)
	body.Close()

	assert.Equal(t, int32(2), attempts.Load())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDownload_RetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestFetcher(2).Download(context.Background(), srv.URL+"/fail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all retries exhausted after 2 attempts")
}

func TestDownload_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher(5).Download(ctx, srv.URL+"/down")
	require.Error(t, err)
}

func TestDownload_HostRateLimit(t *testing.T) {
	var reqTimes []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqTimes = append(reqTimes, time.Now())
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{
		MaxRetries: 1,
		HostLimits: map[string]*rate.Limiter{
			srv.Listener.Addr().String(): rate.NewLimiter(2, 1),
		},
	})

	for range 3 {
		body, err := f.Download(context.Background(), srv.URL+"/limited")
		require.NoError(t, err)
		body.Close()
	}

	require.Len(t, reqTimes, 3)
	assert.GreaterOrEqual(t, reqTimes[2].Sub(reqTimes[0]).Milliseconds(), int64(500))
}

func TestDelay(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{RetryDelay: 100 * time.Millisecond})

	assert.Equal(t, 3*time.Second, f.delay(1, "3"))
	assert.Equal(t, maxRetryDelay, f.delay(1, "600"))

	d := f.delay(2, "")
	assert.GreaterOrEqual(t, d, 200*time.Millisecond)
	assert.Less(t, d, 300*time.Millisecond)

	assert.GreaterOrEqual(t, f.delay(20, "soon"), maxRetryDelay)
}

func TestDefaultRateLimiters(t *testing.T) {
	assert.Contains(t, DefaultRateLimiters(), "data.ny.gov")
}
